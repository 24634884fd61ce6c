// Package runlock serializes pipeline runs across processes with an
// advisory file lock, so a cron-triggered ingest and a manual one never
// interleave ledger writes.
package runlock

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

type Lock struct {
	fl *flock.Flock
}

// Acquire takes the lock non-blocking. A held lock means another run is
// in flight; callers should bail out rather than wait.
func Acquire(dataDir string) (*Lock, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	fl := flock.New(filepath.Join(dataDir, "engine.lock"))
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire run lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("another run holds %s", fl.Path())
	}
	return &Lock{fl: fl}, nil
}

func (l *Lock) Release() {
	if l == nil || l.fl == nil {
		return
	}
	_ = l.fl.Unlock()
}
