package scheduler

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

type Task func(ctx context.Context) error

// Every runs the task immediately and then once per interval until the
// context is cancelled. Task errors are logged, never fatal; the daily
// cadence must survive a bad pass.
func Every(ctx context.Context, interval time.Duration, name string, log *logrus.Logger, task Task) {
	t := time.NewTicker(interval)
	defer t.Stop()

	run := func() {
		if err := task(ctx); err != nil {
			log.WithError(err).Errorf("[%s] scheduled run failed", name)
		}
	}

	run()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			run()
		}
	}
}
