package httpapi

import (
	"context"

	"github.com/sirupsen/logrus"

	"jobtrack-engine/internal/events"
	"jobtrack-engine/internal/ledger"
	"jobtrack-engine/internal/tracker"
)

// LedgerReader is the read-only slice of the ledger the status server
// exposes.
type LedgerReader interface {
	Applications(ctx context.Context) ([]ledger.ApplicationRow, error)
	Rejections(ctx context.Context) ([]ledger.RejectionRow, error)
}

// StatusInfo is the static configuration snapshot reported by /status.
type StatusInfo struct {
	MailBackend   string `json:"mail_backend"`
	LedgerBackend string `json:"ledger_backend"`
	Label         string `json:"label"`
	Model         string `json:"model"`
	MaxPerRun     int    `json:"max_per_run"`
}

type Deps struct {
	Log    *logrus.Logger
	Hub    *events.Hub
	Ledger LedgerReader
	Info   StatusInfo

	// Run hooks are provided by main so runs triggered over HTTP share
	// the same lock and wiring as scheduled ones.
	RunIngest    func(ctx context.Context) (tracker.RunStats, error)
	RunReconcile func(ctx context.Context) (int, error)
}
