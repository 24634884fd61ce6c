// Package tracker runs the two pipelines: ingestion (mailbox scan,
// classification, ledger recording) and reconciliation (linking rejection
// rows back to their application rows).
package tracker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"jobtrack-engine/internal/domain"
	"jobtrack-engine/internal/gemini"
	"jobtrack-engine/internal/ledger"
	"jobtrack-engine/internal/mail"
)

// Classifier is what the pipeline needs from the extraction model.
// Satisfied by *gemini.Client.
type Classifier interface {
	Classify(ctx context.Context, subject, body string) (*domain.Extraction, error)
}

// Ledger is the slice of *ledger.Store the pipelines touch.
type Ledger interface {
	AppendApplication(ctx context.Context, rec domain.ApplicationRecord) error
	AppendRejection(ctx context.Context, rec domain.RejectionRecord) error
	Applications(ctx context.Context) ([]ledger.ApplicationRow, error)
	Rejections(ctx context.Context) ([]ledger.RejectionRow, error)
	UpdateApplicationStatus(ctx context.Context, index int, status domain.Status, lastUpdated time.Time, emailLink string) error
	MarkRejectionMatched(ctx context.Context, index int, note string) error
	ExistingThreadIDs(ctx context.Context) (map[string]struct{}, error)
}

// rejectionNote seeds new rejection rows; reconciliation replaces it with
// the matched marker when it links the row to an application.
const rejectionNote = "Match to main sheet manually"

// errNotJobRelated flags an "other" classification: no row, no mark.
var errNotJobRelated = errors.New("not job related")

type Pipeline struct {
	Mail       mail.Source
	Ledger     Ledger
	Classifier Classifier
	Log        *logrus.Logger
	MaxPerRun  int
}

// RunStats summarizes one ingestion pass.
type RunStats struct {
	Found     int
	Processed int
	Skipped   int
	Errors    int
}

// Run executes one bounded ingestion pass. Classification and per-thread
// failures are absorbed and counted; only failures before the per-thread
// loop (dedup scan, mailbox search) abort the run.
func (p *Pipeline) Run(ctx context.Context) (RunStats, error) {
	var stats RunStats

	seen, err := p.Ledger.ExistingThreadIDs(ctx)
	if err != nil {
		return stats, fmt.Errorf("scan existing thread ids: %w", err)
	}

	max := p.MaxPerRun
	if max <= 0 {
		max = 50
	}
	ids, err := p.Mail.Search(ctx, max)
	if err != nil {
		return stats, fmt.Errorf("mailbox search: %w", err)
	}
	stats.Found = len(ids)
	p.Log.WithField("threads", len(ids)).Info("[ingest] candidate threads")

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		if _, ok := seen[id]; ok {
			// Already in a ledger; mark it so it stops surfacing.
			if err := p.Mail.MarkTracked(ctx, id); err != nil {
				p.Log.WithError(err).WithField("thread", id).Warn("[ingest] mark tracked")
			}
			stats.Skipped++
			continue
		}

		if err := p.processThread(ctx, id); err != nil {
			if errors.Is(err, errNotJobRelated) {
				stats.Skipped++
				continue
			}
			var skip *gemini.SkipError
			if errors.As(err, &skip) {
				p.Log.WithField("thread", id).WithField("reason", skip.Reason).Info("[ingest] skipped")
				stats.Skipped++
				continue
			}
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return stats, err
			}
			p.Log.WithError(err).WithField("thread", id).Error("[ingest] thread failed")
			stats.Errors++
			continue
		}
		stats.Processed++
		seen[id] = struct{}{}
	}

	p.Log.WithFields(logrus.Fields{
		"found":     stats.Found,
		"processed": stats.Processed,
		"skipped":   stats.Skipped,
		"errors":    stats.Errors,
	}).Info("[ingest] pass complete")
	return stats, nil
}

func (p *Pipeline) processThread(ctx context.Context, id string) error {
	msg, err := p.Mail.FirstMessage(ctx, id)
	if err != nil {
		return fmt.Errorf("fetch first message: %w", err)
	}

	ext, err := p.Classifier.Classify(ctx, msg.Subject, msg.Body)
	if err != nil {
		return err
	}

	received := msg.Date
	if received.IsZero() {
		received = time.Now()
	}
	link := mail.Permalink(id)

	switch ext.EmailType {
	case domain.EmailConfirmation:
		rec := domain.ApplicationRecord{
			Position:    ext.Position,
			JobID:       ext.JobID,
			Company:     ext.Company,
			Location:    ext.Location,
			AppliedDate: domain.DateOnly(received),
			EmailLink:   link,
			Status:      domain.StatusApplied,
			LastUpdated: domain.DateOnly(received),
		}
		if err := p.Ledger.AppendApplication(ctx, rec); err != nil {
			return fmt.Errorf("append application: %w", err)
		}
		p.Log.WithFields(logrus.Fields{
			"company":  ext.Company,
			"position": ext.Position,
		}).Info("[ingest] application recorded")

	case domain.EmailRejection:
		rec := domain.RejectionRecord{
			ReceivedDate: domain.DateOnly(received),
			Company:      ext.Company,
			Position:     ext.Position,
			JobID:        ext.JobID,
			EmailLink:    link,
			Notes:        rejectionNote,
		}
		if err := p.Ledger.AppendRejection(ctx, rec); err != nil {
			return fmt.Errorf("append rejection: %w", err)
		}
		p.Log.WithFields(logrus.Fields{
			"company":  ext.Company,
			"position": ext.Position,
		}).Info("[ingest] rejection recorded")

	default:
		// Leave the thread unmarked and write nothing.
		return errNotJobRelated
	}

	if err := p.Mail.MarkTracked(ctx, id); err != nil {
		return fmt.Errorf("mark tracked: %w", err)
	}
	return nil
}
