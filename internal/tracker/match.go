package tracker

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"jobtrack-engine/internal/domain"
	"jobtrack-engine/internal/ledger"
)

// MatchedMarker prefixes the note a rejection row gets when it has been
// linked to an application. Its presence is what makes reconciliation
// idempotent: marked rows are never considered again.
const MatchedMarker = "✓ Matched"

type MatchKind string

const (
	MatchByJobID   MatchKind = "Job ID"
	MatchByCompany MatchKind = "Company+Position"
)

// MatchUpdate pairs one unmatched rejection with the application row it
// should flip to Rejected.
type MatchUpdate struct {
	AppIndex int
	RejIndex int
	Kind     MatchKind
	Rej      domain.RejectionRecord
}

// PlanMatches computes the reconciliation plan over ledger snapshots.
// Rejections are visited in row order; for each, applications are scanned
// in row order and the first live match wins. Within a single application
// the Job ID comparison runs before the Company+Position fallback, so a
// Job ID hit on a later row never outranks an earlier fallback hit.
func PlanMatches(apps []ledger.ApplicationRow, rejs []ledger.RejectionRow) []MatchUpdate {
	var plan []MatchUpdate
	claimed := make(map[int]struct{})

	for _, rj := range rejs {
		if strings.Contains(rj.Rec.Notes, MatchedMarker) {
			continue
		}

		rejID := strings.TrimSpace(rj.Rec.JobID)
		rejCompany := foldKey(rj.Rec.Company)
		rejPosition := foldKey(rj.Rec.Position)

		for _, app := range apps {
			if app.Rec.Status == domain.StatusRejected {
				continue
			}
			if _, taken := claimed[app.Index]; taken {
				continue
			}

			var kind MatchKind
			switch {
			case rejID != "" && strings.TrimSpace(app.Rec.JobID) == rejID:
				kind = MatchByJobID
			case rejCompany != "" && rejPosition != "" &&
				foldKey(app.Rec.Company) == rejCompany &&
				foldKey(app.Rec.Position) == rejPosition:
				kind = MatchByCompany
			default:
				continue
			}

			plan = append(plan, MatchUpdate{
				AppIndex: app.Index,
				RejIndex: rj.Index,
				Kind:     kind,
				Rej:      rj.Rec,
			})
			claimed[app.Index] = struct{}{}
			break
		}
	}
	return plan
}

func foldKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Matcher applies reconciliation plans to the ledger.
type Matcher struct {
	Ledger Ledger
	Log    *logrus.Logger
}

// Run performs one reconciliation pass and returns the number of pairs
// linked. Each match writes both sides before the next is attempted, so a
// pass interrupted midway leaves only fully-linked pairs behind.
func (m *Matcher) Run(ctx context.Context) (int, error) {
	apps, err := m.Ledger.Applications(ctx)
	if err != nil {
		return 0, fmt.Errorf("read applications: %w", err)
	}
	rejs, err := m.Ledger.Rejections(ctx)
	if err != nil {
		return 0, fmt.Errorf("read rejections: %w", err)
	}

	plan := PlanMatches(apps, rejs)
	for i, mu := range plan {
		if err := ctx.Err(); err != nil {
			return i, err
		}

		when := domain.DateOnly(mu.Rej.ReceivedDate)
		if err := m.Ledger.UpdateApplicationStatus(ctx, mu.AppIndex, domain.StatusRejected, when, mu.Rej.EmailLink); err != nil {
			return i, fmt.Errorf("update application row %d: %w", mu.AppIndex, err)
		}
		note := fmt.Sprintf("%s (%s)", MatchedMarker, mu.Kind)
		if err := m.Ledger.MarkRejectionMatched(ctx, mu.RejIndex, note); err != nil {
			return i, fmt.Errorf("mark rejection row %d: %w", mu.RejIndex, err)
		}

		m.Log.WithFields(logrus.Fields{
			"company":  mu.Rej.Company,
			"position": mu.Rej.Position,
			"kind":     string(mu.Kind),
		}).Info("[reconcile] linked rejection to application")
	}

	m.Log.WithField("matched", len(plan)).Info("[reconcile] pass complete")
	return len(plan), nil
}
