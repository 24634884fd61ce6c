package tracker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobtrack-engine/internal/domain"
	"jobtrack-engine/internal/ledger"
)

func appRow(i int, rec domain.ApplicationRecord) ledger.ApplicationRow {
	if rec.Status == "" {
		rec.Status = domain.StatusApplied
	}
	return ledger.ApplicationRow{Index: i, Rec: rec}
}

func rejRow(i int, rec domain.RejectionRecord) ledger.RejectionRow {
	return ledger.RejectionRow{Index: i, Rec: rec}
}

func TestPlanMatchesJobIDBeatsCompanyPosition(t *testing.T) {
	// The same application row matches the rejection both ways; the plan
	// must record it as a Job ID match.
	apps := []ledger.ApplicationRow{
		appRow(0, domain.ApplicationRecord{Company: "Acme", Position: "Dev", JobID: "J-9"}),
	}
	rejs := []ledger.RejectionRow{
		rejRow(0, domain.RejectionRecord{Company: "Acme", Position: "Dev", JobID: "J-9"}),
	}

	plan := PlanMatches(apps, rejs)
	require.Len(t, plan, 1)
	assert.Equal(t, MatchByJobID, plan[0].Kind)
	assert.Equal(t, 0, plan[0].AppIndex)
}

func TestPlanMatchesFallbackIsCaseAndSpaceInsensitive(t *testing.T) {
	apps := []ledger.ApplicationRow{
		appRow(0, domain.ApplicationRecord{Company: "  ACME Corp ", Position: "backend ENGINEER"}),
	}
	rejs := []ledger.RejectionRow{
		rejRow(0, domain.RejectionRecord{Company: "acme corp", Position: " Backend Engineer "}),
	}

	plan := PlanMatches(apps, rejs)
	require.Len(t, plan, 1)
	assert.Equal(t, MatchByCompany, plan[0].Kind)
}

func TestPlanMatchesFirstLiveRowWins(t *testing.T) {
	apps := []ledger.ApplicationRow{
		appRow(0, domain.ApplicationRecord{Company: "Acme", Position: "Dev", Status: domain.StatusRejected}),
		appRow(1, domain.ApplicationRecord{Company: "Acme", Position: "Dev"}),
		appRow(2, domain.ApplicationRecord{Company: "Acme", Position: "Dev"}),
	}
	rejs := []ledger.RejectionRow{
		rejRow(0, domain.RejectionRecord{Company: "Acme", Position: "Dev"}),
	}

	plan := PlanMatches(apps, rejs)
	require.Len(t, plan, 1)
	assert.Equal(t, 1, plan[0].AppIndex, "terminal rows are passed over, then first live row wins")
}

func TestPlanMatchesEachApplicationClaimedOnce(t *testing.T) {
	apps := []ledger.ApplicationRow{
		appRow(0, domain.ApplicationRecord{Company: "Acme", Position: "Dev"}),
	}
	rejs := []ledger.RejectionRow{
		rejRow(0, domain.RejectionRecord{Company: "Acme", Position: "Dev"}),
		rejRow(1, domain.RejectionRecord{Company: "Acme", Position: "Dev"}),
	}

	plan := PlanMatches(apps, rejs)
	require.Len(t, plan, 1)
	assert.Equal(t, 0, plan[0].RejIndex, "second rejection finds no free application")
}

func TestPlanMatchesSkipsAlreadyMarkedRejections(t *testing.T) {
	apps := []ledger.ApplicationRow{
		appRow(0, domain.ApplicationRecord{Company: "Acme", Position: "Dev"}),
	}
	rejs := []ledger.RejectionRow{
		rejRow(0, domain.RejectionRecord{Company: "Acme", Position: "Dev", Notes: "✓ Matched (Job ID)"}),
	}

	assert.Empty(t, PlanMatches(apps, rejs))
}

func TestPlanMatchesNoUnknownExplosion(t *testing.T) {
	// Empty keys never match. A rejection with no Job ID and a blank
	// company must not claim anything.
	apps := []ledger.ApplicationRow{
		appRow(0, domain.ApplicationRecord{Company: "", Position: ""}),
	}
	rejs := []ledger.RejectionRow{
		rejRow(0, domain.RejectionRecord{Company: "", Position: ""}),
	}

	assert.Empty(t, PlanMatches(apps, rejs))
}

func TestMatcherRunWritesBothSides(t *testing.T) {
	received := time.Date(2026, 8, 21, 17, 45, 0, 0, time.UTC)

	led := &fakeLedger{
		apps: []domain.ApplicationRecord{
			{Company: "Acme", Position: "Dev", Status: domain.StatusApplied, EmailLink: "https://mail.google.com/mail/u/0/#inbox/aaa"},
		},
		rejs: []domain.RejectionRecord{
			{Company: "Acme", Position: "Dev", ReceivedDate: received,
				EmailLink: "https://mail.google.com/mail/u/0/#inbox/bbb",
				Notes:     "Match to main sheet manually"},
		},
	}

	m := &Matcher{Ledger: led, Log: testLogger()}
	n, err := m.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	app := led.apps[0]
	assert.Equal(t, domain.StatusRejected, app.Status)
	assert.Equal(t, time.Date(2026, 8, 21, 0, 0, 0, 0, time.UTC), app.LastUpdated)
	assert.Equal(t, "https://mail.google.com/mail/u/0/#inbox/bbb", app.EmailLink,
		"application link is replaced by the rejection's link")

	assert.Equal(t, "✓ Matched (Company+Position)", led.rejs[0].Notes)
}

func TestMatcherRunIsIdempotent(t *testing.T) {
	led := &fakeLedger{
		apps: []domain.ApplicationRecord{
			{Company: "Acme", Position: "Dev", Status: domain.StatusApplied},
		},
		rejs: []domain.RejectionRecord{
			{Company: "Acme", Position: "Dev"},
		},
	}

	m := &Matcher{Ledger: led, Log: testLogger()}
	n, err := m.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, n)

	n, err = m.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n, "second pass finds nothing to link")
	assert.Equal(t, domain.StatusRejected, led.apps[0].Status)
}

func TestMatcherRunUnmatchedRejectionLeavesLedgersAlone(t *testing.T) {
	led := &fakeLedger{
		apps: []domain.ApplicationRecord{
			{Company: "Acme", Position: "Dev", Status: domain.StatusApplied},
		},
		rejs: []domain.RejectionRecord{
			{Company: "Globex", Position: "SRE", Notes: "Match to main sheet manually"},
		},
	}

	m := &Matcher{Ledger: led, Log: testLogger()}
	n, err := m.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, domain.StatusApplied, led.apps[0].Status)
	assert.Equal(t, "Match to main sheet manually", led.rejs[0].Notes)
}
