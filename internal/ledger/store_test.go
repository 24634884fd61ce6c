package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobtrack-engine/internal/domain"
)

// fakeBackend is an in-memory Backend for exercising the Store contract.
type fakeBackend struct {
	headers map[string][]string
	rows    map[string][][]string
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		headers: make(map[string][]string),
		rows:    make(map[string][][]string),
	}
}

func (f *fakeBackend) ReadRows(_ context.Context, table string) ([][]string, error) {
	return f.rows[table], nil
}

func (f *fakeBackend) AppendRow(_ context.Context, table string, row []string) error {
	f.rows[table] = append(f.rows[table], append([]string(nil), row...))
	return nil
}

func (f *fakeBackend) UpdateCell(_ context.Context, table string, rowIndex, colIndex int, value string) error {
	row := f.rows[table][rowIndex]
	for len(row) <= colIndex {
		row = append(row, "")
	}
	row[colIndex] = value
	f.rows[table][rowIndex] = row
	return nil
}

func (f *fakeBackend) EnsureHeaders(_ context.Context, table string, headers []string) error {
	if _, ok := f.headers[table]; !ok {
		f.headers[table] = headers
	}
	return nil
}

func newTestStore() (*Store, *fakeBackend) {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	fb := newFakeBackend()
	return NewStore(fb, log), fb
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestInit_WritesHeadersOnce(t *testing.T) {
	s, fb := newTestStore()
	ctx := context.Background()

	require.NoError(t, s.Init(ctx))
	assert.Equal(t, ApplicationHeaders(), fb.headers[TableApplications])
	assert.Equal(t, RejectionHeaders(), fb.headers[TableRejections])

	fb.headers[TableApplications][0] = "edited"
	require.NoError(t, s.Init(ctx))
	assert.Equal(t, "edited", fb.headers[TableApplications][0])
}

func TestApplicationRoundTrip(t *testing.T) {
	s, fb := newTestStore()
	ctx := context.Background()

	rec := domain.ApplicationRecord{
		Position:    "Backend Engineer",
		JobID:       "R123",
		Company:     "Whatnot",
		Location:    "Remote",
		AppliedDate: date(2026, 8, 20),
		EmailLink:   "https://mail.google.com/mail/u/0/#inbox/abc123",
		Status:      domain.StatusApplied,
		LastUpdated: date(2026, 8, 20),
	}
	require.NoError(t, s.AppendApplication(ctx, rec))

	// column order is the external contract
	row := fb.rows[TableApplications][0]
	assert.Equal(t, []string{
		"Backend Engineer", "R123", "Whatnot", "Remote", "2026-08-20",
		"", "https://mail.google.com/mail/u/0/#inbox/abc123", "", "Applied", "2026-08-20",
	}, row)

	apps, err := s.Applications(ctx)
	require.NoError(t, err)
	require.Len(t, apps, 1)
	assert.Equal(t, 0, apps[0].Index)
	assert.Equal(t, rec, apps[0].Rec)
}

func TestRejectionRoundTrip(t *testing.T) {
	s, fb := newTestStore()
	ctx := context.Background()

	rec := domain.RejectionRecord{
		ReceivedDate: date(2026, 8, 25),
		Company:      "Acme",
		Position:     "SRE",
		EmailLink:    "https://mail.google.com/mail/u/0/#inbox/def456",
		Notes:        "Match to main sheet manually",
	}
	require.NoError(t, s.AppendRejection(ctx, rec))

	assert.Equal(t, []string{
		"2026-08-25", "Acme", "SRE", "", "https://mail.google.com/mail/u/0/#inbox/def456",
		"Match to main sheet manually",
	}, fb.rows[TableRejections][0])

	rejs, err := s.Rejections(ctx)
	require.NoError(t, err)
	require.Len(t, rejs, 1)
	assert.Equal(t, rec, rejs[0].Rec)
}

func TestUpdateApplicationStatus(t *testing.T) {
	s, fb := newTestStore()
	ctx := context.Background()

	require.NoError(t, s.AppendApplication(ctx, domain.ApplicationRecord{
		Position: "SRE", Company: "Acme",
		EmailLink: "https://mail.google.com/mail/u/0/#inbox/aaa1",
		Status:    domain.StatusApplied,
	}))
	require.NoError(t, s.AppendApplication(ctx, domain.ApplicationRecord{
		Position: "Dev", Company: "Beta",
		EmailLink: "https://mail.google.com/mail/u/0/#inbox/bbb2",
		Status:    domain.StatusApplied,
	}))

	require.NoError(t, s.UpdateApplicationStatus(ctx, 1, domain.StatusRejected,
		date(2026, 8, 26), "https://mail.google.com/mail/u/0/#inbox/ccc3"))

	// untouched row
	assert.Equal(t, "Applied", fb.rows[TableApplications][0][appColStatus])

	// targeted row
	assert.Equal(t, "Rejected", fb.rows[TableApplications][1][appColStatus])
	assert.Equal(t, "2026-08-26", fb.rows[TableApplications][1][appColLastUpdated])
	assert.Equal(t, "https://mail.google.com/mail/u/0/#inbox/ccc3", fb.rows[TableApplications][1][appColEmailLink])
}

func TestUpdateApplicationStatus_KeepsLinkWhenEmpty(t *testing.T) {
	s, fb := newTestStore()
	ctx := context.Background()

	require.NoError(t, s.AppendApplication(ctx, domain.ApplicationRecord{
		Position: "SRE", Company: "Acme",
		EmailLink: "https://mail.google.com/mail/u/0/#inbox/keep1",
		Status:    domain.StatusApplied,
	}))

	require.NoError(t, s.UpdateApplicationStatus(ctx, 0, domain.StatusRejected, date(2026, 8, 26), ""))
	assert.Equal(t, "https://mail.google.com/mail/u/0/#inbox/keep1", fb.rows[TableApplications][0][appColEmailLink])
}

func TestExistingThreadIDs(t *testing.T) {
	s, _ := newTestStore()
	ctx := context.Background()

	require.NoError(t, s.AppendApplication(ctx, domain.ApplicationRecord{
		Company:   "Acme",
		EmailLink: "https://mail.google.com/mail/u/0/#inbox/abc123",
	}))
	require.NoError(t, s.AppendRejection(ctx, domain.RejectionRecord{
		Company:   "Beta",
		EmailLink: "https://mail.google.com/mail/u/0/#inbox/def456",
	}))
	// a row with no recognizable reference contributes nothing
	require.NoError(t, s.AppendRejection(ctx, domain.RejectionRecord{Company: "Gamma"}))

	ids, err := s.ExistingThreadIDs(ctx)
	require.NoError(t, err)
	assert.Len(t, ids, 2)
	assert.Contains(t, ids, "abc123")
	assert.Contains(t, ids, "def456")
}

func TestParseDate_Lenient(t *testing.T) {
	assert.Equal(t, date(2026, 8, 20), parseDate("2026-08-20"))
	assert.True(t, parseDate("not a date").IsZero())
	assert.True(t, parseDate("").IsZero())
	assert.False(t, parseDate("2026-08-20T15:04:05Z").IsZero())
}
