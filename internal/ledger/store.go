package ledger

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/sirupsen/logrus"

	"jobtrack-engine/internal/domain"
)

const dateLayout = "2006-01-02"

// threadRefRe extracts the thread identifier embedded in a stored email
// link. Both tables use the same reference pattern.
var threadRefRe = regexp.MustCompile(`inbox/([a-zA-Z0-9]+)`)

type Store struct {
	b   Backend
	log *logrus.Logger
}

func NewStore(b Backend, log *logrus.Logger) *Store {
	return &Store{b: b, log: log}
}

// Init writes the header rows the first time a table is found empty.
func (s *Store) Init(ctx context.Context) error {
	if err := s.b.EnsureHeaders(ctx, TableApplications, ApplicationHeaders()); err != nil {
		return fmt.Errorf("init %s: %w", TableApplications, err)
	}
	if err := s.b.EnsureHeaders(ctx, TableRejections, RejectionHeaders()); err != nil {
		return fmt.Errorf("init %s: %w", TableRejections, err)
	}
	return nil
}

// ApplicationRow pairs a record with its 0-based data-row index, the
// handle used for targeted updates.
type ApplicationRow struct {
	Index int
	Rec   domain.ApplicationRecord
}

type RejectionRow struct {
	Index int
	Rec   domain.RejectionRecord
}

func (s *Store) AppendApplication(ctx context.Context, rec domain.ApplicationRecord) error {
	return s.b.AppendRow(ctx, TableApplications, marshalApplication(rec))
}

func (s *Store) AppendRejection(ctx context.Context, rec domain.RejectionRecord) error {
	return s.b.AppendRow(ctx, TableRejections, marshalRejection(rec))
}

func (s *Store) Applications(ctx context.Context) ([]ApplicationRow, error) {
	rows, err := s.b.ReadRows(ctx, TableApplications)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", TableApplications, err)
	}
	out := make([]ApplicationRow, 0, len(rows))
	for i, row := range rows {
		out = append(out, ApplicationRow{Index: i, Rec: unmarshalApplication(row)})
	}
	return out, nil
}

func (s *Store) Rejections(ctx context.Context) ([]RejectionRow, error) {
	rows, err := s.b.ReadRows(ctx, TableRejections)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", TableRejections, err)
	}
	out := make([]RejectionRow, 0, len(rows))
	for i, row := range rows {
		out = append(out, RejectionRow{Index: i, Rec: unmarshalRejection(row)})
	}
	return out, nil
}

// UpdateApplicationStatus marks an application row, stamps its last-updated
// date, and overwrites the email link when the caller supplies one (empty
// keeps the existing link).
func (s *Store) UpdateApplicationStatus(ctx context.Context, index int, status domain.Status, lastUpdated time.Time, emailLink string) error {
	if err := s.b.UpdateCell(ctx, TableApplications, index, appColStatus, string(status)); err != nil {
		return fmt.Errorf("update status row %d: %w", index, err)
	}
	if err := s.b.UpdateCell(ctx, TableApplications, index, appColLastUpdated, formatDate(lastUpdated)); err != nil {
		return fmt.Errorf("update last-updated row %d: %w", index, err)
	}
	if emailLink != "" {
		if err := s.b.UpdateCell(ctx, TableApplications, index, appColEmailLink, emailLink); err != nil {
			return fmt.Errorf("update email link row %d: %w", index, err)
		}
	}
	return nil
}

func (s *Store) MarkRejectionMatched(ctx context.Context, index int, note string) error {
	if err := s.b.UpdateCell(ctx, TableRejections, index, rejColNotes, note); err != nil {
		return fmt.Errorf("mark rejection row %d: %w", index, err)
	}
	return nil
}

// ExistingThreadIDs scans the email-link column of both tables and pulls
// out every embedded thread identifier. This set is the dedup guard.
func (s *Store) ExistingThreadIDs(ctx context.Context) (map[string]struct{}, error) {
	ids := make(map[string]struct{})

	apps, err := s.b.ReadRows(ctx, TableApplications)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", TableApplications, err)
	}
	for _, row := range apps {
		addThreadID(ids, cell(row, appColEmailLink))
	}

	rejs, err := s.b.ReadRows(ctx, TableRejections)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", TableRejections, err)
	}
	for _, row := range rejs {
		addThreadID(ids, cell(row, rejColEmailLink))
	}

	return ids, nil
}

func addThreadID(ids map[string]struct{}, link string) {
	if link == "" {
		return
	}
	if m := threadRefRe.FindStringSubmatch(link); m != nil {
		ids[m[1]] = struct{}{}
	}
}

// ---- row (un)marshalling: the only place column order matters ----

func marshalApplication(r domain.ApplicationRecord) []string {
	row := make([]string, appColCount)
	row[appColPosition] = r.Position
	row[appColJobID] = r.JobID
	row[appColCompany] = r.Company
	row[appColLocation] = r.Location
	row[appColDate] = formatDate(r.AppliedDate)
	row[appColSalaryRange] = r.SalaryRange
	row[appColEmailLink] = r.EmailLink
	row[appColNotes] = r.Notes
	row[appColStatus] = string(r.Status)
	row[appColLastUpdated] = formatDate(r.LastUpdated)
	return row
}

func unmarshalApplication(row []string) domain.ApplicationRecord {
	return domain.ApplicationRecord{
		Position:    cell(row, appColPosition),
		JobID:       cell(row, appColJobID),
		Company:     cell(row, appColCompany),
		Location:    cell(row, appColLocation),
		AppliedDate: parseDate(cell(row, appColDate)),
		SalaryRange: cell(row, appColSalaryRange),
		EmailLink:   cell(row, appColEmailLink),
		Notes:       cell(row, appColNotes),
		Status:      domain.Status(cell(row, appColStatus)),
		LastUpdated: parseDate(cell(row, appColLastUpdated)),
	}
}

func marshalRejection(r domain.RejectionRecord) []string {
	row := make([]string, rejColCount)
	row[rejColDate] = formatDate(r.ReceivedDate)
	row[rejColCompany] = r.Company
	row[rejColPosition] = r.Position
	row[rejColJobID] = r.JobID
	row[rejColEmailLink] = r.EmailLink
	row[rejColNotes] = r.Notes
	return row
}

func unmarshalRejection(row []string) domain.RejectionRecord {
	return domain.RejectionRecord{
		ReceivedDate: parseDate(cell(row, rejColDate)),
		Company:      cell(row, rejColCompany),
		Position:     cell(row, rejColPosition),
		JobID:        cell(row, rejColJobID),
		EmailLink:    cell(row, rejColEmailLink),
		Notes:        cell(row, rejColNotes),
	}
}

func cell(row []string, i int) string {
	if i < len(row) {
		return row[i]
	}
	return ""
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(dateLayout)
}

func parseDate(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	if t, err := time.Parse(dateLayout, s); err == nil {
		return t
	}
	// tolerate rows typed in by hand with a timestamp attached
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	return time.Time{}
}
