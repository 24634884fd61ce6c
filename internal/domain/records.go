package domain

import "time"

// EmailType is the classification assigned to one email by the extractor.
type EmailType string

const (
	EmailConfirmation EmailType = "confirmation"
	EmailRejection    EmailType = "rejection"
	EmailOther        EmailType = "other"
)

// Status of an application row. Rejected is terminal.
type Status string

const (
	StatusApplied  Status = "Applied"
	StatusRejected Status = "Rejected"
)

// Extraction is the transient output of the classification step.
// Company and Position default to "Unknown" when the model omits one of
// them; Location and JobID stay empty when the model returns null.
type Extraction struct {
	EmailType EmailType `json:"email_type"`
	Company   string    `json:"company"`
	Position  string    `json:"position"`
	Location  string    `json:"location"`
	JobID     string    `json:"job_id"`
}

// ApplicationRecord is one row in the Applications ledger.
// SalaryRange is user-entered; the pipeline never writes it.
type ApplicationRecord struct {
	Position    string
	JobID       string
	Company     string
	Location    string
	AppliedDate time.Time
	SalaryRange string
	EmailLink   string
	Notes       string
	Status      Status
	LastUpdated time.Time
}

// RejectionRecord is one row in the Rejections ledger. Notes carries the
// matched marker once reconciliation has linked it to an application.
type RejectionRecord struct {
	ReceivedDate time.Time
	Company      string
	Position     string
	JobID        string
	EmailLink    string
	Notes        string
}

// DateOnly drops the time-of-day component so same-day comparisons are
// stable regardless of the source timestamp.
func DateOnly(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
