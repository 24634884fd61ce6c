// Package ledger persists the two tracking tables. The Store speaks typed
// records; the positional column layout lives only at the Backend boundary.
package ledger

import "context"

const (
	TableApplications = "Applications"
	TableRejections   = "Rejections"
)

// Applications column order. The layout is part of the external contract
// (operators read the sheet); never reorder.
const (
	appColPosition = iota
	appColJobID
	appColCompany
	appColLocation
	appColDate
	appColSalaryRange
	appColEmailLink
	appColNotes
	appColStatus
	appColLastUpdated
	appColCount
)

// Rejections column order.
const (
	rejColDate = iota
	rejColCompany
	rejColPosition
	rejColJobID
	rejColEmailLink
	rejColNotes
	rejColCount
)

func ApplicationHeaders() []string {
	return []string{"Position", "Job ID", "Company", "Location", "Date",
		"Salary Range", "Email Link", "Notes", "Status", "Last Updated"}
}

func RejectionHeaders() []string {
	return []string{"Date Received", "Company", "Position", "Job ID", "Email Link", "Notes"}
}

// Backend is a minimal table interface: full-table read, append, targeted
// cell update, lazy header creation. Row and column indexes are 0-based
// into the data rows (the header row is not addressable).
type Backend interface {
	ReadRows(ctx context.Context, table string) ([][]string, error)
	AppendRow(ctx context.Context, table string, row []string) error
	UpdateCell(ctx context.Context, table string, rowIndex, colIndex int, value string) error
	EnsureHeaders(ctx context.Context, table string, headers []string) error
}
