package ledger

import (
	"context"
	"fmt"
	"net/http"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// SheetsBackend is the spreadsheet ledger: one tab per table, header in
// row 1, data from row 2 down.
type SheetsBackend struct {
	svc           *sheets.Service
	spreadsheetID string
}

func NewSheetsBackend(ctx context.Context, hc *http.Client, spreadsheetID string) (*SheetsBackend, error) {
	svc, err := sheets.NewService(ctx, option.WithHTTPClient(hc))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return &SheetsBackend{svc: svc, spreadsheetID: spreadsheetID}, nil
}

func (b *SheetsBackend) ReadRows(ctx context.Context, table string) ([][]string, error) {
	rng := fmt.Sprintf("%s!A2:%s", table, colLetter(tableWidth(table)-1))
	resp, err := b.svc.Spreadsheets.Values.Get(b.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, err
	}

	out := make([][]string, 0, len(resp.Values))
	for _, row := range resp.Values {
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = fmt.Sprint(v)
		}
		out = append(out, cells)
	}
	return out, nil
}

func (b *SheetsBackend) AppendRow(ctx context.Context, table string, row []string) error {
	values := make([]interface{}, len(row))
	for i, c := range row {
		values[i] = c
	}

	_, err := b.svc.Spreadsheets.Values.Append(b.spreadsheetID, table+"!A1",
		&sheets.ValueRange{Values: [][]interface{}{values}}).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	return err
}

func (b *SheetsBackend) UpdateCell(ctx context.Context, table string, rowIndex, colIndex int, value string) error {
	// +2: skip the header row, A1 notation is 1-based
	rng := fmt.Sprintf("%s!%s%d", table, colLetter(colIndex), rowIndex+2)
	_, err := b.svc.Spreadsheets.Values.Update(b.spreadsheetID, rng,
		&sheets.ValueRange{Values: [][]interface{}{{value}}}).
		ValueInputOption("RAW").
		Context(ctx).Do()
	return err
}

// EnsureHeaders creates the tab when missing and writes the header row the
// first time the tab is found empty.
func (b *SheetsBackend) EnsureHeaders(ctx context.Context, table string, headers []string) error {
	if err := b.ensureSheet(ctx, table); err != nil {
		return err
	}

	rng := fmt.Sprintf("%s!A1:%s1", table, colLetter(len(headers)-1))
	resp, err := b.svc.Spreadsheets.Values.Get(b.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return err
	}
	if len(resp.Values) > 0 {
		return nil
	}

	values := make([]interface{}, len(headers))
	for i, h := range headers {
		values[i] = h
	}
	_, err = b.svc.Spreadsheets.Values.Update(b.spreadsheetID, table+"!A1",
		&sheets.ValueRange{Values: [][]interface{}{values}}).
		ValueInputOption("RAW").
		Context(ctx).Do()
	return err
}

func (b *SheetsBackend) ensureSheet(ctx context.Context, table string) error {
	ss, err := b.svc.Spreadsheets.Get(b.spreadsheetID).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("open spreadsheet: %w", err)
	}
	for _, sh := range ss.Sheets {
		if sh.Properties != nil && sh.Properties.Title == table {
			return nil
		}
	}

	_, err = b.svc.Spreadsheets.BatchUpdate(b.spreadsheetID, &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{
			AddSheet: &sheets.AddSheetRequest{
				Properties: &sheets.SheetProperties{Title: table},
			},
		}},
	}).Context(ctx).Do()
	return err
}

func tableWidth(table string) int {
	if table == TableApplications {
		return appColCount
	}
	return rejColCount
}

// colLetter turns a 0-based column index into its A1 letter. Both tables
// fit inside A..Z.
func colLetter(i int) string {
	return string(rune('A' + i))
}
