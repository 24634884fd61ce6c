package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteBackend keeps both tables in a single local database for offline
// operation. Rows store their cells as a JSON array so the column mapping
// stays in store.go, exactly like the spreadsheet backend.
type SQLiteBackend struct {
	db *sql.DB
}

func OpenSQLite(path string) (*SQLiteBackend, error) {
	// modernc sqlite uses DSN like: file:foo.db?_pragma=busy_timeout(5000)
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(1) // sqlite typically wants 1 writer
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	b := &SQLiteBackend{db: db}
	if err := b.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return b, nil
}

func (b *SQLiteBackend) Close() error {
	if b == nil || b.db == nil {
		return nil
	}
	return b.db.Close()
}

func (b *SQLiteBackend) migrate() error {
	tx, err := b.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var v int
	if err := tx.QueryRow(`PRAGMA user_version;`).Scan(&v); err != nil {
		return err
	}
	if v >= 1 {
		return tx.Commit()
	}

	if _, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS ledger_rows (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  tbl TEXT NOT NULL,
  cells TEXT NOT NULL DEFAULT '[]'
);
CREATE INDEX IF NOT EXISTS idx_ledger_rows_tbl ON ledger_rows(tbl, id);

CREATE TABLE IF NOT EXISTS ledger_headers (
  tbl TEXT PRIMARY KEY,
  cells TEXT NOT NULL
);
`); err != nil {
		return err
	}

	if _, err := tx.Exec(`PRAGMA user_version = 1;`); err != nil {
		return err
	}
	return tx.Commit()
}

func (b *SQLiteBackend) ReadRows(ctx context.Context, table string) ([][]string, error) {
	rows, err := b.db.QueryContext(ctx, `
SELECT cells FROM ledger_rows WHERE tbl = ? ORDER BY id;`, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out [][]string
	for rows.Next() {
		var cellsJSON string
		if err := rows.Scan(&cellsJSON); err != nil {
			return nil, err
		}
		var cells []string
		if err := json.Unmarshal([]byte(cellsJSON), &cells); err != nil {
			return nil, fmt.Errorf("row in %s is corrupt: %w", table, err)
		}
		out = append(out, cells)
	}
	return out, rows.Err()
}

func (b *SQLiteBackend) AppendRow(ctx context.Context, table string, row []string) error {
	cells, err := json.Marshal(row)
	if err != nil {
		return err
	}
	_, err = b.db.ExecContext(ctx, `
INSERT INTO ledger_rows(tbl, cells) VALUES(?, ?);`, table, string(cells))
	return err
}

func (b *SQLiteBackend) UpdateCell(ctx context.Context, table string, rowIndex, colIndex int, value string) error {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var id int64
	var cellsJSON string
	err = tx.QueryRowContext(ctx, `
SELECT id, cells FROM ledger_rows WHERE tbl = ? ORDER BY id LIMIT 1 OFFSET ?;`,
		table, rowIndex).Scan(&id, &cellsJSON)
	if err != nil {
		return fmt.Errorf("row %d in %s: %w", rowIndex, table, err)
	}

	var cells []string
	if err := json.Unmarshal([]byte(cellsJSON), &cells); err != nil {
		return fmt.Errorf("row %d in %s is corrupt: %w", rowIndex, table, err)
	}
	for len(cells) <= colIndex {
		cells = append(cells, "")
	}
	cells[colIndex] = value

	updated, err := json.Marshal(cells)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
UPDATE ledger_rows SET cells = ? WHERE id = ?;`, string(updated), id); err != nil {
		return err
	}
	return tx.Commit()
}

func (b *SQLiteBackend) EnsureHeaders(ctx context.Context, table string, headers []string) error {
	cells, err := json.Marshal(headers)
	if err != nil {
		return err
	}
	_, err = b.db.ExecContext(ctx, `
INSERT OR IGNORE INTO ledger_headers(tbl, cells) VALUES(?, ?);`, table, string(cells))
	return err
}
