package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/matsen/funnelvision/internal/deal"
	_ "modernc.org/sqlite"
)

// DB wraps a SQLite database of deals. It implements deal.Searcher.
type DB struct {
	db *sql.DB
}

const selectDealFields = `id, name, stage, amount, close_date, last_modified`

var sortColumns = map[deal.Field]string{
	deal.FieldName:         "name",
	deal.FieldStage:        "stage",
	deal.FieldAmount:       "CAST(amount AS REAL)",
	deal.FieldCloseDate:    "close_date",
	deal.FieldLastModified: "last_modified",
}

// OpenDB opens or creates a SQLite database at the given path.
func OpenDB(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite doesn't support concurrent writes

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &DB{db: db}, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.db.Close()
}

func createSchema(db *sql.DB) error {
	schema := `
		CREATE TABLE IF NOT EXISTS deals (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			stage TEXT NOT NULL,
			amount TEXT NOT NULL,
			close_date TEXT,        -- YYYY-MM-DD
			last_modified INTEGER   -- unix milliseconds
		);

		CREATE INDEX IF NOT EXISTS idx_deals_stage ON deals(stage);
		CREATE INDEX IF NOT EXISTS idx_deals_last_modified ON deals(last_modified);
	`

	_, err := db.Exec(schema)
	return err
}

// RebuildFromJSONL clears the database and rebuilds it from a JSONL file.
func (d *DB) RebuildFromJSONL(jsonlPath string) (int, error) {
	deals, err := ReadAll(jsonlPath)
	if err != nil {
		return 0, fmt.Errorf("reading JSONL: %w", err)
	}
	if err := d.Replace(deals); err != nil {
		return 0, err
	}
	return len(deals), nil
}

// Replace swaps the stored deals for the given set in one transaction.
func (d *DB) Replace(deals []deal.Deal) error {
	tx, err := d.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM deals"); err != nil {
		return fmt.Errorf("clearing deals table: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO deals (` + selectDealFields + `) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing deals insert: %w", err)
	}
	defer stmt.Close()

	for i, dl := range deals {
		id := dl.ID
		if id == "" {
			id = fmt.Sprintf("deal-%d", i+1)
		}
		var closeDate, modified any
		if !dl.CloseDate.IsZero() {
			closeDate = dl.CloseDate.UTC().Format(deal.DateLayout)
		}
		if !dl.LastModified.IsZero() {
			modified = dl.LastModified.UnixMilli()
		}
		if _, err := stmt.Exec(id, dl.Name, dl.Stage, dl.Amount.String(), closeDate, modified); err != nil {
			return fmt.Errorf("inserting deal %s: %w", id, err)
		}
	}

	return tx.Commit()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

// Search evaluates the filter in SQL. Close dates are compared by calendar
// date, so the range is inclusive of both ends.
func (d *DB) Search(ctx context.Context, f deal.Filter) ([]deal.Deal, error) {
	query := `SELECT ` + selectDealFields + ` FROM deals WHERE 1=1`
	var args []any

	switch {
	case len(f.StageIn) > 0:
		query += " AND stage IN (" + placeholders(len(f.StageIn)) + ")"
		for _, s := range f.StageIn {
			args = append(args, s)
		}
	case len(f.StageNotIn) > 0:
		query += " AND stage NOT IN (" + placeholders(len(f.StageNotIn)) + ")"
		for _, s := range f.StageNotIn {
			args = append(args, s)
		}
	}
	if f.AmountPositive {
		query += " AND CAST(amount AS REAL) > 0"
	}
	if f.CloseDate != nil {
		query += " AND close_date BETWEEN ? AND ?"
		args = append(args, f.CloseDate.Start.Format(deal.DateLayout), f.CloseDate.End.Format(deal.DateLayout))
	}
	if !f.ModifiedBefore.IsZero() {
		query += " AND last_modified IS NOT NULL AND last_modified < ?"
		args = append(args, f.ModifiedBefore.UnixMilli())
	}

	if col, ok := sortColumns[f.SortBy]; ok {
		dir := "DESC"
		if f.SortAscending {
			dir = "ASC"
		}
		query += " ORDER BY " + col + " " + dir + ", id"
	} else {
		query += " ORDER BY id"
	}

	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("searching deals: %w", err)
	}
	defer rows.Close()

	var deals []deal.Deal
	for rows.Next() {
		dl, err := scanDeal(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning deal: %w", err)
		}
		deals = append(deals, dl)
	}
	return deals, rows.Err()
}

// Count returns the total number of deals.
func (d *DB) Count() (int, error) {
	var count int
	err := d.db.QueryRow("SELECT COUNT(*) FROM deals").Scan(&count)
	return count, err
}

func scanDeal(rows *sql.Rows) (deal.Deal, error) {
	var dl deal.Deal
	var amount string
	var closeDate sql.NullString
	var modified sql.NullInt64

	if err := rows.Scan(&dl.ID, &dl.Name, &dl.Stage, &amount, &closeDate, &modified); err != nil {
		return deal.Deal{}, err
	}

	dl.Amount = deal.ParseAmount(amount)
	if closeDate.Valid {
		if t, err := time.Parse(deal.DateLayout, closeDate.String); err == nil {
			dl.CloseDate = t
		}
	}
	if modified.Valid {
		dl.LastModified = time.UnixMilli(modified.Int64).UTC()
	}
	return dl, nil
}
