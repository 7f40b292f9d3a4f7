package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/matsen/funnelvision/internal/deal"
	"github.com/shopspring/decimal"
)

var testPolicy = deal.Policy{
	Mode:   deal.PolicyOpenStages,
	Open:   deal.StageSet{{ID: "lead"}, {ID: "demo"}},
	Closed: []string{"closedwon", "closedlost"},
}

func day(s string) time.Time {
	t, _ := time.Parse(deal.DateLayout, s)
	return t
}

// setupTestDB creates a database holding a small, varied set of deals.
func setupTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := OpenDB(filepath.Join(t.TempDir(), "deals.db"))
	if err != nil {
		t.Fatalf("OpenDB() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })

	deals := []deal.Deal{
		{ID: "a", Name: "In range start", Stage: "lead", Amount: decimal.NewFromInt(100), CloseDate: day("2025-04-01"), LastModified: day("2025-01-01")},
		{ID: "b", Name: "In range end", Stage: "demo", Amount: decimal.NewFromInt(250), CloseDate: day("2025-06-30"), LastModified: day("2025-05-30")},
		{ID: "c", Name: "Out of range", Stage: "demo", Amount: decimal.NewFromInt(999), CloseDate: day("2025-07-01"), LastModified: day("2025-02-01")},
		{ID: "d", Name: "Won", Stage: "closedwon", Amount: decimal.NewFromInt(5000), CloseDate: day("2025-05-01"), LastModified: day("2024-12-01")},
		{ID: "e", Name: "Zero amount", Stage: "lead", Amount: decimal.Zero, CloseDate: day("2025-05-01"), LastModified: day("2025-03-01")},
		{ID: "f", Name: "Custom stage", Stage: "custom", Amount: decimal.NewFromInt(40), CloseDate: day("2025-05-01"), LastModified: day("2025-05-29")},
	}
	if err := db.Replace(deals); err != nil {
		t.Fatalf("Replace() error = %v", err)
	}
	return db
}

func ids(deals []deal.Deal) []string {
	out := make([]string, len(deals))
	for i, d := range deals {
		out[i] = d.ID
	}
	return out
}

func equalIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestDB_SearchCoverage(t *testing.T) {
	db := setupTestDB(t)
	q2, _ := deal.ParseDateRange("2025-04-01", "2025-06-30")

	tests := []struct {
		name   string
		filter deal.Filter
		want   []string
	}{
		{"open stages in Q2", deal.CoverageQuery(testPolicy, &q2), []string{"a", "b"}},
		{"open stages any time", deal.CoverageQuery(testPolicy, nil), []string{"a", "b", "c"}},
		{"exclude closed", deal.CoverageQuery(deal.Policy{Mode: deal.PolicyExcludeClosed, Closed: testPolicy.Closed}, &q2), []string{"a", "b", "f"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := db.Search(context.Background(), tt.filter)
			if err != nil {
				t.Fatalf("Search() error = %v", err)
			}
			if !equalIDs(ids(got), tt.want) {
				t.Errorf("Search() = %v, want %v", ids(got), tt.want)
			}
		})
	}
}

func TestDB_SearchStale(t *testing.T) {
	db := setupTestDB(t)
	now := day("2025-05-31")

	got, err := db.Search(context.Background(), deal.StaleQuery(testPolicy, now))
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	// Oldest first, open stages only, modified before 2025-05-01.
	want := []string{"a", "c", "e"}
	if !equalIDs(ids(got), want) {
		t.Errorf("stale deals = %v, want %v", ids(got), want)
	}
}

func TestDB_SearchLimit(t *testing.T) {
	db := setupTestDB(t)
	f := deal.StaleQuery(testPolicy, day("2025-05-31"))
	f.Limit = 1

	got, err := db.Search(context.Background(), f)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if !equalIDs(ids(got), []string{"a"}) {
		t.Errorf("Search() = %v, want [a]", ids(got))
	}
}

func TestDB_RebuildFromJSONL(t *testing.T) {
	db := setupTestDB(t)
	path := writeFile(t, `{"id":"x","name":"Only","stage":"lead","amount":"10","close_date":"2025-04-02"}`+"\n")

	n, err := db.RebuildFromJSONL(path)
	if err != nil {
		t.Fatalf("RebuildFromJSONL() error = %v", err)
	}
	if n != 1 {
		t.Errorf("RebuildFromJSONL() = %d, want 1", n)
	}
	count, err := db.Count()
	if err != nil || count != 1 {
		t.Errorf("Count() = %d, %v; want 1 (old deals cleared)", count, err)
	}

	got, _ := db.Search(context.Background(), deal.Filter{})
	if len(got) != 1 || !got[0].Amount.Equal(decimal.NewFromInt(10)) {
		t.Errorf("Search() = %+v", got)
	}
}

func TestDB_ReplaceAssignsMissingIDs(t *testing.T) {
	db, err := OpenDB(filepath.Join(t.TempDir(), "deals.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	if err := db.Replace([]deal.Deal{{Name: "one", Stage: "lead"}, {Name: "two", Stage: "lead"}}); err != nil {
		t.Fatalf("Replace() error = %v", err)
	}
	if count, _ := db.Count(); count != 2 {
		t.Errorf("Count() = %d, want 2", count)
	}
}
