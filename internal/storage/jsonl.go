// Package storage keeps a local copy of CRM deals: JSONL files as the
// interchange format and an SQLite database that answers deal searches.
package storage

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/matsen/funnelvision/internal/deal"
)

// MaxJSONLLineCapacity is the maximum buffer size for reading JSONL lines (1MB per line).
const MaxJSONLLineCapacity = 1024 * 1024

// Record is one deal line in a JSONL file.
//
// Amount is kept raw so that CRM exports with numeric, quoted or garbage
// amounts all import; anything unparseable becomes zero.
type Record struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Stage        string          `json:"stage"`
	Amount       json.RawMessage `json:"amount,omitempty"`
	CloseDate    string          `json:"close_date,omitempty"`
	LastModified string          `json:"last_modified,omitempty"`
}

// parseRecordTime accepts YYYY-MM-DD or RFC 3339. Empty means unset.
func parseRecordTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(deal.DateLayout, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q; use YYYY-MM-DD or RFC 3339", s)
	}
	return t.UTC(), nil
}

func rawAmount(raw json.RawMessage) string {
	s := strings.TrimSpace(string(raw))
	if s == "null" {
		return ""
	}
	return strings.Trim(s, `"`)
}

// Deal converts the record into a deal.
func (r Record) Deal() (deal.Deal, error) {
	closeDate, err := parseRecordTime(r.CloseDate)
	if err != nil {
		return deal.Deal{}, fmt.Errorf("close_date: %w", err)
	}
	modified, err := parseRecordTime(r.LastModified)
	if err != nil {
		return deal.Deal{}, fmt.Errorf("last_modified: %w", err)
	}
	return deal.Deal{
		ID:           r.ID,
		Name:         r.Name,
		Stage:        r.Stage,
		Amount:       deal.ParseAmount(rawAmount(r.Amount)),
		CloseDate:    closeDate,
		LastModified: modified,
	}, nil
}

// RecordFromDeal converts a deal into its JSONL form.
func RecordFromDeal(d deal.Deal) Record {
	r := Record{
		ID:     d.ID,
		Name:   d.Name,
		Stage:  d.Stage,
		Amount: json.RawMessage(`"` + d.Amount.String() + `"`),
	}
	if !d.CloseDate.IsZero() {
		r.CloseDate = d.CloseDate.UTC().Format(deal.DateLayout)
	}
	if !d.LastModified.IsZero() {
		r.LastModified = d.LastModified.UTC().Format(time.RFC3339)
	}
	return r
}

// ReadAll reads all deals from a JSONL file.
func ReadAll(path string) ([]deal.Deal, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil // Missing file returns empty slice
		}
		return nil, fmt.Errorf("opening deals file: %w", err)
	}
	defer f.Close()

	var deals []deal.Deal
	scanner := bufio.NewScanner(f)

	buf := make([]byte, MaxJSONLLineCapacity)
	scanner.Buffer(buf, MaxJSONLLineCapacity)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var rec Record
		if err := json.Unmarshal(line, &rec); err != nil {
			return nil, fmt.Errorf("parsing line %d: %w", lineNum, err)
		}
		d, err := rec.Deal()
		if err != nil {
			return nil, fmt.Errorf("parsing line %d: %w", lineNum, err)
		}
		deals = append(deals, d)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading deals file: %w", err)
	}

	return deals, nil
}

// WriteAll writes all deals to a JSONL file, replacing existing content.
func WriteAll(path string, deals []deal.Deal) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating deals file: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for i, d := range deals {
		data, err := json.Marshal(RecordFromDeal(d))
		if err != nil {
			return fmt.Errorf("encoding deal %d: %w", i, err)
		}
		if _, err := w.Write(append(data, '\n')); err != nil {
			return fmt.Errorf("writing deal %d: %w", i, err)
		}
	}

	return w.Flush()
}
