// Package deal defines CRM deal records, the filters used to search them,
// and the pipeline coverage calculation over a matched set.
package deal

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the calendar date format used for timeframes.
const DateLayout = "2006-01-02"

// Stage is a CRM pipeline stage identifier with a human label.
type Stage struct {
	ID    string `yaml:"id" json:"id"`
	Label string `yaml:"label" json:"label"`
}

// StageSet is a fixed set of stages, e.g. the stages considered open.
type StageSet []Stage

// IDs returns the stage identifiers in configured order.
func (s StageSet) IDs() []string {
	ids := make([]string, len(s))
	for i, st := range s {
		ids[i] = st.ID
	}
	return ids
}

// Label returns the label for id, falling back to the id itself.
func (s StageSet) Label(id string) string {
	for _, st := range s {
		if st.ID == id && st.Label != "" {
			return st.Label
		}
	}
	return id
}

// Deal is one deal as returned by a deal store. Deals are read-only.
type Deal struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Stage        string          `json:"stage"`
	Amount       decimal.Decimal `json:"amount"`
	CloseDate    time.Time       `json:"close_date,omitzero"`
	LastModified time.Time       `json:"last_modified,omitzero"`
}

// ParseAmount parses a CRM amount string. Absent, unparseable or negative
// amounts are treated as zero.
func ParseAmount(s string) decimal.Decimal {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil || d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// DateRange is an inclusive range of calendar dates (UTC midnight).
type DateRange struct {
	Start time.Time
	End   time.Time
}

// ParseDateRange parses two YYYY-MM-DD dates and requires start <= end.
func ParseDateRange(start, end string) (DateRange, error) {
	s, err := time.Parse(DateLayout, strings.TrimSpace(start))
	if err != nil {
		return DateRange{}, fmt.Errorf("invalid start date %q; use YYYY-MM-DD", start)
	}
	e, err := time.Parse(DateLayout, strings.TrimSpace(end))
	if err != nil {
		return DateRange{}, fmt.Errorf("invalid end date %q; use YYYY-MM-DD", end)
	}
	if e.Before(s) {
		return DateRange{}, fmt.Errorf("start date %s is after end date %s", start, end)
	}
	return DateRange{Start: s, End: e}, nil
}

// EndOfDay returns the last instant of the range's end date.
func (r DateRange) EndOfDay() time.Time {
	return r.End.AddDate(0, 0, 1).Add(-time.Millisecond)
}

func (r DateRange) String() string {
	return r.Start.Format(DateLayout) + "/" + r.End.Format(DateLayout)
}

// Searcher is a deal store that can evaluate a Filter.
type Searcher interface {
	Search(ctx context.Context, f Filter) ([]Deal, error)
}
