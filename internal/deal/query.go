package deal

import (
	"fmt"
	"time"
)

const (
	// CoverageLimit caps the number of deals fetched for a coverage query.
	CoverageLimit = 100

	// StaleLimit caps the number of deals fetched for the stale-deal query.
	StaleLimit = 20

	// StaleAfter is how long a deal may go unmodified before it counts as stale.
	StaleAfter = 30 * 24 * time.Hour
)

// Field names a deal attribute a store can filter, sort or return.
type Field string

// Deal fields understood by every Searcher.
const (
	FieldName         Field = "name"
	FieldStage        Field = "stage"
	FieldAmount       Field = "amount"
	FieldCloseDate    Field = "close_date"
	FieldLastModified Field = "last_modified"
)

// Filter is a store-independent deal search.
//
// At most one of StageIn and StageNotIn is set; the query builders pick one
// according to the configured StagePolicy.
type Filter struct {
	StageIn        []string
	StageNotIn     []string
	AmountPositive bool
	CloseDate      *DateRange
	ModifiedBefore time.Time
	SortBy         Field
	SortAscending  bool
	Fields         []Field
	Limit          int
}

// StagePolicy selects how "open" deals are recognised.
type StagePolicy string

const (
	// PolicyOpenStages keeps deals whose stage is in the open allow-list.
	PolicyOpenStages StagePolicy = "open_stages"

	// PolicyExcludeClosed keeps deals whose stage is not a closed stage.
	PolicyExcludeClosed StagePolicy = "exclude_closed"
)

// ParseStagePolicy validates a policy name. Empty means PolicyOpenStages.
func ParseStagePolicy(s string) (StagePolicy, error) {
	switch StagePolicy(s) {
	case "", PolicyOpenStages:
		return PolicyOpenStages, nil
	case PolicyExcludeClosed:
		return PolicyExcludeClosed, nil
	default:
		return "", fmt.Errorf("unknown stage policy %q; valid: %s, %s", s, PolicyOpenStages, PolicyExcludeClosed)
	}
}

// Policy describes which stages count as open.
type Policy struct {
	Mode   StagePolicy
	Open   StageSet
	Closed []string
}

func (p Policy) applyStages(f *Filter) {
	if p.Mode == PolicyExcludeClosed {
		f.StageNotIn = append([]string(nil), p.Closed...)
		return
	}
	f.StageIn = p.Open.IDs()
}

var coverageFields = []Field{FieldName, FieldAmount, FieldStage, FieldCloseDate, FieldLastModified}

// CoverageQuery builds the open-pipeline search: open stages, amount > 0 and,
// when timeframe is non-nil, a close date within the timeframe.
func CoverageQuery(p Policy, timeframe *DateRange) Filter {
	f := Filter{
		AmountPositive: true,
		Fields:         coverageFields,
		Limit:          CoverageLimit,
	}
	p.applyStages(&f)
	if timeframe != nil {
		tf := *timeframe
		f.CloseDate = &tf
	}
	return f
}

// StaleQuery builds the stale-deal search: open deals not modified within
// StaleAfter of now, oldest first.
func StaleQuery(p Policy, now time.Time) Filter {
	f := Filter{
		ModifiedBefore: now.Add(-StaleAfter),
		SortBy:         FieldLastModified,
		SortAscending:  true,
		Fields:         coverageFields,
		Limit:          StaleLimit,
	}
	p.applyStages(&f)
	return f
}
