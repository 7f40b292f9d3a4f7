package hubspot

import (
	"strconv"
	"time"

	"github.com/matsen/funnelvision/internal/deal"
)

// HubSpot deal property names.
const (
	PropDealName     = "dealname"
	PropDealStage    = "dealstage"
	PropAmount       = "amount"
	PropCloseDate    = "closedate"
	PropLastModified = "hs_lastmodifieddate"
)

// Search filter operators.
const (
	OpIn      = "IN"
	OpNotIn   = "NOT_IN"
	OpGT      = "GT"
	OpLT      = "LT"
	OpBetween = "BETWEEN"
)

var fieldProps = map[deal.Field]string{
	deal.FieldName:         PropDealName,
	deal.FieldStage:        PropDealStage,
	deal.FieldAmount:       PropAmount,
	deal.FieldCloseDate:    PropCloseDate,
	deal.FieldLastModified: PropLastModified,
}

// SearchRequest is the body of POST /crm/v3/objects/deals/search.
type SearchRequest struct {
	FilterGroups []FilterGroup `json:"filterGroups"`
	Sorts        []Sort        `json:"sorts,omitempty"`
	Properties   []string      `json:"properties"`
	Limit        int           `json:"limit"`
}

// FilterGroup is a set of filters that are ANDed together.
type FilterGroup struct {
	Filters []Filter `json:"filters"`
}

// Filter is a single property condition.
type Filter struct {
	PropertyName string   `json:"propertyName"`
	Operator     string   `json:"operator"`
	Value        string   `json:"value,omitempty"`
	HighValue    string   `json:"highValue,omitempty"`
	Values       []string `json:"values,omitempty"`
}

// Sort orders search results by a property.
type Sort struct {
	PropertyName string `json:"propertyName"`
	Direction    string `json:"direction"`
}

type searchResponse struct {
	Total   int            `json:"total"`
	Results []searchResult `json:"results"`
}

type searchResult struct {
	ID         string             `json:"id"`
	Properties map[string]*string `json:"properties"`
}

func epochMillis(t time.Time) string {
	return strconv.FormatInt(t.UnixMilli(), 10)
}

// buildSearchRequest translates a store-independent filter into one
// HubSpot filter group.
func buildSearchRequest(f deal.Filter) SearchRequest {
	var filters []Filter

	switch {
	case len(f.StageIn) > 0:
		filters = append(filters, Filter{PropertyName: PropDealStage, Operator: OpIn, Values: f.StageIn})
	case len(f.StageNotIn) > 0:
		filters = append(filters, Filter{PropertyName: PropDealStage, Operator: OpNotIn, Values: f.StageNotIn})
	}
	if f.AmountPositive {
		filters = append(filters, Filter{PropertyName: PropAmount, Operator: OpGT, Value: "0"})
	}
	if f.CloseDate != nil {
		filters = append(filters, Filter{
			PropertyName: PropCloseDate,
			Operator:     OpBetween,
			Value:        epochMillis(f.CloseDate.Start),
			HighValue:    epochMillis(f.CloseDate.EndOfDay()),
		})
	}
	if !f.ModifiedBefore.IsZero() {
		filters = append(filters, Filter{PropertyName: PropLastModified, Operator: OpLT, Value: epochMillis(f.ModifiedBefore)})
	}

	req := SearchRequest{
		FilterGroups: []FilterGroup{{Filters: filters}},
		Limit:        f.Limit,
	}
	if req.Limit <= 0 || req.Limit > MaxSearchLimit {
		req.Limit = MaxSearchLimit
	}

	for _, field := range f.Fields {
		if p, ok := fieldProps[field]; ok {
			req.Properties = append(req.Properties, p)
		}
	}
	if len(req.Properties) == 0 {
		req.Properties = []string{PropDealName, PropAmount, PropDealStage}
	}

	if p, ok := fieldProps[f.SortBy]; ok {
		dir := "DESCENDING"
		if f.SortAscending {
			dir = "ASCENDING"
		}
		req.Sorts = []Sort{{PropertyName: p, Direction: dir}}
	}

	return req
}

func (r searchResult) prop(name string) string {
	if v, ok := r.Properties[name]; ok && v != nil {
		return *v
	}
	return ""
}

// parseTimestamp accepts ISO 8601 timestamps and epoch milliseconds.
func parseTimestamp(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC()
	}
	if t, err := time.Parse(deal.DateLayout, s); err == nil {
		return t
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC()
	}
	return time.Time{}
}

func (r searchResult) toDeal() deal.Deal {
	return deal.Deal{
		ID:           r.ID,
		Name:         r.prop(PropDealName),
		Stage:        r.prop(PropDealStage),
		Amount:       deal.ParseAmount(r.prop(PropAmount)),
		CloseDate:    parseTimestamp(r.prop(PropCloseDate)),
		LastModified: parseTimestamp(r.prop(PropLastModified)),
	}
}
