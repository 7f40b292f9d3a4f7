package deal

import "github.com/shopspring/decimal"

// Coverage is the pipeline coverage derived from one query's matched deals.
type Coverage struct {
	Target        decimal.Decimal `json:"target"`
	PipelineValue decimal.Decimal `json:"pipeline_value"`
	// Ratio is PipelineValue / Target. It is only meaningful when
	// RatioDefined is true, i.e. the target is positive.
	Ratio        decimal.Decimal `json:"coverage_ratio"`
	RatioDefined bool            `json:"coverage_ratio_defined"`
	DealCount    int             `json:"deal_count"`
}

// ComputeCoverage sums the deal amounts and divides by target.
func ComputeCoverage(target decimal.Decimal, deals []Deal) Coverage {
	value := decimal.Zero
	for _, d := range deals {
		value = value.Add(d.Amount)
	}

	c := Coverage{
		Target:        target,
		PipelineValue: value,
		DealCount:     len(deals),
	}
	if target.IsPositive() {
		c.Ratio = value.Div(target)
		c.RatioDefined = true
	}
	return c
}

// RatioString renders the ratio to two decimals, or "n/a" when undefined.
func (c Coverage) RatioString() string {
	if !c.RatioDefined {
		return "n/a"
	}
	return c.Ratio.StringFixed(2)
}
