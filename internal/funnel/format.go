package funnel

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/matsen/funnelvision/internal/deal"
	"github.com/shopspring/decimal"
)

// Fixed reply texts.
const (
	Apology        = "Something went wrong trying to analyze that."
	CoverageHeader = "📊 *Pipeline Coverage Analysis:*"
	StaleHeader    = "🕰️ *Stale Deal Diagnosis:*"
	noStaleDeals   = "No open deals have gone more than 30 days without an update."
)

// Fields a pipeline question may be missing.
const (
	MissingTarget    = "target"
	MissingTimeframe = "timeframe"
)

var mentionPattern = regexp.MustCompile(`<@[^>]+>`)

// StripMention removes the first user mention token and trims the text.
func StripMention(text string) string {
	loc := mentionPattern.FindStringIndex(text)
	if loc != nil {
		text = text[:loc[0]] + text[loc[1]:]
	}
	return strings.TrimSpace(text)
}

// MentionsPipeline reports whether the message asks about pipeline coverage.
func MentionsPipeline(text string) bool {
	return strings.Contains(strings.ToLower(text), "pipeline")
}

// Clarification asks for exactly the missing fields.
func Clarification(missing []string, currency string) string {
	parts := make([]string, 0, len(missing))
	for _, m := range missing {
		switch m {
		case MissingTarget:
			parts = append(parts, fmt.Sprintf("target (e.g. %s500000)", currency))
		case MissingTimeframe:
			parts = append(parts, "timeframe (e.g. Q2 or this month)")
		}
	}
	return fmt.Sprintf("🔍 To answer that, I need your %s. Just reply in one message.", strings.Join(parts, " and "))
}

// FormatMoney renders an amount with thousands separators, keeping cents
// only when they are non-zero.
func FormatMoney(d decimal.Decimal, currency string) string {
	d = d.Round(2)
	s := d.Abs().StringFixed(2)
	intPart, frac, _ := strings.Cut(s, ".")

	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	out := currency + b.String()
	if frac != "00" {
		out += "." + frac
	}
	if d.IsNegative() {
		out = "-" + out
	}
	return out
}

// CoverageSummary is the figures block fed to the composer and shown in the reply.
func CoverageSummary(c deal.Coverage, timeframeLabel, currency string) string {
	ratio := c.RatioString() + "x"
	if !c.RatioDefined {
		ratio = "n/a (target is zero)"
	}
	return fmt.Sprintf("Team target: %s\nOpen pipeline (%s): %s\nCoverage ratio: %s\nTotal open deals: %d",
		FormatMoney(c.Target, currency),
		timeframeLabel,
		FormatMoney(c.PipelineValue, currency),
		ratio,
		c.DealCount)
}

// StaleDealList formats stale deals one per line, oldest first as given.
func StaleDealList(deals []deal.Deal, stages deal.StageSet, currency string, now time.Time) string {
	if len(deals) == 0 {
		return noStaleDeals
	}

	var b strings.Builder
	for i, d := range deals {
		if i > 0 {
			b.WriteByte('\n')
		}
		modified := "unknown"
		if !d.LastModified.IsZero() {
			modified = fmt.Sprintf("%s (%s)", d.LastModified.UTC().Format(deal.DateLayout), formatAge(d.LastModified, now))
		}
		fmt.Fprintf(&b, "- %s | stage: %s | amount: %s | last modified: %s",
			d.Name, stages.Label(d.Stage), FormatMoney(d.Amount, currency), modified)
	}
	return b.String()
}

// formatAge formats t relative to now, e.g. "45 days ago", "3 months ago".
func formatAge(t, now time.Time) string {
	delta := now.Sub(t)
	if delta < 0 {
		return "in the future"
	}

	days := int(delta.Hours() / 24)
	if days < 1 {
		return "today"
	}
	if days < 60 {
		if days == 1 {
			return "1 day ago"
		}
		return fmt.Sprintf("%d days ago", days)
	}

	if days < 365 {
		return fmt.Sprintf("%d months ago", min(days/30, 11))
	}

	years := days / 365
	if years == 1 {
		return "1 year ago"
	}
	return fmt.Sprintf("%d years ago", years)
}
