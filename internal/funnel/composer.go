package funnel

import (
	"context"
	"fmt"

	"github.com/matsen/funnelvision/internal/llm"
)

// Composer narrates computed figures through the generation model. Every
// request carries the persona's grounding rule; the figures travel as the
// user message.
type Composer struct {
	llm      llm.Completer
	settings ModelSettings
}

// NewComposer creates a Composer.
func NewComposer(c llm.Completer, settings ModelSettings) *Composer {
	return &Composer{llm: c, settings: settings}
}

// Coverage narrates a pipeline coverage summary.
func (c *Composer) Coverage(ctx context.Context, summary string) (string, error) {
	out, err := c.llm.Complete(ctx, llm.Request{
		Model:       c.settings.Model,
		System:      Instruction(TaskCoverageNarrative, nil),
		User:        summary,
		Temperature: c.settings.Temperature,
	})
	if err != nil {
		return "", fmt.Errorf("composing coverage narrative: %w", err)
	}
	return out, nil
}

// Stale narrates a formatted stale-deal list in light of the user's question.
func (c *Composer) Stale(ctx context.Context, question, dealList string) (string, error) {
	out, err := c.llm.Complete(ctx, llm.Request{
		Model:       c.settings.Model,
		System:      Instruction(TaskStaleNarrative, nil),
		User:        fmt.Sprintf("Question: %s\n\nStale open deals:\n%s", question, dealList),
		Temperature: c.settings.Temperature,
	})
	if err != nil {
		return "", fmt.Errorf("composing stale deal narrative: %w", err)
	}
	return out, nil
}
