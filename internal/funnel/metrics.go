package funnel

import (
	"context"
	"time"

	"github.com/matsen/funnelvision/internal/deal"
	"github.com/matsen/funnelvision/internal/llm"
	"github.com/prometheus/client_golang/prometheus"
)

// Collaborator labels.
const (
	collaboratorUnderstanding = "text_understanding"
	collaboratorGeneration    = "text_generation"
	collaboratorDealStore     = "deal_store"
)

// Metrics records mention outcomes and collaborator call latency. A nil
// *Metrics records nothing.
type Metrics struct {
	mentions *prometheus.CounterVec
	calls    *prometheus.HistogramVec
}

// NewMetrics registers the bot's metrics. It returns nil for a nil registry.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		return nil
	}

	m := &Metrics{
		mentions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "funnelvision_mentions_total",
				Help: "Total number of mentions handled by path and final state",
			},
			[]string{"path", "state"},
		),
		calls: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "funnelvision_collaborator_duration_seconds",
				Help:    "Latency of calls to external collaborators",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"collaborator", "result"},
		),
	}

	registry.MustRegister(m.mentions, m.calls)
	return m
}

// ObserveMention counts a finished mention.
func (m *Metrics) ObserveMention(r Result) {
	if m != nil && m.mentions != nil {
		path := string(r.Path)
		if path == "" {
			path = "none"
		}
		m.mentions.WithLabelValues(path, string(r.State)).Inc()
	}
}

func (m *Metrics) observeCall(collaborator string, start time.Time, err error) {
	if m == nil || m.calls == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.calls.WithLabelValues(collaborator, result).Observe(time.Since(start).Seconds())
}

type timedCompleter struct {
	next         llm.Completer
	metrics      *Metrics
	collaborator string
}

func (t timedCompleter) Complete(ctx context.Context, req llm.Request) (string, error) {
	start := time.Now()
	out, err := t.next.Complete(ctx, req)
	t.metrics.observeCall(t.collaborator, start, err)
	return out, err
}

type timedSearcher struct {
	next    deal.Searcher
	metrics *Metrics
}

func (t timedSearcher) Search(ctx context.Context, f deal.Filter) ([]deal.Deal, error) {
	start := time.Now()
	deals, err := t.next.Search(ctx, f)
	t.metrics.observeCall(collaboratorDealStore, start, err)
	return deals, err
}
