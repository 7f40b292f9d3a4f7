package funnel

import (
	"context"
	"sync"

	"github.com/matsen/funnelvision/internal/deal"
	"github.com/matsen/funnelvision/internal/llm"
)

// fakeLLM returns a canned response and records every request.
type fakeLLM struct {
	mu       sync.Mutex
	response string
	err      error
	requests []llm.Request
}

func (f *fakeLLM) Complete(ctx context.Context, req llm.Request) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	return f.response, f.err
}

func (f *fakeLLM) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

// fakeDeals returns canned deals and records every filter.
type fakeDeals struct {
	mu      sync.Mutex
	deals   []deal.Deal
	err     error
	panic   bool
	filters []deal.Filter
}

func (f *fakeDeals) Search(ctx context.Context, filter deal.Filter) ([]deal.Deal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.filters = append(f.filters, filter)
	if f.panic {
		panic("deal store exploded")
	}
	return f.deals, f.err
}

func (f *fakeDeals) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.filters)
}

// replies collects delivered reply texts.
type replies struct {
	mu   sync.Mutex
	msgs []string
	err  error
}

func (r *replies) Reply(ctx context.Context, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, text)
	return r.err
}
