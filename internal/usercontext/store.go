// Package usercontext keeps what has been inferred about each chat user:
// their revenue target and the timeframe they are asking about.
//
// Records live for the lifetime of the process. Updates merge field by field
// (last write wins per field); nothing is ever removed.
package usercontext

import (
	"sync"

	"github.com/matsen/funnelvision/internal/deal"
	"github.com/shopspring/decimal"
)

// Timeframe is a labelled, resolved date range. It is only ever stored whole.
type Timeframe struct {
	Label string         `json:"label"`
	Range deal.DateRange `json:"-"`
}

// Context is a snapshot of one user's record. Nil fields are unknown.
type Context struct {
	Target    *decimal.Decimal
	Timeframe *Timeframe
}

// HasTarget reports whether a target is known.
func (c Context) HasTarget() bool { return c.Target != nil }

// HasTimeframe reports whether a resolved timeframe is known.
func (c Context) HasTimeframe() bool { return c.Timeframe != nil }

// Fields is a partial update. Nil fields leave the stored value untouched.
type Fields struct {
	Target    *decimal.Decimal
	Timeframe *Timeframe
}

// Empty reports whether the update carries no fields.
func (f Fields) Empty() bool {
	return f.Target == nil && f.Timeframe == nil
}

// Store is the per-user context store.
type Store interface {
	Get(userID string) Context
	Merge(userID string, f Fields)
}

// MemoryStore is a process-lifetime Store backed by a map.
//
// The mutex only protects the map itself. Two mentions from the same user
// may still interleave their Get and Merge calls.
type MemoryStore struct {
	mu    sync.Mutex
	users map[string]*Context
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{users: make(map[string]*Context)}
}

// Get returns a copy of the user's record, or an empty Context.
func (s *MemoryStore) Get(userID string) Context {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.users[userID]
	if !ok {
		return Context{}
	}
	out := Context{}
	if c.Target != nil {
		t := *c.Target
		out.Target = &t
	}
	if c.Timeframe != nil {
		tf := *c.Timeframe
		out.Timeframe = &tf
	}
	return out
}

// Merge writes the non-nil fields of f over the user's record, creating the
// record on first use. An empty update does not create a record.
func (s *MemoryStore) Merge(userID string, f Fields) {
	if f.Empty() {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.users[userID]
	if !ok {
		c = &Context{}
		s.users[userID] = c
	}
	if f.Target != nil {
		t := *f.Target
		c.Target = &t
	}
	if f.Timeframe != nil {
		tf := *f.Timeframe
		c.Timeframe = &tf
	}
}

// Len returns the number of users with a record.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.users)
}
