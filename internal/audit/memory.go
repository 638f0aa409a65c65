package audit

import (
	"context"
	"sync"
)

// MemoryTrail is an in-memory Trail. It is safe for concurrent use across
// epochs and keeps events in insertion order. Intended for tests and
// single-process deployments.
type MemoryTrail struct {
	mu     sync.RWMutex
	events []Event
}

// NewMemoryTrail creates an empty in-memory trail.
func NewMemoryTrail() *MemoryTrail {
	return &MemoryTrail{}
}

// RecordEvent appends one event.
func (t *MemoryTrail) RecordEvent(_ context.Context, ev Event) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events = append(t.events, ev)
	return nil
}

// QueryEvents returns matching events in insertion order.
func (t *MemoryTrail) QueryEvents(_ context.Context, f Filter) ([]Event, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Event, 0, len(t.events))
	for _, ev := range t.events {
		if f.Matches(ev) {
			out = append(out, ev)
		}
	}
	return out, nil
}
