// Package audit defines the audit trail boundary: an injectable sink and
// query interface for epoch transition and event history, a bind-once
// process registry, and interchangeable in-memory and sqlite backends.
package audit

import (
	"context"
	"time"

	"github.com/fyrsmithlabs/epochd/internal/epoch"
)

// Event is one audit record. Events are written once and never mutated.
type Event struct {
	EpochID   string            `json:"epoch_id"`
	Phase     epoch.Phase       `json:"phase"`
	Role      string            `json:"role"`
	Timestamp time.Time         `json:"timestamp"`
	Payload   map[string]string `json:"payload,omitempty"`
}

// Filter scopes a query. An unset field matches all values for that field;
// callers needing tight scoping must supply every field explicitly.
type Filter struct {
	EpochID string      `json:"epoch_id,omitempty"`
	Phase   epoch.Phase `json:"phase,omitempty"`
	Role    string      `json:"role,omitempty"`
}

// Matches reports whether ev passes the filter.
func (f Filter) Matches(ev Event) bool {
	if f.EpochID != "" && ev.EpochID != f.EpochID {
		return false
	}
	if f.Phase != "" && ev.Phase != f.Phase {
		return false
	}
	if f.Role != "" && ev.Role != f.Role {
		return false
	}
	return true
}

// Trail is the audit backend contract. Exactly one implementation is active
// per worker process; implementations must be safe under concurrent access
// from many epochs, since callers perform no locking of their own.
type Trail interface {
	// RecordEvent appends one event.
	RecordEvent(ctx context.Context, ev Event) error

	// QueryEvents returns events matching the filter, in insertion order.
	QueryEvents(ctx context.Context, f Filter) ([]Event, error)
}
