package audit

import (
	"context"
	"strconv"

	"github.com/fyrsmithlabs/epochd/internal/epoch"
)

// TransitionLog adapts a Trail into a transition-audit sink: each recorded
// transition becomes one audit event with the transition fields as payload.
type TransitionLog struct {
	trail Trail
}

// NewTransitionLog creates a sink writing to the given trail.
func NewTransitionLog(trail Trail) *TransitionLog {
	return &TransitionLog{trail: trail}
}

// RecordTransition writes one transition as an audit event.
func (l *TransitionLog) RecordTransition(ctx context.Context, epochID, role string, t epoch.Transition) error {
	return l.trail.RecordEvent(ctx, Event{
		EpochID:   epochID,
		Phase:     t.To,
		Role:      role,
		Timestamp: t.At,
		Payload: map[string]string{
			"kind":      "transition",
			"from":      string(t.From),
			"to":        string(t.To),
			"trigger":   t.Trigger,
			"condition": t.Condition,
			"success":   strconv.FormatBool(t.Success),
			"reason":    t.Reason,
		},
	})
}
