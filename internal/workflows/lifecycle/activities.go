package lifecycle

import (
	"context"
	"errors"
	"fmt"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"

	"github.com/fyrsmithlabs/epochd/internal/audit"
	"github.com/fyrsmithlabs/epochd/internal/constraint"
	"github.com/fyrsmithlabs/epochd/internal/epoch"
)

// ConfigurationErrorType marks faults caused by a misconfigured worker.
// They are non-retryable: retrying a deployment defect must never succeed
// by accident.
const ConfigurationErrorType = "ConfigurationError"

// TransitionSink receives successful and failed transitions. Recording is
// best-effort from the orchestrator's point of view.
type TransitionSink interface {
	RecordTransition(ctx context.Context, epochID, role string, t epoch.Transition) error
}

// Activities is the impure boundary of the lifecycle workflow: constraint
// checks, transition records, audit access, and slice execution. One
// instance is registered per worker with its collaborators injected.
type Activities struct {
	Checker     *constraint.Checker
	Transitions TransitionSink
}

// NewActivities wires the activity set.
func NewActivities(checker *constraint.Checker, sink TransitionSink) *Activities {
	return &Activities{Checker: checker, Transitions: sink}
}

// CheckConstraintsInput carries a proposed transition to the checker.
type CheckConstraintsInput struct {
	State  epoch.Snapshot `json:"state"`
	Target epoch.Phase    `json:"target"`
}

// CheckConstraints evaluates the configured rule set against the proposed
// move. Violations are data, not errors.
func (a *Activities) CheckConstraints(ctx context.Context, in CheckConstraintsInput) ([]constraint.Violation, error) {
	if a.Checker == nil {
		return nil, temporal.NewNonRetryableApplicationError(
			"constraint checker not configured", ConfigurationErrorType, nil)
	}
	violations := a.Checker.Check(in.State, in.Target)
	if len(violations) > 0 {
		activity.GetLogger(ctx).Info("constraints blocked transition",
			"epoch_id", in.State.EpochID,
			"target", in.Target,
			"violations", len(violations),
		)
	}
	return violations, nil
}

// RecordTransitionInput carries one history entry to the sink.
type RecordTransitionInput struct {
	EpochID    string           `json:"epoch_id"`
	Role       string           `json:"role"`
	Transition epoch.Transition `json:"transition"`
}

// RecordTransition forwards one transition to the sink.
func (a *Activities) RecordTransition(ctx context.Context, in RecordTransitionInput) error {
	if a.Transitions == nil {
		return temporal.NewNonRetryableApplicationError(
			"transition sink not configured", ConfigurationErrorType, nil)
	}
	if err := a.Transitions.RecordTransition(ctx, in.EpochID, in.Role, in.Transition); err != nil {
		return fmt.Errorf("recording transition: %w", err)
	}
	return nil
}

// RecordAuditEvent writes one event through the bound audit trail. Using
// the trail before binding is a deployment defect and fails hard.
func (a *Activities) RecordAuditEvent(ctx context.Context, ev audit.Event) error {
	if err := audit.Record(ctx, ev); err != nil {
		if errors.Is(err, audit.ErrNotBound) {
			return temporal.NewNonRetryableApplicationError(err.Error(), ConfigurationErrorType, err)
		}
		return fmt.Errorf("recording audit event: %w", err)
	}
	return nil
}

// QueryAuditEvents reads events through the bound audit trail with the same
// fail-hard binding semantics as RecordAuditEvent.
func (a *Activities) QueryAuditEvents(ctx context.Context, f audit.Filter) ([]audit.Event, error) {
	events, err := audit.Query(ctx, f)
	if err != nil {
		if errors.Is(err, audit.ErrNotBound) {
			return nil, temporal.NewNonRetryableApplicationError(err.Error(), ConfigurationErrorType, err)
		}
		return nil, fmt.Errorf("querying audit events: %w", err)
	}
	return events, nil
}

// RunSlice executes one implementation slice. The slice specification is
// opaque to the engine; this worker records the execution in the audit
// trail and reports the final stage.
func (a *Activities) RunSlice(ctx context.Context, in SliceInput) (*SliceExecution, error) {
	logger := activity.GetLogger(ctx)
	logger.Info("executing slice",
		"epoch_id", in.EpochID,
		"slice_id", in.Slice.SliceID,
	)

	ev := audit.Event{
		EpochID:   in.EpochID,
		Phase:     epoch.PhaseImplementing,
		Role:      "slice",
		Timestamp: activity.GetInfo(ctx).StartedTime,
		Payload: map[string]string{
			"kind":        "slice-execution",
			"slice_id":    in.Slice.SliceID,
			"description": in.Slice.Description,
		},
	}
	if err := a.RecordAuditEvent(ctx, ev); err != nil {
		return nil, err
	}

	return &SliceExecution{SliceID: in.Slice.SliceID, Stage: "complete"}, nil
}
