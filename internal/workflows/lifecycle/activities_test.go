package lifecycle_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/testsuite"

	"github.com/fyrsmithlabs/epochd/internal/audit"
	"github.com/fyrsmithlabs/epochd/internal/constraint"
	"github.com/fyrsmithlabs/epochd/internal/epoch"
	"github.com/fyrsmithlabs/epochd/internal/workflows/lifecycle"
)

var testNow = time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

func TestCheckConstraints_ReturnsViolationsAsData(t *testing.T) {
	acts := lifecycle.NewActivities(constraint.NewDefaultChecker(), nil)

	testSuite := &testsuite.WorkflowTestSuite{}
	env := testSuite.NewTestActivityEnvironment()
	env.RegisterActivity(acts)

	state := epoch.NewMachine("", "", "").Snapshot()
	val, err := env.ExecuteActivity(acts.CheckConstraints, lifecycle.CheckConstraintsInput{
		State:  state,
		Target: epoch.PhaseScoped,
	})
	require.NoError(t, err, "violations are data, not activity errors")

	var violations []constraint.Violation
	require.NoError(t, val.Get(&violations))
	assert.NotEmpty(t, violations)
}

func TestRecordAuditEvent_UnboundIsNonRetryableConfigurationError(t *testing.T) {
	audit.Reset()
	t.Cleanup(audit.Reset)

	acts := lifecycle.NewActivities(constraint.NewDefaultChecker(), nil)

	testSuite := &testsuite.WorkflowTestSuite{}
	env := testSuite.NewTestActivityEnvironment()
	env.RegisterActivity(acts)

	ev := audit.Event{EpochID: "epoch-1", Phase: epoch.PhaseDraft, Role: "builder", Timestamp: testNow}

	// Every attempt fails the same way; retries never stumble into success.
	for i := 0; i < 3; i++ {
		_, err := env.ExecuteActivity(acts.RecordAuditEvent, ev)
		require.Error(t, err)

		var appErr *temporal.ApplicationError
		require.True(t, errors.As(err, &appErr))
		assert.Equal(t, lifecycle.ConfigurationErrorType, appErr.Type())
		assert.True(t, appErr.NonRetryable())
	}
}

func TestQueryAuditEvents_UnboundIsNonRetryableConfigurationError(t *testing.T) {
	audit.Reset()
	t.Cleanup(audit.Reset)

	acts := lifecycle.NewActivities(constraint.NewDefaultChecker(), nil)

	testSuite := &testsuite.WorkflowTestSuite{}
	env := testSuite.NewTestActivityEnvironment()
	env.RegisterActivity(acts)

	_, err := env.ExecuteActivity(acts.QueryAuditEvents, audit.Filter{EpochID: "epoch-1"})
	require.Error(t, err)

	var appErr *temporal.ApplicationError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, lifecycle.ConfigurationErrorType, appErr.Type())
}

func TestAuditActivities_BoundRoundTrip(t *testing.T) {
	audit.Reset()
	t.Cleanup(audit.Reset)
	trail := audit.NewMemoryTrail()
	require.NoError(t, audit.Bind(trail))

	acts := lifecycle.NewActivities(constraint.NewDefaultChecker(), audit.NewTransitionLog(trail))

	testSuite := &testsuite.WorkflowTestSuite{}
	env := testSuite.NewTestActivityEnvironment()
	env.RegisterActivity(acts)

	ev := audit.Event{
		EpochID:   "epoch-1",
		Phase:     epoch.PhaseReview,
		Role:      "reviewer",
		Timestamp: testNow,
		Payload:   map[string]string{"kind": "note"},
	}
	_, err := env.ExecuteActivity(acts.RecordAuditEvent, ev)
	require.NoError(t, err)

	val, err := env.ExecuteActivity(acts.QueryAuditEvents, audit.Filter{EpochID: "epoch-1"})
	require.NoError(t, err)

	var events []audit.Event
	require.NoError(t, val.Get(&events))
	require.Len(t, events, 1)
	assert.Equal(t, "note", events[0].Payload["kind"])
}

func TestRecordTransition_ForwardsToSink(t *testing.T) {
	trail := audit.NewMemoryTrail()
	acts := lifecycle.NewActivities(constraint.NewDefaultChecker(), audit.NewTransitionLog(trail))

	testSuite := &testsuite.WorkflowTestSuite{}
	env := testSuite.NewTestActivityEnvironment()
	env.RegisterActivity(acts)

	_, err := env.ExecuteActivity(acts.RecordTransition, lifecycle.RecordTransitionInput{
		EpochID: "epoch-1",
		Role:    "builder",
		Transition: epoch.Transition{
			From:    epoch.PhaseDraft,
			To:      epoch.PhaseScoped,
			Trigger: "signal",
			Success: true,
			At:      testNow,
		},
	})
	require.NoError(t, err)

	events, qerr := trail.QueryEvents(context.Background(), audit.Filter{EpochID: "epoch-1"})
	require.NoError(t, qerr)
	require.Len(t, events, 1)
	assert.Equal(t, "transition", events[0].Payload["kind"])
}
