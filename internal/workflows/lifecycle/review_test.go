package lifecycle_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/testsuite"

	"github.com/fyrsmithlabs/epochd/internal/epoch"
	"github.com/fyrsmithlabs/epochd/internal/workflows/lifecycle"
)

func reviewVote(env *testsuite.TestWorkflowEnvironment, delay time.Duration, axis epoch.Axis, verdict epoch.Verdict, voter string) {
	env.RegisterDelayedCallback(func() {
		env.SignalWorkflow(lifecycle.SignalVote, lifecycle.VoteSubmission{
			Axis:    axis,
			Verdict: verdict,
			VoterID: voter,
		})
	}, delay)
}

func TestReviewWorkflow_CompletesOnThreeAxes(t *testing.T) {
	testSuite := &testsuite.WorkflowTestSuite{}
	env := testSuite.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(lifecycle.ReviewWorkflow)

	reviewVote(env, 1*time.Second, epoch.AxisCorrectness, epoch.VerdictAccept, "alice")
	reviewVote(env, 2*time.Second, epoch.AxisTestQuality, epoch.VerdictRevise, "bob")
	reviewVote(env, 3*time.Second, epoch.AxisElegance, epoch.VerdictAccept, "carol")

	env.ExecuteWorkflow(lifecycle.ReviewWorkflow, lifecycle.ReviewInput{
		EpochID: "epoch-1",
		Phase:   epoch.PhaseReview,
	})

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var result lifecycle.ReviewResult
	require.NoError(t, env.GetWorkflowResult(&result))
	assert.Equal(t, epoch.PhaseReview, result.Phase)
	assert.True(t, result.Success, "three votes complete the unit regardless of verdicts")
	assert.Equal(t, epoch.VerdictRevise, result.Verdicts[epoch.AxisTestQuality])
	assert.Len(t, result.Votes, 3)
}

func TestReviewWorkflow_LastWritePerAxisWins(t *testing.T) {
	testSuite := &testsuite.WorkflowTestSuite{}
	env := testSuite.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(lifecycle.ReviewWorkflow)

	reviewVote(env, 1*time.Second, epoch.AxisCorrectness, epoch.VerdictRevise, "alice")
	// Alice reconsiders; her resubmission overwrites her earlier verdict.
	reviewVote(env, 2*time.Second, epoch.AxisCorrectness, epoch.VerdictAccept, "alice")
	reviewVote(env, 3*time.Second, epoch.AxisTestQuality, epoch.VerdictAccept, "bob")
	reviewVote(env, 4*time.Second, epoch.AxisElegance, epoch.VerdictAccept, "carol")

	env.ExecuteWorkflow(lifecycle.ReviewWorkflow, lifecycle.ReviewInput{
		EpochID: "epoch-1",
		Phase:   epoch.PhaseReview,
	})

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var result lifecycle.ReviewResult
	require.NoError(t, env.GetWorkflowResult(&result))
	assert.Equal(t, epoch.VerdictAccept, result.Verdicts[epoch.AxisCorrectness])
	require.Len(t, result.Votes, 3, "one ledger entry per (axis, voter)")
}

func TestReviewWorkflow_IgnoresUnknownAxis(t *testing.T) {
	testSuite := &testsuite.WorkflowTestSuite{}
	env := testSuite.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(lifecycle.ReviewWorkflow)

	env.RegisterDelayedCallback(func() {
		env.SignalWorkflow(lifecycle.SignalVote, lifecycle.VoteSubmission{
			Axis:    epoch.Axis("STYLE"),
			Verdict: epoch.VerdictAccept,
			VoterID: "mallory",
		})
	}, 1*time.Second)
	reviewVote(env, 2*time.Second, epoch.AxisCorrectness, epoch.VerdictAccept, "alice")
	reviewVote(env, 3*time.Second, epoch.AxisTestQuality, epoch.VerdictAccept, "bob")
	reviewVote(env, 4*time.Second, epoch.AxisElegance, epoch.VerdictAccept, "carol")

	env.ExecuteWorkflow(lifecycle.ReviewWorkflow, lifecycle.ReviewInput{
		EpochID: "epoch-1",
		Phase:   epoch.PhaseReview,
	})

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var result lifecycle.ReviewResult
	require.NoError(t, env.GetWorkflowResult(&result))
	assert.Len(t, result.Votes, 3, "the unknown axis vote was dropped")
}
