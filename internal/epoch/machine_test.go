package epoch

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

func newTestMachine() *Machine {
	return NewMachine("epoch-1", "builder", "backend")
}

// walkTo advances a fresh machine along the linear path to the given phase.
func walkTo(t *testing.T, m *Machine, target Phase) {
	t.Helper()
	path := []Phase{
		PhaseScoped, PhasePlanned, PhaseSliced, PhaseImplementing,
		PhaseIntegrating, PhaseTesting, PhaseReview,
	}
	for _, p := range path {
		if m.Phase() == target {
			return
		}
		require.NoError(t, m.Advance(p, "test", "", testNow))
	}
	require.Equal(t, target, m.Phase())
}

func TestAdvance_DeclaredEdge(t *testing.T) {
	m := newTestMachine()

	err := m.Advance(PhaseScoped, "signal", "scope agreed", testNow)
	require.NoError(t, err)
	assert.Equal(t, PhaseScoped, m.Phase())
	assert.Equal(t, 1, m.SuccessfulTransitions())

	hist := m.Snapshot().History
	require.Len(t, hist, 1)
	assert.True(t, hist[0].Success)
	assert.Equal(t, PhaseDraft, hist[0].From)
	assert.Equal(t, PhaseScoped, hist[0].To)
	assert.Equal(t, "signal", hist[0].Trigger)
}

func TestAdvance_UnreachableEdge(t *testing.T) {
	m := newTestMachine()

	err := m.Advance(PhaseShipped, "signal", "", testNow)
	require.Error(t, err)

	var terr *TransitionError
	require.True(t, errors.As(err, &terr))
	assert.Equal(t, FailureUnreachableEdge, terr.Kind)
	assert.Equal(t, PhaseDraft, m.Phase(), "phase must be unchanged")
	assert.Equal(t, 0, m.SuccessfulTransitions())

	hist := m.Snapshot().History
	require.Len(t, hist, 1, "failed attempt still appends a transition")
	assert.False(t, hist[0].Success)
	assert.Contains(t, hist[0].Reason, string(FailureUnreachableEdge))
}

func TestAdvance_ResubmitEvaluatedAgainstNewPhase(t *testing.T) {
	m := newTestMachine()
	require.NoError(t, m.Advance(PhaseScoped, "signal", "", testNow))

	// Same request again: now evaluated from scoped, where scoped is not
	// a declared edge.
	err := m.Advance(PhaseScoped, "signal", "", testNow)
	var terr *TransitionError
	require.True(t, errors.As(err, &terr))
	assert.Equal(t, FailureUnreachableEdge, terr.Kind)
	assert.Equal(t, PhaseScoped, m.Phase())
}

func TestAdvance_GateNotMetWithoutVotes(t *testing.T) {
	m := newTestMachine()
	walkTo(t, m, PhaseReview)

	err := m.Advance(PhaseFinalizing, "signal", "", testNow)
	var terr *TransitionError
	require.True(t, errors.As(err, &terr))
	assert.Equal(t, FailureGateNotMet, terr.Kind)
	assert.Equal(t, PhaseReview, m.Phase())
	assert.Contains(t, m.Snapshot().LastError, "has no recorded vote")
}

func TestGate_ThreeVotesVersusThreeAccepts(t *testing.T) {
	m := newTestMachine()
	walkTo(t, m, PhaseReview)

	m.RecordVote(AxisCorrectness, VerdictAccept, "alice")
	m.RecordVote(AxisTestQuality, VerdictRevise, "bob")
	m.RecordVote(AxisElegance, VerdictAccept, "carol")

	// All three axes voted, but one revise keeps the gate closed.
	err := m.Advance(PhaseFinalizing, "signal", "", testNow)
	var terr *TransitionError
	require.True(t, errors.As(err, &terr))
	assert.Equal(t, FailureGateNotMet, terr.Kind)
	assert.Contains(t, m.Snapshot().LastError, "TEST_QUALITY")
	assert.Contains(t, m.Snapshot().LastError, "revise")
	assert.Equal(t, PhaseReview, m.Phase())

	// The forward edge is still declared, gated, and not holding; the
	// revise back edge remains open.
	opts := m.AvailableTransitions()
	require.Len(t, opts, 2)
	assert.Equal(t, PhaseFinalizing, opts[0].Target)
	assert.True(t, opts[0].Gated)
	assert.False(t, opts[0].GateHolds)
	assert.Equal(t, PhaseRevising, opts[1].Target)
	assert.False(t, opts[1].Gated)
	assert.True(t, opts[1].GateHolds)
}

func TestGate_OverwriteUnblocks(t *testing.T) {
	m := newTestMachine()
	walkTo(t, m, PhaseReview)

	m.RecordVote(AxisCorrectness, VerdictAccept, "alice")
	m.RecordVote(AxisTestQuality, VerdictRevise, "bob")
	m.RecordVote(AxisElegance, VerdictAccept, "carol")

	// Bob resubmits on the same axis; last write wins.
	m.RecordVote(AxisTestQuality, VerdictAccept, "bob")

	require.NoError(t, m.Advance(PhaseFinalizing, "signal", "", testNow))
	assert.Equal(t, PhaseFinalizing, m.Phase())
}

func TestGate_EveryRecordedVoteMustAccept(t *testing.T) {
	m := newTestMachine()
	walkTo(t, m, PhaseReview)

	for _, axis := range Axes() {
		m.RecordVote(axis, VerdictAccept, "alice")
	}
	// A second voter on an already-accepted axis still blocks with revise.
	m.RecordVote(AxisCorrectness, VerdictRevise, "dave")

	err := m.Advance(PhaseFinalizing, "signal", "", testNow)
	var terr *TransitionError
	require.True(t, errors.As(err, &terr))
	assert.Equal(t, FailureGateNotMet, terr.Kind)
}

func TestVotes_ClearedOnLeavingReview(t *testing.T) {
	m := newTestMachine()
	walkTo(t, m, PhaseReview)

	m.RecordVote(AxisCorrectness, VerdictRevise, "alice")
	require.NoError(t, m.Advance(PhaseRevising, "signal", "rework requested", testNow))

	assert.Empty(t, m.Snapshot().Votes, "votes belong to the review phase they were cast in")
}

func TestAvailableTransitions_TerminalIsEmpty(t *testing.T) {
	m := newTestMachine()
	walkTo(t, m, PhaseReview)
	for _, axis := range Axes() {
		m.RecordVote(axis, VerdictAccept, "alice")
	}
	require.NoError(t, m.Advance(PhaseFinalizing, "signal", "", testNow))
	require.NoError(t, m.Advance(PhaseShipped, "signal", "", testNow))
	require.NoError(t, m.Advance(PhaseRetrospective, "signal", "", testNow))
	require.NoError(t, m.Advance(PhaseComplete, "signal", "", testNow))

	assert.Empty(t, m.AvailableTransitions())
	assert.Equal(t, StatusComplete, m.Status())
}

func TestAvailableTransitions_MatchStaticGraph(t *testing.T) {
	for phase, edges := range phaseGraph {
		m := newTestMachine()
		m.phase = phase
		opts := m.AvailableTransitions()
		require.Len(t, opts, len(edges), "phase %s", phase)
		for i, e := range edges {
			assert.Equal(t, e.to, opts[i].Target)
			assert.Equal(t, e.gate != "", opts[i].Gated)
		}
	}
}

func TestSnapshot_Independent(t *testing.T) {
	m := newTestMachine()
	require.NoError(t, m.Advance(PhaseScoped, "signal", "", testNow))
	m.RecordVote(AxisCorrectness, VerdictAccept, "alice")
	m.AppendSliceProgress(SliceProgress{SliceID: "s1", UnitID: "u1", Stage: "done", Done: true, At: testNow})

	s1 := m.Snapshot()
	s2 := m.Snapshot()
	assert.Equal(t, s1, s2, "idempotent reads")

	// Mutating the snapshot must not leak into the machine.
	s1.History[0].Trigger = "tampered"
	s1.Votes[0].Verdict = VerdictRevise
	s1.Progress[0].Stage = "tampered"
	fresh := m.Snapshot()
	assert.Equal(t, "signal", fresh.History[0].Trigger)
	assert.Equal(t, VerdictAccept, fresh.Votes[0].Verdict)
	assert.Equal(t, "done", fresh.Progress[0].Stage)
}

func TestRecordConstraintFailure(t *testing.T) {
	m := newTestMachine()
	m.RecordConstraintFailure(PhaseScoped, "signal", "", "identity: role must be set", testNow)

	assert.Equal(t, PhaseDraft, m.Phase())
	assert.Equal(t, 0, m.SuccessfulTransitions())
	s := m.Snapshot()
	require.Len(t, s.History, 1)
	assert.False(t, s.History[0].Success)
	assert.Contains(t, s.History[0].Reason, string(FailureConstraintViolation))
	assert.Contains(t, s.LastError, "identity")
}

func TestMarkBlocked(t *testing.T) {
	m := newTestMachine()
	m.MarkBlocked("slice fan-out failed: slice s2: boom")
	assert.Equal(t, StatusBlocked, m.Status())
	assert.Contains(t, m.Snapshot().LastError, "slice s2")
}

func TestRestore_RoundTrip(t *testing.T) {
	m := newTestMachine()
	walkTo(t, m, PhaseReview)
	m.RecordVote(AxisElegance, VerdictAccept, "carol")
	m.AppendSliceProgress(SliceProgress{SliceID: "s1", UnitID: "u1", Stage: "apply", At: testNow})

	restored := Restore(m.Snapshot())
	assert.Equal(t, m.Snapshot(), restored.Snapshot())
}
