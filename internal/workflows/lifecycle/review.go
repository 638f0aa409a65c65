package lifecycle

import (
	"sort"

	"go.temporal.io/sdk/workflow"

	"github.com/fyrsmithlabs/epochd/internal/epoch"
)

// ReviewWorkflow collects review votes for one review phase. Votes are
// keyed by (axis, voter); a voter resubmitting on the same axis overwrites
// their earlier verdict, and the last write per axis decides the reported
// verdict. The unit completes once every axis has at least one vote,
// whatever the verdicts are — accept/revise content is the parent's
// concern, not this unit's.
//
// There is no timeout: an axis nobody votes on blocks the unit, and the
// epoch behind it, indefinitely.
func ReviewWorkflow(ctx workflow.Context, input ReviewInput) (*ReviewResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("review unit starting",
		"epoch_id", input.EpochID,
		"phase", input.Phase,
	)

	type ledgerKey struct {
		axis  epoch.Axis
		voter string
	}
	ledger := make(map[ledgerKey]epoch.Verdict)
	verdicts := make(map[epoch.Axis]epoch.Verdict)

	voteCh := workflow.GetSignalChannel(ctx, SignalVote)
	for len(verdicts) < len(epoch.Axes()) {
		var v VoteSubmission
		voteCh.Receive(ctx, &v)
		if !v.Axis.Valid() {
			logger.Warn("dropping vote on unknown axis", "axis", v.Axis, "voter_id", v.VoterID)
			continue
		}
		if v.Verdict != epoch.VerdictAccept && v.Verdict != epoch.VerdictRevise {
			logger.Warn("dropping vote with unknown verdict", "verdict", v.Verdict, "voter_id", v.VoterID)
			continue
		}
		ledger[ledgerKey{axis: v.Axis, voter: v.VoterID}] = v.Verdict
		verdicts[v.Axis] = v.Verdict
		logger.Info("vote recorded",
			"axis", v.Axis,
			"verdict", v.Verdict,
			"voter_id", v.VoterID,
			"axes_voted", len(verdicts),
		)
	}

	votes := make([]VoteSubmission, 0, len(ledger))
	for k, verdict := range ledger {
		votes = append(votes, VoteSubmission{Axis: k.axis, Verdict: verdict, VoterID: k.voter})
	}
	sort.Slice(votes, func(i, j int) bool {
		if votes[i].Axis != votes[j].Axis {
			return votes[i].Axis < votes[j].Axis
		}
		return votes[i].VoterID < votes[j].VoterID
	})

	logger.Info("review unit complete", "verdicts", verdicts)
	return &ReviewResult{
		Phase:    input.Phase,
		Success:  true,
		Votes:    votes,
		Verdicts: verdicts,
	}, nil
}
