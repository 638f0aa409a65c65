package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.temporal.io/sdk/client"

	"github.com/fyrsmithlabs/epochd/internal/epoch"
	"github.com/fyrsmithlabs/epochd/internal/workflows/lifecycle"
)

var (
	startEpochID string
	startRole    string
	startDomain  string
	startSlices  []string

	advanceTrigger   string
	advanceCondition string

	voteAxis    string
	voteVerdict string
	voteVoter   string

	progressSlice string
	progressUnit  string
	progressStage string
	progressDone  bool
)

func init() {
	rootCmd.AddCommand(startCmd)
	startCmd.Flags().StringVar(&startEpochID, "id", "", "epoch id (generated when empty)")
	startCmd.Flags().StringVar(&startRole, "role", "", "initiating role")
	startCmd.Flags().StringVar(&startDomain, "domain", "", "work domain")
	startCmd.Flags().StringArrayVar(&startSlices, "slice", nil, "slice id to fan out during implementing (repeatable)")
	_ = startCmd.MarkFlagRequired("role")
	_ = startCmd.MarkFlagRequired("domain")

	rootCmd.AddCommand(advanceCmd)
	advanceCmd.Flags().StringVar(&advanceTrigger, "trigger", "manual", "transition trigger recorded in the ledger")
	advanceCmd.Flags().StringVar(&advanceCondition, "condition", "", "optional condition annotation")

	rootCmd.AddCommand(voteCmd)
	voteCmd.Flags().StringVar(&voteAxis, "axis", "", "review axis (CORRECTNESS, TEST_QUALITY, ELEGANCE)")
	voteCmd.Flags().StringVar(&voteVerdict, "verdict", "", "verdict (accept or revise)")
	voteCmd.Flags().StringVar(&voteVoter, "voter", "", "voter id")
	_ = voteCmd.MarkFlagRequired("axis")
	_ = voteCmd.MarkFlagRequired("verdict")
	_ = voteCmd.MarkFlagRequired("voter")

	rootCmd.AddCommand(progressCmd)
	progressCmd.Flags().StringVar(&progressSlice, "slice", "", "slice id")
	progressCmd.Flags().StringVar(&progressUnit, "unit", "", "unit id")
	progressCmd.Flags().StringVar(&progressStage, "stage", "", "stage label")
	progressCmd.Flags().BoolVar(&progressDone, "done", false, "mark the slice done")
	_ = progressCmd.MarkFlagRequired("slice")
}

// startCmd starts a new epoch lifecycle workflow
var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start a new epoch",
	Long: `Start a new epoch lifecycle workflow in the draft phase.

Examples:
  # Start an epoch with two implementation slices
  epochctl start --role builder --domain payments --slice api --slice storage

  # Start with an explicit epoch id
  epochctl start --id epoch-42 --role builder --domain payments`,
	Args: cobra.NoArgs,
	RunE: runStart,
}

// advanceCmd signals a phase transition request
var advanceCmd = &cobra.Command{
	Use:   "advance <epoch-id> <target-phase>",
	Short: "Request a phase transition",
	Long: `Signal an epoch to advance to a target phase. Refused requests are
recorded in the epoch's transition ledger; inspect them with
"epochctl status".

Examples:
  epochctl advance epoch-42 scoped
  epochctl advance epoch-42 finalizing --trigger review-complete`,
	Args: cobra.ExactArgs(2),
	RunE: runAdvance,
}

// voteCmd submits one review vote
var voteCmd = &cobra.Command{
	Use:   "vote <epoch-id>",
	Short: "Submit a review vote",
	Long: `Submit a vote on one review axis. A voter's resubmission on the
same axis overwrites the earlier verdict.

Examples:
  epochctl vote epoch-42 --axis CORRECTNESS --verdict accept --voter alice
  epochctl vote epoch-42 --axis ELEGANCE --verdict revise --voter bob`,
	Args: cobra.ExactArgs(1),
	RunE: runVote,
}

// progressCmd appends to the slice progress log
var progressCmd = &cobra.Command{
	Use:   "progress <epoch-id>",
	Short: "Report slice progress",
	Long: `Append an observability entry to an epoch's slice progress log.
Progress entries never drive transitions.

Examples:
  epochctl progress epoch-42 --slice api --stage wiring
  epochctl progress epoch-42 --slice api --stage complete --done`,
	Args: cobra.ExactArgs(1),
	RunE: runProgress,
}

func runStart(cmd *cobra.Command, args []string) error {
	c, err := dial()
	if err != nil {
		return err
	}
	defer c.Close()

	epochID := startEpochID
	if epochID == "" {
		epochID = "epoch-" + uuid.NewString()
	}

	slices := make([]lifecycle.SliceSpec, 0, len(startSlices))
	for _, id := range startSlices {
		slices = append(slices, lifecycle.SliceSpec{SliceID: id})
	}

	run, err := c.ExecuteWorkflow(cmd.Context(), client.StartWorkflowOptions{
		ID:        epochID,
		TaskQueue: taskQueue,
	}, lifecycle.EpochLifecycleWorkflow, lifecycle.EpochInput{
		EpochID: epochID,
		Role:    startRole,
		Domain:  startDomain,
		Slices:  slices,
	})
	if err != nil {
		return fmt.Errorf("starting epoch: %w", err)
	}

	cmd.Printf("started epoch %s (run %s)\n", epochID, run.GetRunID())
	return nil
}

func runAdvance(cmd *cobra.Command, args []string) error {
	epochID, target := args[0], epoch.Phase(args[1])
	if !target.Valid() {
		return fmt.Errorf("unknown phase %q", args[1])
	}

	c, err := dial()
	if err != nil {
		return err
	}
	defer c.Close()

	err = c.SignalWorkflow(cmd.Context(), epochID, "", lifecycle.SignalAdvance, lifecycle.AdvanceRequest{
		Target:    target,
		Trigger:   advanceTrigger,
		Condition: advanceCondition,
	})
	if err != nil {
		return fmt.Errorf("signaling advance: %w", err)
	}

	cmd.Printf("requested %s -> %s\n", epochID, target)
	return nil
}

func runVote(cmd *cobra.Command, args []string) error {
	c, err := dial()
	if err != nil {
		return err
	}
	defer c.Close()

	err = c.SignalWorkflow(cmd.Context(), args[0], "", lifecycle.SignalVote, lifecycle.VoteSubmission{
		Axis:    epoch.Axis(voteAxis),
		Verdict: epoch.Verdict(voteVerdict),
		VoterID: voteVoter,
	})
	if err != nil {
		return fmt.Errorf("signaling vote: %w", err)
	}

	cmd.Printf("vote recorded: %s %s=%s by %s\n", args[0], voteAxis, voteVerdict, voteVoter)
	return nil
}

func runProgress(cmd *cobra.Command, args []string) error {
	c, err := dial()
	if err != nil {
		return err
	}
	defer c.Close()

	err = c.SignalWorkflow(cmd.Context(), args[0], "", lifecycle.SignalSliceProgress, lifecycle.ProgressNotice{
		SliceID: progressSlice,
		UnitID:  progressUnit,
		Stage:   progressStage,
		Done:    progressDone,
	})
	if err != nil {
		return fmt.Errorf("signaling progress: %w", err)
	}

	cmd.Printf("progress recorded for %s/%s\n", args[0], progressSlice)
	return nil
}
