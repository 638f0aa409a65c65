package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/epochd/internal/epoch"
	"github.com/fyrsmithlabs/epochd/internal/workflows/lifecycle"
)

func init() {
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(transitionsCmd)
	rootCmd.AddCommand(progressLogCmd)
}

// statusCmd queries the full epoch snapshot
var statusCmd = &cobra.Command{
	Use:   "status <epoch-id>",
	Short: "Show an epoch's full state snapshot",
	Long: `Query the live snapshot of an epoch: current phase, status, vote
ledger, slice progress log, and the full transition ledger including
refused attempts.

Examples:
  epochctl status epoch-42`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var snap epoch.Snapshot
		if err := runQuery(cmd, args[0], lifecycle.QuerySnapshot, &snap); err != nil {
			return err
		}
		return printJSON(cmd, snap)
	},
}

// transitionsCmd queries the currently available transitions
var transitionsCmd = &cobra.Command{
	Use:   "transitions <epoch-id>",
	Short: "List transitions available from the current phase",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var opts []epoch.TransitionOption
		if err := runQuery(cmd, args[0], lifecycle.QueryTransitions, &opts); err != nil {
			return err
		}
		return printJSON(cmd, opts)
	},
}

// progressLogCmd queries the slice progress log
var progressLogCmd = &cobra.Command{
	Use:   "progress-log <epoch-id>",
	Short: "Show the slice progress log",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var log []epoch.SliceProgress
		if err := runQuery(cmd, args[0], lifecycle.QueryProgressLog, &log); err != nil {
			return err
		}
		return printJSON(cmd, log)
	},
}

// runQuery executes a workflow query and decodes the result into out.
func runQuery(cmd *cobra.Command, workflowID, queryType string, out any) error {
	c, err := dial()
	if err != nil {
		return err
	}
	defer c.Close()

	val, err := c.QueryWorkflow(cmd.Context(), workflowID, "", queryType)
	if err != nil {
		return fmt.Errorf("querying %s: %w", queryType, err)
	}
	if err := val.Get(out); err != nil {
		return fmt.Errorf("decoding %s result: %w", queryType, err)
	}
	return nil
}
