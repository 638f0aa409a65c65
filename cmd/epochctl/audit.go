package main

import (
	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/epochd/internal/audit"
	"github.com/fyrsmithlabs/epochd/internal/epoch"
)

var (
	auditDB    string
	auditPhase string
	auditRole  string
)

func init() {
	rootCmd.AddCommand(auditCmd)
	auditCmd.Flags().StringVar(&auditDB, "db", "", "path to the worker's sqlite audit database")
	auditCmd.Flags().StringVar(&auditPhase, "phase", "", "filter by phase")
	auditCmd.Flags().StringVar(&auditRole, "role", "", "filter by role")
	_ = auditCmd.MarkFlagRequired("db")
}

// auditCmd reads the durable audit trail directly from its sqlite backend
var auditCmd = &cobra.Command{
	Use:   "audit <epoch-id>",
	Short: "Query the durable audit trail",
	Long: `Query audit events for an epoch from the worker's sqlite audit
database. Empty filter fields match all events.

Examples:
  epochctl audit epoch-42 --db /var/lib/epochd/audit.db
  epochctl audit epoch-42 --db audit.db --phase review --role reviewer`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		trail, err := audit.OpenSQLiteTrail(auditDB)
		if err != nil {
			return err
		}
		defer func() { _ = trail.Close() }()

		events, err := trail.QueryEvents(cmd.Context(), audit.Filter{
			EpochID: args[0],
			Phase:   epoch.Phase(auditPhase),
			Role:    auditRole,
		})
		if err != nil {
			return err
		}
		return printJSON(cmd, events)
	},
}
