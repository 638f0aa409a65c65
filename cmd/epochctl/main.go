// Package main implements the epochctl CLI for manual operations against
// the epoch lifecycle worker: starting epochs, signaling transitions and
// votes, and querying live state.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.temporal.io/sdk/client"
)

var (
	// hostPort is the Temporal frontend address
	hostPort string
	// namespace is the Temporal namespace
	namespace string
	// taskQueue is the worker task queue used when starting epochs
	taskQueue string
	// version information
	version = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "epochctl",
	Short: "CLI for epoch lifecycle operations",
	Long: `epochctl is a command-line interface for driving epoch lifecycle
workflows. It starts epochs, signals phase transitions, submits review
votes, and queries live epoch state.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&hostPort, "address", "localhost:7233", "Temporal frontend address")
	rootCmd.PersistentFlags().StringVar(&namespace, "namespace", "default", "Temporal namespace")
	rootCmd.PersistentFlags().StringVar(&taskQueue, "task-queue", "epoch-lifecycle-queue", "worker task queue")
}

// dial creates a Temporal client from the persistent flags.
func dial() (client.Client, error) {
	c, err := client.Dial(client.Options{
		HostPort:  hostPort,
		Namespace: namespace,
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to Temporal at %s: %w", hostPort, err)
	}
	return c, nil
}

// printJSON writes v as indented JSON to the command's stdout.
func printJSON(cmd *cobra.Command, v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	cmd.Println(string(out))
	return nil
}
