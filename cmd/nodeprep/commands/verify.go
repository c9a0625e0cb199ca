package commands

import (
	"github.com/spf13/cobra"

	"github.com/homefleet/nodeprep/cmd/nodeprep/handlers"
	"github.com/homefleet/nodeprep/internal/noderecord"
)

// Verify returns the command that re-checks node state against the record
// written by bootstrap.
func Verify() *cobra.Command {
	var (
		recordPath string
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Re-check node state against the bootstrap record",
		Long: `Re-derive the node's live state and compare it with the record
written by bootstrap: netplan configuration, interface address, SSH
daemon, firewall, sudo policy, key pair, and overlay network status.

Read-only; exits non-zero when any check fails.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Verify(cmd.Context(), recordPath, jsonOutput)
		},
	}

	cmd.Flags().StringVar(&recordPath, "config", noderecord.DefaultPath, "Node record path")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output results as JSON")

	return cmd
}
