package commands

import (
	"github.com/spf13/cobra"

	"github.com/homefleet/nodeprep/cmd/nodeprep/handlers"
	"github.com/homefleet/nodeprep/internal/noderecord"
)

// Bootstrap returns the command that runs the full node-preparation
// pipeline.
//
// Flags:
//
//	--no-zerotier: skip overlay network provisioning
//	--config: node record path (default /etc/ansible-node.conf)
func Bootstrap() *cobra.Command {
	var (
		noZeroTier bool
		recordPath string
	)

	cmd := &cobra.Command{
		Use:   "bootstrap",
		Short: "Prepare this host for Ansible management",
		Long: `Prepare a freshly installed Ubuntu host for Ansible management.

This command walks through the full preparation sequence:

  - Validate privileges and OS release
  - Detect the current network configuration
  - Prompt for a static IP (and ZeroTier credentials)
  - Rewrite netplan with the static configuration
  - Install the SSH daemon, base tooling, and firewall rules
  - Install the ZeroTier client, join the network, and request
    authorization via the Central API
  - Grant the system user passwordless sudo and an SSH key pair
  - Write the node record for later verification

Must be run as root. Run with --no-zerotier to skip the overlay
network entirely.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Bootstrap(cmd.Context(), handlers.BootstrapOptions{
				Overlay:    !noZeroTier,
				RecordPath: recordPath,
				Version:    version,
			})
		},
	}

	cmd.Flags().BoolVar(&noZeroTier, "no-zerotier", false, "Skip overlay network provisioning")
	cmd.Flags().StringVar(&recordPath, "config", noderecord.DefaultPath, "Node record path")

	return cmd
}
