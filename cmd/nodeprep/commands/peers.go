package commands

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/homefleet/nodeprep/cmd/nodeprep/handlers"
	"github.com/homefleet/nodeprep/internal/noderecord"
)

// Peers returns the command that probes reachability of peer nodes over
// the overlay network.
func Peers() *cobra.Command {
	var (
		recordPath string
		timeout    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "peers [address...]",
		Short: "Probe reachability of peer nodes over the overlay network",
		Long: `Ping each given overlay address once and report reachability.

With no addresses, the node's own overlay address from the bootstrap
record is probed as a sanity check. Exits non-zero when any peer is
unreachable.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return handlers.Peers(cmd.Context(), recordPath, args, timeout)
		},
	}

	cmd.Flags().StringVar(&recordPath, "config", noderecord.DefaultPath, "Node record path")
	cmd.Flags().DurationVar(&timeout, "timeout", 3*time.Second, "Per-peer ping timeout")

	return cmd
}
