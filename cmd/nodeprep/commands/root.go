// Package commands defines the CLI command structure and flag bindings.
//
// This package contains cobra command definitions that handle argument
// parsing and flag binding. Command execution is delegated to handler
// functions in the handlers package.
package commands

import "github.com/spf13/cobra"

// Root returns the root command for the nodeprep CLI.
func Root() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "nodeprep",
		Short: "Prepare an Ubuntu host for Ansible management",
	}

	cmd.AddCommand(Bootstrap())
	cmd.AddCommand(Verify())
	cmd.AddCommand(Peers())
	cmd.AddCommand(Version())

	return cmd
}
