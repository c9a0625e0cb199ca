// Package main is the entry point for the nodeprep CLI.
//
// nodeprep takes a freshly installed Ubuntu host and brings it to the
// state a remote Ansible controller expects: static networking, ZeroTier
// overlay membership, and a system user with passwordless sudo and a
// generated SSH key pair.
//
// Commands: bootstrap, verify, peers, version.
//
// For detailed usage information, run:
//
//	nodeprep --help
package main

import (
	"fmt"
	"os"

	"github.com/homefleet/nodeprep/cmd/nodeprep/commands"
)

// Version information set by goreleaser at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	commands.SetVersionInfo(version, commit, date)
	if err := commands.Root().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
