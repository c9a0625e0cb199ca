// Package wizard collects operator input for the bootstrap: the static
// address and, when overlay provisioning is enabled, the overlay network
// credentials. Prompts re-ask until input is well-formed, and transparently
// fall back to the controlling terminal when the process streams are
// redirected (piped execution).
package wizard

import (
	"context"
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/mattn/go-isatty"
)

// Answers holds the operator's validated input.
type Answers struct {
	// StaticIP is the dotted-quad address the node will keep.
	StaticIP string

	// Overlay fields, set only when overlay provisioning is requested.
	NetworkID string
	APIToken  string
	OverlayIP string
}

// Function variables swapped in tests.
var (
	stdinIsTerminal = func() bool { return isatty.IsTerminal(os.Stdin.Fd()) }
	openTTY         = func() (*os.File, error) { return os.OpenFile("/dev/tty", os.O_RDWR, 0) }
	runForm         = func(ctx context.Context, form *huh.Form) error { return form.RunWithContext(ctx) }
)

// Run prompts for all provisioning input. With overlay true it also
// collects the network id, API token (not echoed), and desired overlay
// address.
func Run(ctx context.Context, overlay bool) (*Answers, error) {
	answers := &Answers{}

	static := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Static IP address").
				Description("The address this node will keep after reconfiguration").
				Placeholder("192.168.1.20").
				Value(&answers.StaticIP).
				Validate(ValidateDottedQuad),
		).Title("Network"),
	)
	if err := runOnTerminal(ctx, static); err != nil {
		return nil, fmt.Errorf("static address: %w", err)
	}

	if !overlay {
		return answers, nil
	}

	overlayForm := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("ZeroTier network ID").
				Description("16-character network identifier from the ZeroTier console").
				Placeholder("8056c2e21c000001").
				Value(&answers.NetworkID).
				Validate(ValidateNetworkID),
			huh.NewInput().
				Title("ZeroTier API token").
				Description("Central API token used to authorize this node").
				EchoMode(huh.EchoModePassword).
				Value(&answers.APIToken).
				Validate(ValidateNotEmpty),
			huh.NewInput().
				Title("Desired ZeroTier IP").
				Description("Overlay address to pin for this node").
				Placeholder("10.147.17.20").
				Value(&answers.OverlayIP).
				Validate(ValidateDottedQuad),
		).Title("Overlay Network"),
	)
	if err := runOnTerminal(ctx, overlayForm); err != nil {
		return nil, fmt.Errorf("overlay credentials: %w", err)
	}

	return answers, nil
}

// runOnTerminal runs the form on the process streams, or on /dev/tty when
// stdin is redirected so prompts still reach the operator.
func runOnTerminal(ctx context.Context, form *huh.Form) error {
	if stdinIsTerminal() {
		return runForm(ctx, form)
	}
	tty, err := openTTY()
	if err != nil {
		return fmt.Errorf("stdin is redirected and the controlling terminal is unavailable: %w", err)
	}
	defer func() { _ = tty.Close() }()
	return runForm(ctx, form.WithInput(tty).WithOutput(tty))
}
