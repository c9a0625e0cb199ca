package system

import (
	"context"
	"fmt"
)

// OverlayUDPPort is the fixed UDP port the overlay network client listens on.
const OverlayUDPPort = 9993

// ConfigureFirewall opens the SSH port and the overlay network's UDP port,
// then enables ufw non-interactively. ufw rules are idempotent; re-adding
// an existing rule succeeds without duplicating it.
func ConfigureFirewall(ctx context.Context, run Runner) error {
	rules := [][]string{
		{"allow", "OpenSSH"},
		{"allow", fmt.Sprintf("%d/udp", OverlayUDPPort)},
	}
	for _, rule := range rules {
		if _, err := run.Run(ctx, "ufw", rule...); err != nil {
			return fmt.Errorf("add firewall rule %v: %w", rule, err)
		}
	}
	if _, err := run.Run(ctx, "ufw", "--force", "enable"); err != nil {
		return fmt.Errorf("enable firewall: %w", err)
	}
	return nil
}
