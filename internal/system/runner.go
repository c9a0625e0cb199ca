// Package system wraps the host-mutating commands the bootstrap drives:
// apt, systemctl, and ufw. All external processes go through the Runner
// interface so callers can be tested against canned command output.
package system

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Runner executes an external command and returns its combined output.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// execRunner is the production Runner backed by os/exec.
type execRunner struct{}

// NewRunner returns a Runner that executes commands on the host.
func NewRunner() Runner {
	return execRunner{}
}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	// #nosec G204 - command names and arguments come from this package's
	// callers, never from operator input.
	cmd := exec.CommandContext(ctx, name, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return output, fmt.Errorf("%s %s: %w\nOutput: %s",
			name, strings.Join(args, " "), err, strings.TrimSpace(string(output)))
	}
	return output, nil
}
