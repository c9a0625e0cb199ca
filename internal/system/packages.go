package system

import (
	"context"
	"fmt"
)

// BasePackages is the toolset every managed node gets: the SSH daemon,
// an HTTP client, package-retrieval prerequisites, the Python runtime
// Ansible modules execute under, and the firewall utility.
var BasePackages = []string{
	"openssh-server",
	"curl",
	"gnupg",
	"ca-certificates",
	"python3",
	"ufw",
}

// UpdatePackageIndex refreshes the apt package index. A stale mirror is
// not fatal; installs below will surface a real failure.
func UpdatePackageIndex(ctx context.Context, run Runner) error {
	_, err := run.Run(ctx, "apt-get", "update")
	return err
}

// InstallPackages installs the given packages non-interactively. apt-get
// treats already-installed packages as a no-op, so this is safe to re-run.
func InstallPackages(ctx context.Context, run Runner, packages ...string) error {
	args := append([]string{"install", "-y"}, packages...)
	if _, err := run.Run(ctx, "apt-get", args...); err != nil {
		return fmt.Errorf("install packages: %w", err)
	}
	return nil
}

// EnsureServiceRunning enables the unit for boot persistence and starts it
// in one step.
func EnsureServiceRunning(ctx context.Context, run Runner, unit string) error {
	if _, err := run.Run(ctx, "systemctl", "enable", "--now", unit); err != nil {
		return fmt.Errorf("enable %s: %w", unit, err)
	}
	return nil
}
