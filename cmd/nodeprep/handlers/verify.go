package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/homefleet/nodeprep/internal/account"
	"github.com/homefleet/nodeprep/internal/netdiscover"
	"github.com/homefleet/nodeprep/internal/netplan"
	"github.com/homefleet/nodeprep/internal/noderecord"
	"github.com/homefleet/nodeprep/internal/system"
	"github.com/homefleet/nodeprep/internal/ui"
	"github.com/homefleet/nodeprep/internal/zerotier"
)

// Check is one verification probe result.
type Check struct {
	Name    string `json:"name"`
	OK      bool   `json:"ok"`
	Message string `json:"message,omitempty"`
}

// Function variables swapped in tests.
var (
	loadRecord = noderecord.Load
	readFile   = os.ReadFile
	statFile   = os.Stat
	homeDir    = account.HomeDir
	netplanDir = netplan.Dir
)

// Verify re-derives node state against the record written by bootstrap and
// reports each check. It mutates nothing. A failed check makes the command
// exit non-zero.
func Verify(ctx context.Context, recordPath string, jsonOutput bool) error {
	record, err := loadRecord(recordPath)
	if err != nil {
		return fmt.Errorf("no node record at %s (has bootstrap been run?): %w", recordPath, err)
	}

	checks := runChecks(ctx, newRunner(), record)

	if jsonOutput {
		data, err := json.MarshalIndent(checks, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
	} else {
		printChecks(record, checks)
	}

	for _, check := range checks {
		if !check.OK {
			return fmt.Errorf("verification failed: %s", check.Name)
		}
	}
	return nil
}

func runChecks(ctx context.Context, run system.Runner, record *noderecord.Record) []Check {
	var checks []Check
	add := func(name string, ok bool, format string, args ...any) {
		checks = append(checks, Check{Name: name, OK: ok, Message: fmt.Sprintf(format, args...)})
	}

	// Static configuration file carries the recorded address.
	netplanPath := filepath.Join(netplanDir, netplan.FileName)
	if data, err := readFile(netplanPath); err != nil {
		add("netplan file", false, "cannot read %s: %v", netplanPath, err)
	} else if !strings.Contains(string(data), record.StaticIP) {
		add("netplan file", false, "%s does not contain %s", netplanPath, record.StaticIP)
	} else {
		add("netplan file", true, "contains %s", record.StaticIP)
	}

	// Interface currently carries the static address.
	if out, err := run.Run(ctx, "ip", "-j", "addr", "show", "dev", record.Interface); err != nil {
		add("interface address", false, "%v", err)
	} else if addr, _, err := netdiscover.ParseFirstIPv4(out, record.Interface); err != nil {
		add("interface address", false, "%v", err)
	} else if addr != record.StaticIP {
		add("interface address", false, "%s carries %s, expected %s", record.Interface, addr, record.StaticIP)
	} else {
		add("interface address", true, "%s carries %s", record.Interface, addr)
	}

	// SSH daemon.
	if out, err := run.Run(ctx, "systemctl", "is-active", "ssh"); err != nil || strings.TrimSpace(string(out)) != "active" {
		add("ssh daemon", false, "service not active")
	} else {
		add("ssh daemon", true, "active")
	}

	// Firewall.
	if out, err := run.Run(ctx, "ufw", "status"); err != nil {
		add("firewall", false, "%v", err)
	} else if !strings.Contains(string(out), "Status: active") {
		add("firewall", false, "ufw is not active")
	} else {
		add("firewall", true, "active")
	}

	// Sudo policy.
	policyPath := filepath.Join(account.SudoersDir, record.SystemUser)
	if data, err := readFile(policyPath); err != nil {
		add("sudo policy", false, "cannot read %s: %v", policyPath, err)
	} else if string(data) != account.SudoersPolicy(record.SystemUser) {
		add("sudo policy", false, "%s has unexpected content", policyPath)
	} else {
		add("sudo policy", true, "passwordless sudo for %s", record.SystemUser)
	}

	// SSH key pair.
	if home, err := homeDir(record.SystemUser); err != nil {
		add("ssh key", false, "%v", err)
	} else {
		keyPath := filepath.Join(home, ".ssh", "id_ed25519")
		if _, err := statFile(keyPath); err != nil {
			add("ssh key", false, "missing %s", keyPath)
		} else {
			add("ssh key", true, "present at %s", keyPath)
		}
	}

	// Overlay membership, re-deriving the same classification bootstrap
	// performed.
	if record.ZeroTierEnabled {
		state, err := zerotier.New(run).CurrentNetworkState(ctx, record.ZeroTierNetworkID)
		switch {
		case err != nil:
			add("overlay network", false, "status unavailable: %v", err)
		case state.Status == zerotier.StatusConnected:
			add("overlay network", true, "connected, address %s", state.AssignedIP)
		default:
			add("overlay network", false, "status %s; node %s may need manual authorization",
				state.Status, record.ZeroTierNodeID)
		}
	}

	return checks
}

func printChecks(record *noderecord.Record, checks []Check) {
	log := ui.NewLogger()
	log.Section(fmt.Sprintf("Node %s (%s)", record.Hostname, record.StaticIP))
	for _, check := range checks {
		if check.OK {
			log.Success("%-18s %s", check.Name, check.Message)
		} else {
			log.Error("%-18s %s", check.Name, check.Message)
		}
	}
}
