package handlers

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/homefleet/nodeprep/internal/account"
	"github.com/homefleet/nodeprep/internal/central"
	"github.com/homefleet/nodeprep/internal/netdiscover"
	"github.com/homefleet/nodeprep/internal/netplan"
	"github.com/homefleet/nodeprep/internal/noderecord"
	"github.com/homefleet/nodeprep/internal/sysinfo"
	"github.com/homefleet/nodeprep/internal/system"
	"github.com/homefleet/nodeprep/internal/ui"
	"github.com/homefleet/nodeprep/internal/wizard"
	"github.com/homefleet/nodeprep/internal/zerotier"
)

// BootstrapOptions are the invocation parameters of the bootstrap command.
type BootstrapOptions struct {
	// Overlay enables overlay network provisioning (default on; disabled
	// by the --no-zerotier flag).
	Overlay bool
	// RecordPath is where the node configuration record is written.
	RecordPath string
	// Version is the tool version tag recorded on the node.
	Version string
}

// ProvisioningContext carries the facts accumulated across pipeline stages.
// Each stage reads what earlier stages produced and fills in its own fields.
type ProvisioningContext struct {
	Network    *netdiscover.Network
	SystemUser string
	Answers    *wizard.Answers

	NetplanBackup string

	// Overlay results.
	NodeID       string
	OverlayState *zerotier.NetworkState
	// AuthorizeErr records a rejected or unreachable authorization call.
	// It degrades the run instead of failing it; the summary tells the
	// operator how to finish by hand.
	AuthorizeErr error
}

// authorizer is the slice of the Central API client the pipeline needs.
type authorizer interface {
	AuthorizeMember(ctx context.Context, networkID, nodeID string, update central.MemberUpdate) error
}

// Factory and stage function variables - can be replaced in tests.
var (
	requireRoot     = sysinfo.RequireRoot
	readOSRelease   = sysinfo.ReadOSRelease
	checkSupported  = sysinfo.CheckSupported
	checkTools      = sysinfo.CheckTools
	systemUser      = sysinfo.SystemUser
	discoverNetwork = netdiscover.Discover
	collectInput    = wizard.Run
	saveRecord      = noderecord.Save
	newRunner       = system.NewRunner
	newAuthorizer   = func(token string) authorizer { return central.NewClient(token) }
	sleep           = time.Sleep
)

// Bootstrap runs the full node-preparation pipeline: preflight, network
// discovery, operator input, static network reconfiguration, packages and
// firewall, overlay network membership, automation account, and the final
// node record.
func Bootstrap(ctx context.Context, opts BootstrapOptions) error {
	log := ui.NewLogger()
	run := newRunner()
	pctx := &ProvisioningContext{}

	log.Section("Preflight")
	rel, err := preflight(ctx)
	if err != nil {
		return err
	}
	pctx.SystemUser, err = systemUser()
	if err != nil {
		return err
	}
	log.Success("ubuntu %s, running as root, system user %s", rel.VersionID, pctx.SystemUser)

	log.Section("Network Discovery")
	pctx.Network, err = discoverNetwork(ctx, run)
	if err != nil {
		return err
	}
	log.Detail("Interface", pctx.Network.Interface)
	log.Detail("Address", fmt.Sprintf("%s/%d", pctx.Network.Address, pctx.Network.PrefixLen))
	log.Detail("Gateway", pctx.Network.Gateway)
	log.Detail("DNS", pctx.Network.DNSServers[0])

	pctx.Answers, err = collectInput(ctx, opts.Overlay)
	if err != nil {
		return err
	}

	log.Section("Network Reconfiguration")
	if err := reconfigureNetwork(ctx, run, log, pctx); err != nil {
		return err
	}

	log.Section("Packages & Firewall")
	if err := provisionPackages(ctx, run, log); err != nil {
		return err
	}

	if opts.Overlay {
		log.Section("Overlay Network")
		if err := provisionOverlay(ctx, run, log, rel, pctx); err != nil {
			return err
		}
	}

	log.Section("Automation Account")
	if err := provisionAccount(ctx, run, log, pctx); err != nil {
		return err
	}

	record := buildRecord(pctx, opts)
	if err := saveRecord(record, opts.RecordPath); err != nil {
		return err
	}
	log.Success("node record written to %s", opts.RecordPath)

	printSummary(log, pctx, opts)
	return nil
}

// preflight validates privileges, distribution, and required host tools
// before anything is mutated.
func preflight(_ context.Context) (*sysinfo.OSRelease, error) {
	if err := requireRoot(); err != nil {
		return nil, err
	}
	rel, err := readOSRelease()
	if err != nil {
		return nil, err
	}
	if err := checkSupported(rel); err != nil {
		return nil, err
	}
	if err := checkTools(); err != nil {
		return nil, err
	}
	return rel, nil
}

// reconfigureNetwork backs up netplan, writes the static configuration,
// applies it, and probes connectivity. The probe failing is a warning: the
// operator's session may have been cut by the address change.
func reconfigureNetwork(ctx context.Context, run system.Runner, log *ui.Logger, pctx *ProvisioningContext) error {
	backup, err := netplan.Backup(netplan.Dir)
	if err != nil {
		return err
	}
	pctx.NetplanBackup = backup
	if backup != "" {
		log.Info("existing configuration backed up to %s", backup)
	}

	doc, err := netplan.Render(netplan.Params{
		Interface:  pctx.Network.Interface,
		Address:    pctx.Answers.StaticIP,
		PrefixLen:  pctx.Network.PrefixLen,
		Gateway:    pctx.Network.Gateway,
		DNSServers: nameservers(pctx.Network.DNSServers),
	})
	if err != nil {
		return err
	}
	path, err := netplan.Write(netplan.Dir, doc)
	if err != nil {
		return err
	}
	log.Success("static configuration written to %s", path)

	if err := netplan.Apply(ctx, run); err != nil {
		return err
	}
	sleep(3 * time.Second)
	if err := netplan.ProbeConnectivity(ctx, run); err != nil {
		log.Warn("connectivity probe failed after the address change; if your session dropped, reconnect on %s", pctx.Answers.StaticIP)
	} else {
		log.Success("internet reachable on the new address")
	}
	return nil
}

// nameservers appends the public fallback resolver to the discovered
// servers, unless discovery already fell back to it.
func nameservers(discovered []string) []string {
	if slices.Contains(discovered, netdiscover.FallbackDNS) {
		return discovered
	}
	return append(discovered, netdiscover.FallbackDNS)
}

func provisionPackages(ctx context.Context, run system.Runner, log *ui.Logger) error {
	if err := system.UpdatePackageIndex(ctx, run); err != nil {
		log.Warn("package index refresh failed: %v", err)
	}
	if err := system.InstallPackages(ctx, run, system.BasePackages...); err != nil {
		return err
	}
	if err := system.EnsureServiceRunning(ctx, run, "ssh"); err != nil {
		return err
	}
	log.Success("base packages installed, SSH daemon running")

	if err := system.ConfigureFirewall(ctx, run); err != nil {
		return err
	}
	log.Success("firewall enabled (SSH, %d/udp)", system.OverlayUDPPort)
	return nil
}

// provisionOverlay walks the overlay client through install, start, join,
// authorization, and status classification. Install, start, and join
// failures abort the run; a rejected authorization only degrades it.
func provisionOverlay(ctx context.Context, run system.Runner, log *ui.Logger, rel *sysinfo.OSRelease, pctx *ProvisioningContext) error {
	zt := zerotier.New(run)
	zt.Codename = zerotier.CodenameFor(rel.VersionID)

	reinstalled, err := zt.EnsureInstalled(ctx)
	if err != nil {
		return err
	}
	if reinstalled {
		log.Warn("previous client install was broken and has been replaced")
	}
	log.Success("overlay client installed")

	if err := zt.StartService(ctx); err != nil {
		return err
	}
	if err := zt.WaitReady(ctx); err != nil {
		log.Warn("service did not confirm active in time, continuing: %v", err)
	}

	pctx.NodeID, err = zt.NodeID(ctx)
	if err != nil {
		return err
	}
	log.Detail("Node ID", pctx.NodeID)

	if err := zt.Join(ctx, pctx.Answers.NetworkID); err != nil {
		return err
	}
	log.Success("joined network %s", pctx.Answers.NetworkID)

	auth := newAuthorizer(pctx.Answers.APIToken)
	pctx.AuthorizeErr = auth.AuthorizeMember(ctx, pctx.Answers.NetworkID, pctx.NodeID, central.MemberUpdate{
		Name:        pctx.Network.Hostname,
		Description: "Provisioned by nodeprep",
		Config: central.MemberConfig{
			Authorized:      true,
			IPAssignments:   []string{pctx.Answers.OverlayIP},
			NoAutoAssignIPs: true,
		},
	})
	if pctx.AuthorizeErr != nil {
		var apiErr *central.APIError
		if errors.As(pctx.AuthorizeErr, &apiErr) {
			log.Warn("authorization rejected (status %d): %s", apiErr.StatusCode, apiErr.Body)
		} else {
			log.Warn("authorization call failed: %v", pctx.AuthorizeErr)
		}
		log.Warn("authorize node %s manually in the ZeroTier console", pctx.NodeID)
	} else {
		log.Success("node authorized with address %s", pctx.Answers.OverlayIP)
	}

	state, err := zt.NetworkState(ctx, pctx.Answers.NetworkID)
	if err != nil {
		log.Warn("overlay status unavailable: %v", err)
	} else {
		pctx.OverlayState = state
		log.Detail("Overlay status", state.Status.String())
		if state.AssignedIP != "" {
			log.Detail("Assigned address", state.AssignedIP)
		}
	}
	return nil
}

func provisionAccount(ctx context.Context, run system.Runner, log *ui.Logger, pctx *ProvisioningContext) error {
	if err := account.EnsureAdminGroup(ctx, run, pctx.SystemUser); err != nil {
		return err
	}
	policyPath, err := account.WriteSudoersDropIn(pctx.SystemUser)
	if err != nil {
		return err
	}
	log.Success("passwordless sudo policy at %s", policyPath)

	home, err := account.HomeDir(pctx.SystemUser)
	if err != nil {
		return err
	}
	sshDir, err := account.EnsureSSHDir(pctx.SystemUser, home)
	if err != nil {
		return err
	}
	keyPath, generated, err := account.EnsureKeyPair(pctx.SystemUser, pctx.Network.Hostname, sshDir)
	if err != nil {
		return err
	}
	if generated {
		log.Success("generated SSH key pair at %s", keyPath)
	} else {
		log.Info("SSH key already present at %s, keeping it", keyPath)
	}
	return nil
}

// buildRecord flattens the pipeline results into the durable node record.
func buildRecord(pctx *ProvisioningContext, opts BootstrapOptions) *noderecord.Record {
	record := &noderecord.Record{
		Hostname:         pctx.Network.Hostname,
		Interface:        pctx.Network.Interface,
		StaticIP:         pctx.Answers.StaticIP,
		SubnetPrefix:     pctx.Network.PrefixLen,
		Gateway:          pctx.Network.Gateway,
		DNSServer:        pctx.Network.DNSServers[0],
		SystemUser:       pctx.SystemUser,
		ZeroTierEnabled:  opts.Overlay,
		BootstrapVersion: opts.Version,
	}
	if opts.Overlay {
		record.ZeroTierNetworkID = pctx.Answers.NetworkID
		record.ZeroTierNodeID = pctx.NodeID
		if pctx.OverlayState != nil {
			// The assigned-ips column carries a prefix length; the record
			// keeps a bare address so it can be pinged and put in an
			// inventory as-is.
			record.ZeroTierIP, _, _ = strings.Cut(pctx.OverlayState.AssignedIP, "/")
		}
		if record.ZeroTierIP == "" {
			record.ZeroTierIP = pctx.Answers.OverlayIP
		}
	}
	return record
}

// printSummary prints the final report, with next steps depending on
// whether overlay authorization succeeded.
func printSummary(log *ui.Logger, pctx *ProvisioningContext, opts BootstrapOptions) {
	log.Section("Summary")
	log.Detail("Hostname", pctx.Network.Hostname)
	log.Detail("Static address", fmt.Sprintf("%s/%d", pctx.Answers.StaticIP, pctx.Network.PrefixLen))
	log.Detail("Gateway", pctx.Network.Gateway)
	log.Detail("System user", pctx.SystemUser)
	if opts.Overlay {
		log.Detail("Overlay network", pctx.Answers.NetworkID)
		log.Detail("Overlay node", pctx.NodeID)
		if pctx.OverlayState != nil {
			log.Detail("Overlay status", pctx.OverlayState.Status.String())
		}
	}

	log.Section("Next Steps")
	if opts.Overlay && pctx.AuthorizeErr != nil {
		log.Warn("automatic authorization failed; authorize node %s on network %s in the ZeroTier console, then re-check with: nodeprep verify", pctx.NodeID, pctx.Answers.NetworkID)
	} else {
		log.Info("add this node to your Ansible inventory as %s@%s", pctx.SystemUser, pctx.Answers.StaticIP)
		log.Info("re-check node state at any time with: nodeprep verify")
	}
}
