// Package zerotier installs, repairs, and drives the overlay network
// client. The install path is self-healing: a present but broken client is
// purged and reinstalled, and installation itself is an ordered list of
// strategies tried until one succeeds.
package zerotier

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"time"

	"github.com/homefleet/nodeprep/internal/system"
	"github.com/homefleet/nodeprep/internal/util/retry"
)

const (
	// ServiceName is the systemd unit of the overlay client daemon.
	ServiceName = "zerotier-one"
	// DataDir holds the client's identity and network state.
	DataDir = "/var/lib/zerotier-one"
	// AptSourcePath is the repository registration written by the manual
	// install path (and removed when healing a broken install).
	AptSourcePath = "/etc/apt/sources.list.d/zerotier.list"
	// KeyringPath is the vendor signing key location.
	KeyringPath = "/usr/share/keyrings/zerotier.gpg"

	bootstrapURL  = "https://install.zerotier.com"
	signingKeyURL = "https://download.zerotier.com/contact%40zerotier.com.gpg"
	aptRepoURL    = "https://download.zerotier.com/debian"
)

// nodeIDPattern matches the client's self-reported 10-hex-char identifier.
var nodeIDPattern = regexp.MustCompile(`^[0-9a-f]{10}$`)

// Function variables swapped in tests.
var (
	lookPath  = exec.LookPath
	writeFile = os.WriteFile
	removeAll = os.RemoveAll
	remove    = os.Remove
	sleep     = time.Sleep
)

// Provisioner drives the overlay client through install, join, and status
// classification.
type Provisioner struct {
	run system.Runner

	// Codename is the distribution codename the manual apt install path
	// pins the vendor repository to (focal, jammy, noble).
	Codename string
}

// New returns a Provisioner executing through the given Runner.
func New(run system.Runner) *Provisioner {
	return &Provisioner{run: run}
}

// CodenameFor maps a supported Ubuntu version to the codename the vendor
// repository publishes packages under.
func CodenameFor(versionID string) string {
	switch versionID {
	case "20.04":
		return "focal"
	case "22.04":
		return "jammy"
	case "24.04":
		return "noble"
	default:
		return ""
	}
}

// EnsureInstalled converges the host to a healthy client install. A present
// client whose status command fails is treated as broken: it is purged
// along with its data directory and repository registration, then installed
// from scratch. Returns whether a reinstall happened.
func (p *Provisioner) EnsureInstalled(ctx context.Context) (reinstalled bool, err error) {
	if _, err := lookPath("zerotier-cli"); err == nil {
		if p.healthy(ctx) {
			return false, nil
		}
		if err := p.removeBroken(ctx); err != nil {
			return false, fmt.Errorf("remove broken install: %w", err)
		}
		reinstalled = true
	}
	if err := p.install(ctx); err != nil {
		return reinstalled, err
	}
	return reinstalled, nil
}

// healthy probes whether the installed client responds to its status
// command.
func (p *Provisioner) healthy(ctx context.Context) bool {
	_, err := p.run.Run(ctx, "zerotier-cli", "info")
	return err == nil
}

// removeBroken tears down a non-functional install so a clean one can
// converge. Service and package removal are best-effort; a half-removed
// package cannot block the purge.
func (p *Provisioner) removeBroken(ctx context.Context) error {
	_, _ = p.run.Run(ctx, "systemctl", "stop", ServiceName)
	_, _ = p.run.Run(ctx, "systemctl", "disable", ServiceName)
	_, _ = p.run.Run(ctx, "apt-get", "purge", "-y", "zerotier-one")
	if err := removeAll(DataDir); err != nil {
		return fmt.Errorf("remove %s: %w", DataDir, err)
	}
	for _, path := range []string{AptSourcePath, KeyringPath} {
		if err := remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove %s: %w", path, err)
		}
	}
	return nil
}

// installStrategy is one way to get the client package onto the host.
type installStrategy struct {
	name    string
	install func(ctx context.Context) error
}

// install tries each strategy in order; the first success wins and all
// failures are aggregated into one error.
func (p *Provisioner) install(ctx context.Context) error {
	strategies := []installStrategy{
		{"vendor bootstrap script", p.installViaBootstrap},
		{"manual apt repository", p.installViaAptRepo},
	}

	var errs []error
	for _, strategy := range strategies {
		err := strategy.install(ctx)
		if err == nil {
			return nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", strategy.name, err))
	}
	return fmt.Errorf("all install strategies failed: %w", errors.Join(errs...))
}

func (p *Provisioner) installViaBootstrap(ctx context.Context) error {
	_, err := p.run.Run(ctx, "bash", "-c", fmt.Sprintf("curl -s %s | bash", bootstrapURL))
	return err
}

func (p *Provisioner) installViaAptRepo(ctx context.Context) error {
	if p.Codename == "" {
		return fmt.Errorf("no repository codename for this release")
	}

	importKey := fmt.Sprintf("curl -fsSL %s | gpg --dearmor -o %s", signingKeyURL, KeyringPath)
	if _, err := p.run.Run(ctx, "bash", "-c", importKey); err != nil {
		return fmt.Errorf("import signing key: %w", err)
	}

	arch, err := p.run.Run(ctx, "dpkg", "--print-architecture")
	if err != nil {
		return fmt.Errorf("detect architecture: %w", err)
	}

	source := fmt.Sprintf("deb [arch=%s signed-by=%s] %s/%s %s main\n",
		strings.TrimSpace(string(arch)), KeyringPath, aptRepoURL, p.Codename, p.Codename)
	if err := writeFile(AptSourcePath, []byte(source), 0o644); err != nil {
		return fmt.Errorf("register apt source: %w", err)
	}

	if _, err := p.run.Run(ctx, "apt-get", "update"); err != nil {
		return fmt.Errorf("refresh package index: %w", err)
	}
	if _, err := p.run.Run(ctx, "apt-get", "install", "-y", "zerotier-one"); err != nil {
		return fmt.Errorf("install package: %w", err)
	}
	return nil
}

// StartService reloads the service manager, enables the client for boot
// persistence, and starts it. Start failure is fatal to the caller, so the
// error carries service status and recent journal lines for diagnosis.
func (p *Provisioner) StartService(ctx context.Context) error {
	if _, err := p.run.Run(ctx, "systemctl", "daemon-reload"); err != nil {
		return fmt.Errorf("reload service manager: %w", err)
	}
	if _, err := p.run.Run(ctx, "systemctl", "enable", ServiceName); err != nil {
		return fmt.Errorf("enable %s: %w", ServiceName, err)
	}
	if _, err := p.run.Run(ctx, "systemctl", "start", ServiceName); err != nil {
		status, _ := p.run.Run(ctx, "systemctl", "status", ServiceName, "--no-pager")
		journal, _ := p.run.Run(ctx, "journalctl", "-u", ServiceName, "-n", "20", "--no-pager")
		return fmt.Errorf("start %s: %w\n--- status ---\n%s\n--- journal ---\n%s",
			ServiceName, err, status, journal)
	}
	return nil
}

// WaitReady polls the service active-state once per second for up to ten
// attempts. The caller treats a timeout as a warning and proceeds
// optimistically; later commands fail loudly if the daemon never came up.
func (p *Provisioner) WaitReady(ctx context.Context) error {
	return retry.Do(ctx, func() error {
		out, err := p.run.Run(ctx, "systemctl", "is-active", ServiceName)
		if err != nil {
			return err
		}
		if strings.TrimSpace(string(out)) != "active" {
			return fmt.Errorf("%s is %s", ServiceName, strings.TrimSpace(string(out)))
		}
		return nil
	}, retry.WithAttempts(10), retry.WithInterval(1*time.Second))
}

// NodeID reads the client's self-reported identifier from `zerotier-cli
// info` output ("200 info <nodeid> <version> ONLINE").
func (p *Provisioner) NodeID(ctx context.Context) (string, error) {
	out, err := p.run.Run(ctx, "zerotier-cli", "info")
	if err != nil {
		return "", fmt.Errorf("query node id: %w", err)
	}
	fields := strings.Fields(string(out))
	if len(fields) < 3 || !nodeIDPattern.MatchString(fields[2]) {
		return "", fmt.Errorf("unexpected info output: %q", strings.TrimSpace(string(out)))
	}
	return fields[2], nil
}

// Join requests membership on the network. Nothing downstream is meaningful
// without membership, so the caller treats failure as fatal.
func (p *Provisioner) Join(ctx context.Context, networkID string) error {
	if _, err := p.run.Run(ctx, "zerotier-cli", "join", networkID); err != nil {
		return fmt.Errorf("join network %s: %w", networkID, err)
	}
	return nil
}

// NetworkState waits for the controller handshake to settle, then parses
// and classifies the network's row from the listnetworks output.
func (p *Provisioner) NetworkState(ctx context.Context, networkID string) (*NetworkState, error) {
	sleep(5 * time.Second)
	return p.CurrentNetworkState(ctx, networkID)
}

// CurrentNetworkState classifies the network row without the settle delay.
// The verify command uses it to re-derive the classification on demand.
func (p *Provisioner) CurrentNetworkState(ctx context.Context, networkID string) (*NetworkState, error) {
	out, err := p.run.Run(ctx, "zerotier-cli", "listnetworks")
	if err != nil {
		return nil, fmt.Errorf("list networks: %w", err)
	}
	return ParseListNetworks(out, networkID)
}
