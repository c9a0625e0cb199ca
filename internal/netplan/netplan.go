// Package netplan renders and applies the static network configuration.
// The existing /etc/netplan directory is always copied to a timestamped
// backup before anything is written, so a bad address can be rolled back
// by hand from the console.
package netplan

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/homefleet/nodeprep/internal/system"
)

const (
	// Dir is the netplan configuration directory.
	Dir = "/etc/netplan"
	// FileName is the configuration file this tool owns.
	FileName = "01-ansible-static.yaml"
)

// Document is the netplan v2 document rendered for one ethernet device.
type Document struct {
	Network NetworkSection `yaml:"network"`
}

// NetworkSection is the top-level network stanza.
type NetworkSection struct {
	Version   int                 `yaml:"version"`
	Ethernets map[string]Ethernet `yaml:"ethernets"`
}

// Ethernet describes the static configuration of a single device.
type Ethernet struct {
	DHCP4       bool        `yaml:"dhcp4"`
	Addresses   []string    `yaml:"addresses"`
	Routes      []Route     `yaml:"routes"`
	Nameservers Nameservers `yaml:"nameservers"`
}

// Route is a single routing entry; this tool only emits the default route.
type Route struct {
	To  string `yaml:"to"`
	Via string `yaml:"via"`
}

// Nameservers holds the ordered resolver list.
type Nameservers struct {
	Addresses []string `yaml:"addresses"`
}

// Params are the inputs for rendering the static configuration.
type Params struct {
	Interface string
	Address   string
	PrefixLen int
	Gateway   string
	// DNSServers is the ordered resolver list, discovered server first.
	DNSServers []string
}

// Render marshals the netplan v2 document for the given parameters.
func Render(p Params) ([]byte, error) {
	doc := Document{
		Network: NetworkSection{
			Version: 2,
			Ethernets: map[string]Ethernet{
				p.Interface: {
					DHCP4:     false,
					Addresses: []string{fmt.Sprintf("%s/%d", p.Address, p.PrefixLen)},
					Routes:    []Route{{To: "default", Via: p.Gateway}},
					Nameservers: Nameservers{
						Addresses: p.DNSServers,
					},
				},
			},
		},
	}
	data, err := yaml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal netplan document: %w", err)
	}
	return data, nil
}

// now is swapped in tests to get deterministic backup paths.
var now = time.Now

// Backup copies the netplan directory to a timestamped sibling path and
// returns that path. A missing directory is not an error; there is nothing
// to preserve on a host that never had netplan configuration.
func Backup(dir string) (string, error) {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return "", nil
	}
	backupPath := fmt.Sprintf("%s.backup.%d", dir, now().Unix())
	if err := copyDir(dir, backupPath); err != nil {
		return "", fmt.Errorf("back up %s: %w", dir, err)
	}
	return backupPath, nil
}

// Write writes the rendered document into dir with owner-only permissions,
// as netplan warns about world-readable configuration.
func Write(dir string, data []byte) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create %s: %w", dir, err)
	}
	path := filepath.Join(dir, FileName)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}

// Apply invokes the netplan renderer to activate the new configuration.
func Apply(ctx context.Context, run system.Runner) error {
	if _, err := run.Run(ctx, "netplan", "apply"); err != nil {
		return fmt.Errorf("apply netplan configuration: %w", err)
	}
	return nil
}

// ProbeConnectivity sends a single best-effort ping to the public resolver.
// The caller treats failure as a warning only: if the operator is connected
// over the address being changed, the session drops and they reconnect on
// the new address.
func ProbeConnectivity(ctx context.Context, run system.Runner) error {
	_, err := run.Run(ctx, "ping", "-c", "1", "-W", "3", "8.8.8.8")
	return err
}

func copyDir(src, dst string) error {
	return filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if info.IsDir() {
			return os.MkdirAll(target, info.Mode())
		}
		return copyFile(path, target, info.Mode())
	})
}

func copyFile(src, dst string, mode os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
