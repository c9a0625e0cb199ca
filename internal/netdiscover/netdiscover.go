// Package netdiscover inspects live host network state to produce the
// snapshot the static reconfiguration is derived from. It parses the JSON
// output of iproute2 (`ip -j`), which is stable across the supported Ubuntu
// releases, plus /etc/resolv.conf for the configured resolver.
package netdiscover

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/homefleet/nodeprep/internal/system"
)

// FallbackDNS is used when no resolver is configured on the host.
const FallbackDNS = "8.8.8.8"

// Network is the snapshot of live network state the pipeline starts from.
type Network struct {
	Interface  string
	Address    string
	PrefixLen  int
	Gateway    string
	DNSServers []string
	Hostname   string
}

// Function variables swapped in tests.
var (
	readResolvConf = func() ([]byte, error) { return os.ReadFile("/etc/resolv.conf") }
	hostname       = os.Hostname
)

type ipRoute struct {
	Dst     string `json:"dst"`
	Gateway string `json:"gateway"`
	Dev     string `json:"dev"`
}

type ipAddr struct {
	IfName   string `json:"ifname"`
	AddrInfo []struct {
		Family    string `json:"family"`
		Local     string `json:"local"`
		PrefixLen int    `json:"prefixlen"`
	} `json:"addr_info"`
}

// Discover produces the network snapshot. A missing interface, address, or
// gateway means the host is not a supported target and is fatal; a missing
// resolver is tolerated via the public fallback.
func Discover(ctx context.Context, run system.Runner) (*Network, error) {
	routeOut, err := run.Run(ctx, "ip", "-j", "route", "show", "default")
	if err != nil {
		return nil, fmt.Errorf("read default route: %w", err)
	}
	iface, gateway, err := ParseDefaultRoute(routeOut)
	if err != nil {
		return nil, err
	}

	addrOut, err := run.Run(ctx, "ip", "-j", "addr", "show", "dev", iface)
	if err != nil {
		return nil, fmt.Errorf("read addresses of %s: %w", iface, err)
	}
	address, prefixLen, err := ParseFirstIPv4(addrOut, iface)
	if err != nil {
		return nil, err
	}

	dns := FallbackDNS
	if data, err := readResolvConf(); err == nil {
		if server := firstNameserver(string(data)); server != "" {
			dns = server
		}
	}

	host, err := hostname()
	if err != nil {
		return nil, fmt.Errorf("read hostname: %w", err)
	}

	return &Network{
		Interface:  iface,
		Address:    address,
		PrefixLen:  prefixLen,
		Gateway:    gateway,
		DNSServers: []string{dns},
		Hostname:   host,
	}, nil
}

// ParseDefaultRoute extracts the interface and next-hop from
// `ip -j route show default` output.
func ParseDefaultRoute(output []byte) (iface, gateway string, err error) {
	var routes []ipRoute
	if err := json.Unmarshal(output, &routes); err != nil {
		return "", "", fmt.Errorf("parse route output: %w", err)
	}
	for _, r := range routes {
		if r.Dev != "" && r.Gateway != "" {
			return r.Dev, r.Gateway, nil
		}
	}
	return "", "", fmt.Errorf("no default route found; configure networking before running this tool")
}

// ParseFirstIPv4 extracts the first IPv4 address and prefix length for the
// given interface from `ip -j addr show` output.
func ParseFirstIPv4(output []byte, iface string) (address string, prefixLen int, err error) {
	var addrs []ipAddr
	if err := json.Unmarshal(output, &addrs); err != nil {
		return "", 0, fmt.Errorf("parse addr output: %w", err)
	}
	for _, a := range addrs {
		if a.IfName != iface {
			continue
		}
		for _, info := range a.AddrInfo {
			if info.Family == "inet" && info.Local != "" {
				return info.Local, info.PrefixLen, nil
			}
		}
	}
	return "", 0, fmt.Errorf("interface %s has no IPv4 address", iface)
}

// firstNameserver returns the first `nameserver` entry in resolv.conf
// content, or empty if none is configured.
func firstNameserver(content string) string {
	for _, line := range strings.Split(content, "\n") {
		fields := strings.Fields(strings.TrimSpace(line))
		if len(fields) >= 2 && fields[0] == "nameserver" {
			return fields[1]
		}
	}
	return ""
}
