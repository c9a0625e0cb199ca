// Package noderecord persists the single durable artifact of a bootstrap
// run: a flat KEY=value record describing the node's final configuration.
// The file is the contract between the bootstrap and the verify command;
// it is always written whole (never merged) and owned by this tool alone.
package noderecord

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// DefaultPath is where the record lives on a provisioned node.
const DefaultPath = "/etc/ansible-node.conf"

// Record is the node configuration written at the end of a successful run.
type Record struct {
	Hostname          string
	Interface         string
	StaticIP          string
	SubnetPrefix      int
	Gateway           string
	DNSServer         string
	SystemUser        string
	ZeroTierEnabled   bool
	ZeroTierNetworkID string
	ZeroTierNodeID    string
	ZeroTierIP        string
	BootstrapVersion  string
}

// toMap flattens the record into the fixed key set of the on-disk format.
func (r *Record) toMap() map[string]string {
	return map[string]string{
		"HOSTNAME":            r.Hostname,
		"INTERFACE":           r.Interface,
		"STATIC_IP":           r.StaticIP,
		"SUBNET_PREFIX":       strconv.Itoa(r.SubnetPrefix),
		"GATEWAY":             r.Gateway,
		"DNS_SERVER":          r.DNSServer,
		"SYSTEM_USER":         r.SystemUser,
		"ZEROTIER_ENABLED":    strconv.FormatBool(r.ZeroTierEnabled),
		"ZEROTIER_NETWORK_ID": r.ZeroTierNetworkID,
		"ZEROTIER_NODE_ID":    r.ZeroTierNodeID,
		"ZEROTIER_IP":         r.ZeroTierIP,
		"BOOTSTRAP_VERSION":   r.BootstrapVersion,
	}
}

// Save writes the record to path with owner-only permissions, replacing any
// previous content entirely.
func Save(r *Record, path string) error {
	content, err := godotenv.Marshal(r.toMap())
	if err != nil {
		return fmt.Errorf("marshal node record: %w", err)
	}
	if err := os.WriteFile(path, []byte(content+"\n"), 0o600); err != nil {
		return fmt.Errorf("write node record: %w", err)
	}
	return nil
}

// Load reads a record previously written by Save.
func Load(path string) (*Record, error) {
	values, err := godotenv.Read(path)
	if err != nil {
		return nil, fmt.Errorf("read node record %s: %w", path, err)
	}

	prefix, err := strconv.Atoi(values["SUBNET_PREFIX"])
	if err != nil {
		return nil, fmt.Errorf("invalid SUBNET_PREFIX %q: %w", values["SUBNET_PREFIX"], err)
	}
	// A record written without overlay provisioning carries "false" here;
	// treat anything unparseable as disabled.
	enabled, _ := strconv.ParseBool(values["ZEROTIER_ENABLED"])

	return &Record{
		Hostname:          values["HOSTNAME"],
		Interface:         values["INTERFACE"],
		StaticIP:          values["STATIC_IP"],
		SubnetPrefix:      prefix,
		Gateway:           values["GATEWAY"],
		DNSServer:         values["DNS_SERVER"],
		SystemUser:        values["SYSTEM_USER"],
		ZeroTierEnabled:   enabled,
		ZeroTierNetworkID: values["ZEROTIER_NETWORK_ID"],
		ZeroTierNodeID:    values["ZEROTIER_NODE_ID"],
		ZeroTierIP:        values["ZEROTIER_IP"],
		BootstrapVersion:  values["BOOTSTRAP_VERSION"],
	}, nil
}
