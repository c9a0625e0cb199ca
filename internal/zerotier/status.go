package zerotier

import (
	"errors"
	"fmt"
	"strings"
)

// Status classifies the node's connection to an overlay network, derived
// from the status token in `zerotier-cli listnetworks` output.
type Status int

const (
	// StatusUnknown is any status token this tool does not recognize.
	StatusUnknown Status = iota
	// StatusConnected means the controller authorized the node (token OK).
	StatusConnected
	// StatusPendingAuthorization means the node is waiting for controller
	// approval (token REQUESTING_CONFIGURATION).
	StatusPendingAuthorization
	// StatusAccessDenied means the controller rejected the node
	// (token ACCESS_DENIED).
	StatusAccessDenied
)

func (s Status) String() string {
	switch s {
	case StatusConnected:
		return "connected"
	case StatusPendingAuthorization:
		return "pending authorization"
	case StatusAccessDenied:
		return "access denied"
	default:
		return "unknown"
	}
}

// ErrNetworkNotFound is returned when the joined network id has no row in
// the listnetworks output, meaning status is unavailable.
var ErrNetworkNotFound = errors.New("network not found in listnetworks output")

// classifyToken maps a listnetworks status token to a Status. Pure function;
// any unrecognized token is StatusUnknown.
func classifyToken(token string) Status {
	switch token {
	case "OK":
		return StatusConnected
	case "REQUESTING_CONFIGURATION":
		return StatusPendingAuthorization
	case "ACCESS_DENIED":
		return StatusAccessDenied
	default:
		return StatusUnknown
	}
}

// NetworkState is the parsed per-network row from listnetworks.
type NetworkState struct {
	Status Status
	// AssignedIP is the first controller-assigned address (with prefix),
	// empty when none is assigned yet.
	AssignedIP string
}

// ParseListNetworks finds the row for networkID in `zerotier-cli
// listnetworks` output and classifies it.
//
// Row format:
//
//	200 listnetworks <nwid> <name> <mac> <status> <type> <dev> <ZT assigned ips>
//
// The name column is empty until the controller sends the network config,
// and may contain spaces once it does, so the trailing columns are anchored
// from the row end rather than counted from the front. The assigned-ips
// column is a comma-separated list or "-" when empty.
func ParseListNetworks(output []byte, networkID string) (*NetworkState, error) {
	for _, line := range strings.Split(string(output), "\n") {
		fields := strings.Fields(line)
		if len(fields) < 3 || fields[1] != "listnetworks" || fields[2] != networkID {
			continue
		}
		// 200 listnetworks nwid mac status type dev ips, plus the name
		// column when present.
		if len(fields) < 8 {
			return nil, fmt.Errorf("malformed listnetworks row for %s: %q", networkID, strings.TrimSpace(line))
		}

		state := &NetworkState{Status: classifyToken(fields[len(fields)-4])}
		if ips := fields[len(fields)-1]; ips != "-" {
			state.AssignedIP = strings.Split(ips, ",")[0]
		}
		return state, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrNetworkNotFound, networkID)
}
