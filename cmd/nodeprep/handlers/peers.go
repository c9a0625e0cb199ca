package handlers

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/homefleet/nodeprep/internal/system"
	"github.com/homefleet/nodeprep/internal/ui"
)

// PeerResult is the reachability outcome for one peer address.
type PeerResult struct {
	Address   string
	Reachable bool
}

// Peers probes reachability of peer nodes over the overlay network with one
// ping each. With no explicit peers it probes the record's own overlay
// address as a loopback sanity check. Read-only; exits non-zero when any
// peer is unreachable.
func Peers(ctx context.Context, recordPath string, peers []string, timeout time.Duration) error {
	if len(peers) == 0 {
		record, err := loadRecord(recordPath)
		if err != nil {
			return fmt.Errorf("no peers given and no node record at %s: %w", recordPath, err)
		}
		if record.ZeroTierIP == "" {
			return fmt.Errorf("no peers given and the node record has no overlay address")
		}
		peers = []string{record.ZeroTierIP}
	}

	results := probePeers(ctx, newRunner(), peers, timeout)

	log := ui.NewLogger()
	log.Section("Peer Reachability")
	unreachable := 0
	for _, result := range results {
		if result.Reachable {
			log.Success("%s reachable", result.Address)
		} else {
			log.Error("%s unreachable", result.Address)
			unreachable++
		}
	}
	if unreachable > 0 {
		return fmt.Errorf("%d of %d peers unreachable", unreachable, len(results))
	}
	return nil
}

func probePeers(ctx context.Context, run system.Runner, peers []string, timeout time.Duration) []PeerResult {
	seconds := int(timeout.Seconds())
	if seconds < 1 {
		seconds = 1
	}

	results := make([]PeerResult, 0, len(peers))
	for _, peer := range peers {
		_, err := run.Run(ctx, "ping", "-c", "1", "-W", strconv.Itoa(seconds), peer)
		results = append(results, PeerResult{Address: peer, Reachable: err == nil})
	}
	return results
}
