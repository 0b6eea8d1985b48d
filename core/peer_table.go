// Package core implements the Tangle coordinator: the peer table,
// lifecycle state machine, reentrant call path, inbound dispatch, heap
// request/bootstrap glue, and the pacing loop. Grounded on the teacher's
// pkg/mcast/protocol.go Unity struct (the top-level coordinator owning
// clock/transport/storage/state) and pkg/mcast/core/peer.go's per-message
// dispatch switch, generalized from atomic-multicast delivery ordering to
// rollback-aware lockstep execution ordering.
package core

import (
	"github.com/jabolina/tangle/types"
)

// PeerTable owns the mapping from PeerId to PeerRecord (spec §3). It is
// exclusively owned by the Tangle; every mutation happens inside the
// reentrancy serializer, so it needs no locking of its own.
type PeerTable struct {
	records map[types.PeerId]*types.PeerRecord
}

// NewPeerTable creates an empty table.
func NewPeerTable() *PeerTable {
	return &PeerTable{records: make(map[types.PeerId]*types.PeerRecord)}
}

// Join installs a fresh PeerRecord for peer, per on_peer_joined (spec §4.3).
func (t *PeerTable) Join(peer types.PeerId) *types.PeerRecord {
	r := types.NewPeerRecord()
	t.records[peer] = r
	return r
}

// Leave removes peer's record, per on_peer_left (spec §4.3).
func (t *PeerTable) Leave(peer types.PeerId) {
	delete(t.records, peer)
}

// Get returns peer's record, or ok=false if absent (an unknown-peer
// message, spec §7, must be dropped rather than installing a record here).
func (t *PeerTable) Get(peer types.PeerId) (*types.PeerRecord, bool) {
	r, ok := t.records[peer]
	return r, ok
}

// Len is the number of peers currently tracked.
func (t *PeerTable) Len() int {
	return len(t.records)
}

// Empty reports whether no peers are tracked (used for the single-peer
// session fast path in on_state_change, spec §4.3).
func (t *PeerTable) Empty() bool {
	return len(t.records) == 0
}

// IDs returns every tracked peer id, order unspecified.
func (t *PeerTable) IDs() []types.PeerId {
	ids := make([]types.PeerId, 0, len(t.records))
	for id := range t.records {
		ids = append(ids, id)
	}
	return ids
}

// Each calls fn for every (id, record) pair. fn must not mutate the table.
func (t *PeerTable) Each(fn func(types.PeerId, *types.PeerRecord)) {
	for id, r := range t.records {
		fn(id, r)
	}
}

// MinLastReceivedMessage returns the minimum LastReceivedMessage across all
// tracked peers, or the sentinel NoUpperBound if the table is empty. This
// feeds the pruning-watermark computation in spec §4.6 step 6.
func (t *PeerTable) MinLastReceivedMessage() types.SimTime {
	min := types.NoUpperBound
	for _, r := range t.records {
		if r.LastReceivedMessage < min {
			min = r.LastReceivedMessage
		}
	}
	return min
}

// LowestRTTPeer returns the tracked peer with the smallest RoundTripTime,
// used as a transport-independent fallback for GetLowestLatencyPeer when a
// Transport implementation (like transport/relt) has no native latency
// query of its own.
func (t *PeerTable) LowestRTTPeer() (types.PeerId, bool) {
	best := types.PeerId(0)
	bestRTT := -1.0
	found := false
	for id, r := range t.records {
		if !found || r.RoundTripTime < bestRTT {
			best = id
			bestRTT = r.RoundTripTime
			found = true
		}
	}
	return best, found
}
