// Package tangletest is a cluster-of-peers test harness for core.Tangle:
// an in-memory Room standing in for transport/relt (so tests never touch a
// socket) plus the multi-peer bootstrap/wait helpers the package test
// suites and the end-to-end scenario tests share.
//
// Grounded on the teacher's test/testing.go (UnityCluster, CreateCluster,
// WaitThisOrTimeout): same shape — a fixed-size group of peers created
// together, a round-robin accessor, a callback-or-timeout waiter — adapted
// from a cluster of replication Unities to a cluster of Tangle coordinators
// sharing one in-process Room instead of a network.
package tangletest

import (
	"sync"

	"github.com/jabolina/tangle/types"
)

// Network is an in-memory Room: every Transport created from the same
// Network that Setup-s with the same room name observes every other
// member's joins, leaves, and messages, with no actual I/O. It exists so
// core.Tangle's transport dependency (spec §6, explicitly external) can be
// exercised deterministically in tests.
type Network struct {
	mu    sync.Mutex
	rooms map[string]map[types.PeerId]*Transport
}

// NewNetwork creates an empty in-memory Room provider.
func NewNetwork() *Network {
	return &Network{rooms: make(map[string]map[types.PeerId]*Transport)}
}

// Transport implements types.Transport against a shared Network, letting a
// test stand up any number of Tangle peers in the same room with no
// network dependency.
type Transport struct {
	net       *Network
	id        types.PeerId
	room      string
	callbacks types.TransportCallbacks

	mu   sync.Mutex
	live bool
}

// NewTransport creates a Transport identified by id against net. Give every
// peer in a test a distinct id.
func (n *Network) NewTransport(id types.PeerId) *Transport {
	return &Transport{net: n, id: id}
}

func (tr *Transport) MyID() types.PeerId {
	return tr.id
}

func (tr *Transport) Setup(roomName string, callbacks types.TransportCallbacks) error {
	tr.room = roomName
	tr.callbacks = callbacks

	tr.net.mu.Lock()
	members, ok := tr.net.rooms[roomName]
	if !ok {
		members = make(map[types.PeerId]*Transport)
		tr.net.rooms[roomName] = members
	}
	existing := make([]*Transport, 0, len(members))
	for _, m := range members {
		existing = append(existing, m)
	}
	members[tr.id] = tr
	tr.net.mu.Unlock()

	tr.mu.Lock()
	tr.live = true
	tr.mu.Unlock()

	// Tell tr about every member already in the room before reporting
	// Connected: on_state_change's single-peer fast path (core/dispatch.go)
	// trusts the peer table to already reflect reality by the time
	// RoomConnected is handled, so a late peer must see these joins first
	// or it wrongly takes that fast path and never requests a heap.
	for _, other := range existing {
		tr.notifyPeerJoined(other.id)
	}

	// Tell every existing member about tr before reporting Connected too:
	// the heap request tr sends on RoomConnected is dropped as coming from
	// an unknown peer by any member that has not yet seen tr join.
	for _, other := range existing {
		other.notifyPeerJoined(tr.id)
	}

	if callbacks.OnStateChange != nil {
		callbacks.OnStateChange(types.RoomConnected)
	}
	return nil
}

func (tr *Transport) notifyPeerJoined(peer types.PeerId) {
	if tr.callbacks.OnPeerJoined != nil {
		tr.callbacks.OnPeerJoined(peer)
	}
}

// SendMessage delivers payload synchronously to peer, or to every other
// live member of the room when peer is nil. Synchronous delivery is a
// deliberate simplification for deterministic tests; it is safe because
// core.Tangle's reentrancy serializer (internal/serializer.Lane) makes
// every delivered callback reentrant-safe regardless of which goroutine
// calls it.
func (tr *Transport) SendMessage(payload []byte, peer *types.PeerId) error {
	tr.net.mu.Lock()
	members := tr.net.rooms[tr.room]
	targets := make([]*Transport, 0, len(members))
	if peer != nil {
		if m, ok := members[*peer]; ok {
			targets = append(targets, m)
		}
	} else {
		for id, m := range members {
			if id != tr.id {
				targets = append(targets, m)
			}
		}
	}
	tr.net.mu.Unlock()

	for _, target := range targets {
		target.deliver(tr.id, payload)
	}
	return nil
}

func (tr *Transport) deliver(from types.PeerId, payload []byte) {
	tr.mu.Lock()
	live := tr.live
	tr.mu.Unlock()
	if !live {
		return
	}
	if tr.callbacks.OnMessage != nil {
		tr.callbacks.OnMessage(from, payload)
	}
}

// GetLowestLatencyPeer always reports unknown: this in-memory Room has no
// latency of its own to measure, matching transport/relt's same
// simplification and exercising core.PeerTable.LowestRTTPeer's fallback.
func (tr *Transport) GetLowestLatencyPeer() (types.PeerId, bool) {
	return 0, false
}

// Disconnect leaves the room and tells every remaining member.
func (tr *Transport) Disconnect() error {
	tr.mu.Lock()
	tr.live = false
	tr.mu.Unlock()

	tr.net.mu.Lock()
	members := tr.net.rooms[tr.room]
	delete(members, tr.id)
	remaining := make([]*Transport, 0, len(members))
	for _, m := range members {
		remaining = append(remaining, m)
	}
	tr.net.mu.Unlock()

	for _, m := range remaining {
		if m.callbacks.OnPeerLeft != nil {
			m.callbacks.OnPeerLeft(tr.id)
		}
	}
	return nil
}
