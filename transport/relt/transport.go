// Package relt adapts github.com/jabolina/relt — the reliable multicast
// transport the teacher repo uses for inter-partition delivery
// (pkg/mcast/core/transport.go's ReliableTransport) — into the Room
// (types.Transport) interface the Tangle coordinator consumes.
//
// relt's unit of addressing is a named exchange ("group"), not an
// individual peer: every member of the exchange receives every broadcast,
// and inbound messages carry an Origin string but no join/leave
// notification. This adapter layers the peer-identity and
// membership-liveness semantics the Room interface requires (spec §6) on
// top of that: each distinct Origin seen on the wire is hashed into a
// PeerId and reported as a synthetic peer-joined the first time it's seen,
// and an idle peer is reported as peer-left after a liveness timeout —
// since relt itself has no departure signal to forward.
package relt

import (
	"context"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/jabolina/relt/pkg/relt"

	"github.com/jabolina/tangle/types"
)

// LivenessTimeout is how long a peer may stay silent before this adapter
// synthesizes a peer-left for it. relt provides no departure notification,
// so this is the only signal the coordinator gets that a peer is gone.
const LivenessTimeout = 10 * time.Second

// presenceWindow is how long Setup drains inbound traffic before reporting
// the room Connected. relt has no membership query of its own (the teacher's
// own ReliableTransport never asks relt "who's already here" either — it
// only Broadcasts/Consumes/Closes), so this adapter cannot synchronously
// enumerate peers already in the exchange. But a peer already Connected
// re-broadcasts a TimeProgressed keep-alive at least every 200ms once idle
// (spec §4.6 step 7), so any peer that has been in the room for even a
// moment is very likely to emit at least one message inside this window,
// letting Setup learn of it — and install its PeerRecord via the same
// on-first-message-seen logic onReceive always uses — before on_state_change
// ever observes RoomConnected. Without this, a joining peer's peer table
// would still be empty when RoomConnected fires, and the single-peer fast
// path (core/dispatch.go) would wrongly skip straight to Connected instead
// of requesting a heap.
const presenceWindow = 250 * time.Millisecond

// Transport implements types.Transport over a relt.Relt exchange.
type Transport struct {
	myID types.PeerId
	name string

	mu       sync.Mutex
	peers    map[types.PeerId]string // peer id -> relt origin
	lastSeen map[types.PeerId]time.Time

	exchange relt.GroupAddress
	client   *relt.Relt
	ctx      context.Context
	cancel   context.CancelFunc

	callbacks types.TransportCallbacks
	logger    types.Logger
}

// New creates an adapter identified by localName (passed to relt as the
// member Name) that will join the exchange given to Setup. logger may be
// nil.
func New(localName string, logger types.Logger) *Transport {
	return &Transport{
		myID:     hashPeerID(localName),
		name:     localName,
		peers:    make(map[types.PeerId]string),
		lastSeen: make(map[types.PeerId]time.Time),
		logger:   logger,
	}
}

func hashPeerID(origin string) types.PeerId {
	return types.PeerId(xxhash.Sum64String(origin))
}

func (t *Transport) MyID() types.PeerId {
	return t.myID
}

// Setup joins the named relt exchange, spends presenceWindow priming
// already-present peers, then starts polling for inbound messages and
// liveness timeouts before reporting the room Connected.
func (t *Transport) Setup(roomName string, callbacks types.TransportCallbacks) error {
	t.callbacks = callbacks
	t.exchange = relt.GroupAddress(roomName)

	conf := relt.DefaultReltConfiguration()
	conf.Name = t.name
	conf.Exchange = t.exchange
	client, err := relt.NewRelt(*conf)
	if err != nil {
		return err
	}
	t.client = client

	t.ctx, t.cancel = context.WithCancel(context.Background())

	listener, err := t.client.Consume()
	if err != nil {
		return err
	}

	t.drainPresence(listener, presenceWindow)

	go t.poll(listener)
	go t.watchLiveness()

	if callbacks.OnStateChange != nil {
		callbacks.OnStateChange(types.RoomConnected)
	}
	return nil
}

// drainPresence reads listener for d, dispatching every message exactly as
// poll would (including the synthetic peer-joined for any origin not yet
// seen), priming peers.peers before Setup reports Connected.
func (t *Transport) drainPresence(listener <-chan relt.Recv, d time.Duration) {
	deadline := time.NewTimer(d)
	defer deadline.Stop()
	for {
		select {
		case <-deadline.C:
			return
		case recv, ok := <-listener:
			if !ok {
				return
			}
			t.onReceive(recv)
		}
	}
}

func (t *Transport) SendMessage(payload []byte, peer *types.PeerId) error {
	// relt addresses an exchange, not an individual member; unicast is
	// approximated by broadcasting to the shared exchange and letting
	// every receiver's dispatch layer decide relevance (the Tangle core
	// already drops messages it has no reason to act on). This mirrors
	// the teacher's own Unicast, which is just a Broadcast to a single
	// partition's exchange (pkg/mcast/core/transport.go's apply).
	_ = peer
	return t.client.Broadcast(t.ctx, relt.Send{
		Address: t.exchange,
		Data:    payload,
	})
}

func (t *Transport) GetLowestLatencyPeer() (types.PeerId, bool) {
	// relt exposes no per-member latency; the coordinator's own peer
	// table (core.PeerTable.LowestRTTPeer) tracks RTT from Ping/Pong and
	// is used as the fallback whenever this returns false.
	return 0, false
}

func (t *Transport) Disconnect() error {
	if t.cancel != nil {
		t.cancel()
	}
	if t.client == nil {
		return nil
	}
	return t.client.Close()
}

func (t *Transport) poll(listener <-chan relt.Recv) {
	for {
		select {
		case <-t.ctx.Done():
			return
		case recv, ok := <-listener:
			if !ok {
				return
			}
			t.onReceive(recv)
		}
	}
}

func (t *Transport) onReceive(recv relt.Recv) {
	if recv.Error != nil {
		if t.logger != nil {
			t.logger.Errorf("tangle/relt: receive error: %v", recv.Error)
		}
		return
	}
	peer := hashPeerID(recv.Origin)
	if peer == t.myID {
		return
	}

	t.mu.Lock()
	_, known := t.peers[peer]
	if !known {
		t.peers[peer] = recv.Origin
	}
	t.lastSeen[peer] = time.Now()
	t.mu.Unlock()

	if !known && t.callbacks.OnPeerJoined != nil {
		t.callbacks.OnPeerJoined(peer)
	}
	if t.callbacks.OnMessage != nil {
		t.callbacks.OnMessage(peer, recv.Data)
	}
}

func (t *Transport) watchLiveness() {
	ticker := time.NewTicker(LivenessTimeout / 2)
	defer ticker.Stop()
	for {
		select {
		case <-t.ctx.Done():
			return
		case now := <-ticker.C:
			t.evictStale(now)
		}
	}
}

func (t *Transport) evictStale(now time.Time) {
	var departed []types.PeerId
	t.mu.Lock()
	for peer, seen := range t.lastSeen {
		if now.Sub(seen) > LivenessTimeout {
			departed = append(departed, peer)
			delete(t.peers, peer)
			delete(t.lastSeen, peer)
		}
	}
	t.mu.Unlock()

	for _, peer := range departed {
		if t.callbacks.OnPeerLeft != nil {
			t.callbacks.OnPeerLeft(peer)
		}
	}
}
