package core

import (
	"bytes"

	"github.com/jabolina/tangle/types"
	"github.com/jabolina/tangle/wire"
)

// handlePeerJoinedCallback is the Transport's on_peer_joined entry point
// (spec §4.3). It marks peer as "joining" before entering the lane so a
// racing inbound message (handleMessageCallback) knows to enqueue behind
// it rather than treat peer as unknown — spec §4.2's enqueue_condition.
func (t *Tangle) handlePeerJoinedCallback(peer types.PeerId) {
	t.setPendingJoin(peer, true)
	t.lane.Run(func() {
		t.peerJoinedLocked(peer)
		t.setPendingJoin(peer, false)
	})
}

func (t *Tangle) peerJoinedLocked(peer types.PeerId) {
	t.peers.Join(peer)
	t.metrics.SetPeerCount(t.peers.Len())
	if err := t.transport.SendMessage(wire.EncodePing(t.now()), &peer); err != nil {
		t.logger.Errorf("tangle: ping to new peer %v failed: %v", peer, err)
	}
}

// handlePeerLeftCallback is the Transport's on_peer_left entry point (spec
// §4.3). Exactly one surviving peer — deterministically elected by
// types.Successor — invokes the module's peer_left export; everyone else
// observes that call arrive as an ordinary broadcast WasmCall, so all
// peers converge without anyone double-applying the departure.
func (t *Tangle) handlePeerLeftCallback(peer types.PeerId) {
	t.lane.Run(func() {
		t.peerLeftLocked(peer)
	})
}

func (t *Tangle) peerLeftLocked(peer types.PeerId) {
	t.peers.Leave(peer)
	t.metrics.SetPeerCount(t.peers.Len())

	remaining := append(t.peers.IDs(), t.id)
	elected := types.Successor(remaining, peer)
	if elected != t.id {
		return
	}

	index, ok := t.tm.GetFunctionExportIndex("peer_left")
	if !ok {
		t.logger.Debugf("tangle: module exports no peer_left, departure of %v unhandled", peer)
		return
	}
	t.executeAndBroadcastLocked(index, []float64{float64(peer)})
}

// handleRoomStateCallback is the Transport's on_state_change entry point
// (spec §4.3).
func (t *Tangle) handleRoomStateCallback(state types.RoomState) {
	t.lane.Run(func() {
		t.roomStateChangedLocked(state)
	})
}

func (t *Tangle) roomStateChangedLocked(state types.RoomState) {
	switch state {
	case types.RoomConnected:
		if !t.requestHeapLocked() {
			if t.peers.Empty() {
				t.enterConnectedLocked()
			}
		}
	case types.RoomJoining, types.RoomDisconnected:
		t.lifecycle.transition(types.Disconnected)
	}
}

// enterConnectedLocked transitions to Connected and resets the pacing
// baseline so the next progress_time tick records a fresh
// _last_performance_now instead of computing a bogus elapsed duration
// against a stale one (spec §4.7: "Entry into Connected records
// _last_performance_now").
func (t *Tangle) enterConnectedLocked() {
	t.lifecycle.transition(types.Connected)
	t.haveLastPerformanceNow = false
}

// requestHeapLocked implements _request_heap (spec §4.4): pick the
// lowest-latency peer, prime RTT with a Ping, request the heap, and
// transition to RequestingHeap. Returns false if no peer exists, in which
// case the caller decides the single-peer fallback.
func (t *Tangle) requestHeapLocked() bool {
	peer, ok := t.transport.GetLowestLatencyPeer()
	if !ok {
		peer, ok = t.peers.LowestRTTPeer()
	}
	if !ok {
		return false
	}

	if err := t.transport.SendMessage(wire.EncodePing(t.now()), &peer); err != nil {
		t.logger.Errorf("tangle: heap-request ping to %v failed: %v", peer, err)
	}
	if err := t.transport.SendMessage(wire.EncodeRequestState(), &peer); err != nil {
		t.logger.Errorf("tangle: heap request to %v failed: %v", peer, err)
	}
	t.lifecycle.transition(types.RequestingHeap)
	t.metrics.IncHeapRequest()
	return true
}

// handleMessageCallback is the Transport's on_message entry point (spec
// §4.3). It enqueues onto the lane rather than running immediately
// whenever peer currently has a join still in flight, preserving
// join-before-message causality (spec §4.2, §5).
func (t *Tangle) handleMessageCallback(peer types.PeerId, payload []byte) {
	task := func() { t.dispatchMessageLocked(peer, payload) }
	if t.isPendingJoin(peer) {
		t.lane.RunEnqueueOnly(task)
		return
	}
	t.lane.Run(task)
}

func (t *Tangle) dispatchMessageLocked(peer types.PeerId, payload []byte) {
	record, ok := t.peers.Get(peer)
	if !ok {
		t.logger.Warnf("tangle: message from unknown peer %v dropped", peer)
		return
	}

	decoded, err := wire.Decode(payload)
	if err != nil {
		t.logger.Warnf("tangle: malformed message from %v dropped: %v", peer, err)
		return
	}

	switch decoded.Kind {
	case types.KindWasmCall:
		t.onWasmCall(peer, record, decoded.WasmCall)
	case types.KindTimeProgressed:
		record.LastReceivedMessage = decoded.TimeProgressed.Time
	case types.KindRequestState:
		t.onRequestState()
	case types.KindSetProgram:
		// Reserved: no program-swap protocol is specified. accept_new_programs
		// only gates whether this would ever be honored; leave as a
		// documented no-op per spec §9.
		// TODO(SetProgram): honor accept_new_programs once a program swap
		// protocol is specified.
		t.logger.Debugf("tangle: SetProgram from %v ignored (reserved)", peer)
	case types.KindSetHeap:
		t.onSetHeap(record, decoded.SetHeap)
	case types.KindPing:
		if err := t.transport.SendMessage(wire.RewritePingToPong(payload), &peer); err != nil {
			t.logger.Errorf("tangle: pong to %v failed: %v", peer, err)
		}
	case types.KindPong:
		rtt := t.now() - decoded.Pong.WallClockMs
		record.RoundTripTime = rtt
		t.metrics.ObserveRTT(rtt)
	}
}

func (t *Tangle) onWasmCall(peer types.PeerId, record *types.PeerRecord, m types.WasmCallMessage) {
	record.LastReceivedMessage = m.Time

	if err := t.auth.Authenticate(peer, m.FunctionIndex, m.Args); err != nil {
		t.logger.Warnf("tangle: call from %v failed authentication: %v", peer, err)
		return
	}

	if t.lifecycle.State() == types.RequestingHeap {
		t.buffered = append(t.buffered, types.BufferedCall{
			FunctionIndex: m.FunctionIndex,
			TimeStamp:     types.TimeStamp{Time: m.Time, Peer: peer},
			Args:          m.Args,
		})
		return
	}

	ts := types.TimeStamp{Time: m.Time, Peer: peer}
	if ts.Time < t.tm.CurrentSimulationTime() {
		t.metrics.IncRollback()
	}
	if err := t.tm.CallWithTimeStamp(m.FunctionIndex, m.Args, ts, true); err != nil {
		t.logger.Errorf("tangle: remote call from %v at %v failed: %v", peer, ts, err)
		return
	}

	if t.tm.FixedUpdateInterval() == 0 {
		t.ProgressTime()
	}
}

func (t *Tangle) onRequestState() {
	heap, err := t.tm.Encode()
	if err != nil {
		t.logger.Errorf("tangle: encoding heap failed: %v", err)
		return
	}
	if err := t.transport.SendMessage(wire.EncodeSetHeap(heap), nil); err != nil {
		t.logger.Errorf("tangle: broadcasting heap failed: %v", err)
	}
}

// onSetHeap applies a SetHeap datagram (spec §4.3): ignored outright while
// already Connected (prevents rejoin storms); otherwise decode, replay
// every buffered call in arrival order, advance by half the sender's RTT
// to approximate its "now", then transition to Connected.
func (t *Tangle) onSetHeap(record *types.PeerRecord, m types.SetHeapMessage) {
	if t.lifecycle.State() == types.Connected {
		return
	}

	if err := t.tm.DecodeAndApply(bytes.NewReader(m.Heap)); err != nil {
		t.logger.Errorf("tangle: applying heap failed: %v", err)
		return
	}

	for _, bc := range t.buffered {
		if err := t.tm.CallWithTimeStamp(bc.FunctionIndex, bc.Args, bc.TimeStamp, true); err != nil {
			t.logger.Errorf("tangle: replaying buffered call %v failed: %v", bc.TimeStamp, err)
		}
	}
	t.buffered = nil

	t.tm.ProgressTime(record.RoundTripTime / 2)
	t.enterConnectedLocked()
}

func (t *Tangle) setPendingJoin(peer types.PeerId, pending bool) {
	t.pendingJoinMu.Lock()
	defer t.pendingJoinMu.Unlock()
	if pending {
		t.pendingJoin[peer] = true
	} else {
		delete(t.pendingJoin, peer)
	}
}

func (t *Tangle) isPendingJoin(peer types.PeerId) bool {
	t.pendingJoinMu.Lock()
	defer t.pendingJoinMu.Unlock()
	return t.pendingJoin[peer]
}
