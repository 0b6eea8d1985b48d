package core

import (
	"fmt"
	"sync"
	"time"

	"github.com/jabolina/tangle/definition"
	"github.com/jabolina/tangle/internal/serializer"
	"github.com/jabolina/tangle/types"
	"github.com/jabolina/tangle/wire"
)

// TimeMachineFactory constructs the external Time Machine collaborator
// from the module binary, an opaque host import table, and an optional
// fixed-update interval (0 = variable-step mode). Matches the
// `setup(binary, imports, fixed_update_interval?) -> TimeMachine` surface
// of spec §6.
type TimeMachineFactory func(binary []byte, imports interface{}, fixedUpdateIntervalMs float64) (types.TimeMachine, error)

// Tangle is the rollback-aware distributed execution coordinator: the
// public surface of spec §6 (setup, call, call_and_revert, resync,
// progress_time, read_memory, read_string, disconnect) plus the state it
// exclusively owns (spec §3's Ownership paragraph): the peer table, the
// buffered-call queue, the serializer's inner queue, the program binary,
// and the lifecycle state.
//
// Grounded on pkg/mcast/protocol.go's Unity: a single struct owning
// clock/transport/storage/state and driving a run loop over inbound RPCs,
// generalized here from atomic-multicast delivery to rollback-aware
// lockstep call execution.
type Tangle struct {
	id types.PeerId

	lane      *serializer.Lane
	tm        types.TimeMachine
	transport types.Transport
	peers     *PeerTable
	lifecycle *lifecycle

	logger  types.Logger
	auth    types.ArgAuthenticator
	metrics *definition.Metrics
	now     func() float64

	config        types.Config
	programBinary []byte

	buffered          []types.BufferedCall
	messageTimeOffset float64

	lastPerformanceNow     float64
	haveLastPerformanceNow bool

	// pendingJoin backs spec §4.2's enqueue_condition: a peer id is
	// present here from the moment its on_peer_joined callback fires
	// until that join has actually been processed inside the lane,
	// so a racing inbound message for the same peer enqueues behind
	// the join instead of being dropped as "unknown peer".
	pendingJoinMu sync.Mutex
	pendingJoin   map[types.PeerId]bool
}

// Bootstrap wires a Tangle coordinator: it initializes the Time Machine
// (spec §4.1 step 1), computes the binary's stable hash and appends it to
// the room name (step 2), registers transport callbacks and connects
// (step 3), and starts Disconnected (step 4).
func Bootstrap(
	binary []byte,
	imports interface{},
	newTimeMachine TimeMachineFactory,
	transport types.Transport,
	cfg types.Config,
) (*Tangle, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.WithDefaults(definition.NewDefaultLogger, defaultNow)

	tm, err := newTimeMachine(binary, imports, cfg.FixedUpdateIntervalMs)
	if err != nil {
		return nil, fmt.Errorf("tangle: time machine setup: %w", err)
	}

	t := &Tangle{
		id:            transport.MyID(),
		lane:          serializer.New(),
		tm:            tm,
		transport:     transport,
		peers:         NewPeerTable(),
		logger:        cfg.Logger,
		auth:          cfg.Auth,
		metrics:       definition.NewMetrics(cfg.Metrics),
		now:           cfg.Now,
		config:        cfg,
		programBinary: binary,
		pendingJoin:   make(map[types.PeerId]bool),
	}
	t.lifecycle = newLifecycle(cfg.OnStateChange)

	roomName := cfg.RoomName
	if roomName == "" {
		roomName = cfg.DeriveRoomName()
	}
	roomName = roomName + "-" + definition.StableHash(binary)

	callbacks := types.TransportCallbacks{
		OnPeerJoined:  t.handlePeerJoinedCallback,
		OnPeerLeft:    t.handlePeerLeftCallback,
		OnStateChange: t.handleRoomStateCallback,
		OnMessage:     t.handleMessageCallback,
	}
	if err := transport.Setup(roomName, callbacks); err != nil {
		return nil, fmt.Errorf("tangle: transport setup: %w", err)
	}

	return t, nil
}

func defaultNow() float64 {
	return float64(time.Now().UnixNano()) / 1e6
}

// State returns the current lifecycle state. Safe to call from any
// goroutine; TangleState is a plain int that only lifecycle.transition,
// running inside the lane, ever writes.
func (t *Tangle) State() types.TangleState {
	return t.lifecycle.State()
}

// Call resolves name, executes it locally and authoritatively under a
// freshly minted TimeStamp, and broadcasts it to every peer (spec §4.5).
func (t *Tangle) Call(name string, args ...float64) {
	t.lane.Run(func() {
		t.callLocked(name, args)
	})
}

func (t *Tangle) callLocked(name string, args []float64) {
	index, ok := t.tm.GetFunctionExportIndex(name)
	if !ok {
		t.logger.Warnf("tangle: call to unknown function %q dropped", name)
		return
	}
	t.executeAndBroadcastLocked(index, substituteUserID(args, t.id))
}

// executeAndBroadcastLocked is the shared body of a local Call and of the
// peer-departure election's authoritative invocation (spec §4.3's
// on_peer_left): build a TimeStamp, execute locally, broadcast the
// resulting WasmCall, and bump every peer's conservative last_sent_message
// upper bound (spec §4.5 steps c-f). Must run inside the lane.
func (t *Tangle) executeAndBroadcastLocked(index uint32, args []float64) {
	ts := types.TimeStamp{
		Time: t.tm.TargetTime() + types.SimTime(t.messageTimeOffset),
		Peer: t.id,
	}
	t.messageTimeOffset += 1e-4

	if err := t.tm.CallWithTimeStamp(index, args, ts, true); err != nil {
		t.logger.Errorf("tangle: local call at %v failed: %v", ts, err)
		return
	}

	payload := wire.EncodeWasmCall(types.WasmCallMessage{
		FunctionIndex: index,
		Time:          ts.Time,
		Args:          args,
	})
	if err := t.transport.SendMessage(payload, nil); err != nil {
		t.logger.Errorf("tangle: broadcast failed: %v", err)
	}

	t.peers.Each(func(_ types.PeerId, r *types.PeerRecord) {
		if r.LastReceivedMessage > ts.Time {
			r.LastSentMessage = r.LastReceivedMessage
		} else {
			r.LastSentMessage = ts.Time
		}
	})

	if t.tm.FixedUpdateInterval() == 0 {
		t.ProgressTime()
	}
}

// substituteUserID replaces every UserIDSentinel argument with the local
// PeerId's numeric form (spec §4.5a). Remote peers do not re-substitute;
// see types.ArgAuthenticator and DESIGN.md's "arg substitution asymmetry".
func substituteUserID(args []float64, self types.PeerId) []float64 {
	out := make([]float64, len(args))
	for i, a := range args {
		if types.IsUserIDSentinel(a) {
			out[i] = float64(self)
		} else {
			out[i] = a
		}
	}
	return out
}

// CallAndRevert executes name speculatively: no commit to history, no
// network exchange. Useful for pure queries and rendering (spec §4.5).
func (t *Tangle) CallAndRevert(name string, args ...float64) ([]float64, error) {
	var result []float64
	var callErr error
	t.lane.RunWait(func() {
		index, ok := t.tm.GetFunctionExportIndex(name)
		if !ok {
			t.logger.Warnf("tangle: call_and_revert to unknown function %q dropped", name)
			return
		}
		result, callErr = t.tm.CallAndRevert(index, substituteUserID(args, t.id))
	})
	return result, callErr
}

// Resync requests a fresh heap from the lowest-latency peer (spec §4.5's
// resync, which is just a serializer-wrapped _request_heap, spec §4.4).
func (t *Tangle) Resync() {
	t.lane.Run(func() {
		t.requestHeapLocked()
	})
}

// ProgressTime runs one pacing-loop iteration (spec §4.6). Called by the
// embedder's tick driver and, in variable-step mode, after every local or
// remote call.
func (t *Tangle) ProgressTime() {
	t.lane.Run(func() {
		t.progressTimeLocked()
	})
}

// ReadMemory/ReadString expose the module's linear memory to the embedder,
// routed through the lane so they never race an in-flight rollback. They
// block on RunWait rather than Run because the caller reads out/err the
// instant the call returns — Run would let that read race the enqueued
// closure when the lane is busy.
func (t *Tangle) ReadMemory(addr, length uint32) ([]byte, error) {
	var out []byte
	var err error
	t.lane.RunWait(func() {
		out, err = t.tm.ReadMemory(addr, length)
	})
	return out, err
}

func (t *Tangle) ReadString(addr, length uint32) (string, error) {
	var out string
	var err error
	t.lane.RunWait(func() {
		out, err = t.tm.ReadString(addr, length)
	})
	return out, err
}

// Disconnect tears down the transport. No retries are initiated by the
// core (spec §7: "embedder policy"); a later serialized task against a
// dead transport simply becomes a no-op send error, logged and dropped.
// Uses RunWait, not Run, so the returned err is the one the closure actually
// set rather than its zero value read before the closure ran.
func (t *Tangle) Disconnect() error {
	var err error
	t.lane.RunWait(func() {
		err = t.transport.Disconnect()
		t.lifecycle.transition(types.Disconnected)
	})
	return err
}
