package types

import "math"

// PeerRecord tracks per-peer liveness and latency. It is only ever mutated
// inside the reentrancy serializer (internal/serializer).
type PeerRecord struct {
	LastSentMessage     SimTime
	LastReceivedMessage SimTime
	RoundTripTime       float64 // milliseconds
}

// NoUpperBound is the sentinel LastReceivedMessage a freshly joined peer is
// given: "no upper bound is known yet, this peer cannot be used to justify
// pruning history." It must never participate in a min() that could lower
// the pruning watermark below what it actually implies.
const NoUpperBound = SimTime(math.MaxFloat64)

// NewPeerRecord creates the record installed by on_peer_joined.
func NewPeerRecord() *PeerRecord {
	return &PeerRecord{
		LastSentMessage:     0,
		LastReceivedMessage: NoUpperBound,
		RoundTripTime:       0,
	}
}

// TangleState is the lifecycle state machine driving what a peer may do
// with inbound WasmCalls.
type TangleState int

const (
	// Disconnected: either the transport isn't connected, or it is but we
	// have not yet bootstrapped.
	Disconnected TangleState = iota
	// RequestingHeap: a full-state request is outstanding; inbound calls
	// are buffered instead of executed.
	RequestingHeap
	// Connected: calls execute immediately and heap requests are served.
	Connected
)

func (s TangleState) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case RequestingHeap:
		return "requesting_heap"
	case Connected:
		return "connected"
	default:
		return "unknown"
	}
}

// BufferedCall is a WasmCall received while RequestingHeap, held until
// SetHeap is applied and then replayed in arrival order.
type BufferedCall struct {
	FunctionIndex uint32
	TimeStamp     TimeStamp
	Args          []float64
}
