package types

// RoomState mirrors the external Room's connection state.
type RoomState int

const (
	RoomDisconnected RoomState = iota
	RoomJoining
	RoomConnected
)

func (s RoomState) String() string {
	switch s {
	case RoomDisconnected:
		return "disconnected"
	case RoomJoining:
		return "joining"
	case RoomConnected:
		return "connected"
	default:
		return "unknown"
	}
}

// TransportCallbacks is the set of callbacks a Transport invokes into the
// Tangle coordinator. Registered once, at Setup.
type TransportCallbacks struct {
	OnPeerJoined   func(peer PeerId)
	OnPeerLeft     func(peer PeerId)
	OnStateChange  func(state RoomState)
	OnMessage      func(peer PeerId, payload []byte)
}

// Transport is the external peer-to-peer datagram layer the coordinator
// consumes: ordered, reliable per-peer delivery, membership events, and a
// latency hint. §6 specifies exactly this surface.
type Transport interface {
	// Setup registers callbacks and begins connecting to roomName.
	Setup(roomName string, callbacks TransportCallbacks) error

	// SendMessage sends payload to a single peer, or broadcasts to all
	// peers when peer is nil.
	SendMessage(payload []byte, peer *PeerId) error

	// GetLowestLatencyPeer returns the peer with the smallest known RTT,
	// or ok=false if no peer is known.
	GetLowestLatencyPeer() (peer PeerId, ok bool)

	// MyID is this transport's own identity in the room.
	MyID() PeerId

	// Disconnect tears down the room connection. No further callbacks
	// fire after it returns.
	Disconnect() error
}
