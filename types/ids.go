package types

import "sort"

// PeerId identifies a peer inside a room. It is opaque to the transport and
// totally ordered, which is all the coordinator needs: map-key equality and
// a signed distance for the departure election in Successor.
type PeerId uint64

// SimTime is simulation time in the units the Time Machine uses. It is
// monotonic non-decreasing in practice; small fractional offsets (see
// TimeStamp) disambiguate events issued at the same wall/sim instant.
type SimTime float64

// TimeStamp is the total order key the Time Machine executes calls under.
// Ties are broken by PeerID, never by arrival order.
type TimeStamp struct {
	Time SimTime
	Peer PeerId
}

// Less reports whether ts sorts strictly before other under (Time, Peer).
func (ts TimeStamp) Less(other TimeStamp) bool {
	if ts.Time != other.Time {
		return ts.Time < other.Time
	}
	return ts.Peer < other.Peer
}

// Distance returns a signed int64 distance from other to p (p - other),
// saturating instead of wrapping if the unsigned subtraction would
// underflow/overflow int64's range. Used only for departure election, which
// only cares about sign and relative magnitude among live peers.
func (p PeerId) Distance(other PeerId) int64 {
	if p >= other {
		d := p - other
		if d > (1<<63 - 1) {
			return 1<<63 - 1
		}
		return int64(d)
	}
	d := other - p
	if d > (1<<63 - 1) {
		return -(1<<63 - 1)
	}
	return -int64(d)
}

// Successor deterministically elects exactly one of `remaining` (which must
// not contain `departed`) to act on departed's behalf: the peer whose id
// minus the departed id is the smallest strictly positive distance. If no
// peer has a positive distance, the candidate with the smallest positive
// distance wrapping around (i.e. the overall minimum id greater than none
// exists) falls back to the globally smallest id, guaranteeing a unique,
// deterministic winner for any non-empty `remaining` regardless of which
// peer evaluates it.
func Successor(remaining []PeerId, departed PeerId) PeerId {
	candidates := make([]PeerId, len(remaining))
	copy(candidates, remaining)
	sort.Slice(candidates, func(i, j int) bool { return candidates[i] < candidates[j] })

	best := candidates[0]
	bestDist := int64(-1)
	found := false
	for _, id := range candidates {
		d := id.Distance(departed)
		if d > 0 && (!found || d < bestDist) {
			bestDist = d
			best = id
			found = true
		}
	}
	if found {
		return best
	}
	// Every remaining id is smaller than departed: wrap to the smallest id,
	// the conventional "closest successor on a ring" tiebreak.
	return candidates[0]
}
