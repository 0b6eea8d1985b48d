package types

import "testing"

func TestTimeStampLess(t *testing.T) {
	cases := []struct {
		a, b TimeStamp
		want bool
	}{
		{TimeStamp{Time: 1, Peer: 5}, TimeStamp{Time: 2, Peer: 1}, true},
		{TimeStamp{Time: 2, Peer: 1}, TimeStamp{Time: 1, Peer: 5}, false},
		{TimeStamp{Time: 5, Peer: 1}, TimeStamp{Time: 5, Peer: 2}, true},
		{TimeStamp{Time: 5, Peer: 2}, TimeStamp{Time: 5, Peer: 1}, false},
		{TimeStamp{Time: 5, Peer: 1}, TimeStamp{Time: 5, Peer: 1}, false},
	}
	for _, c := range cases {
		if got := c.a.Less(c.b); got != c.want {
			t.Errorf("%+v.Less(%+v) = %v, want %v", c.a, c.b, got, c.want)
		}
	}
}

func TestPeerIdDistance(t *testing.T) {
	if d := PeerId(10).Distance(PeerId(3)); d != 7 {
		t.Errorf("Distance(10,3) = %d, want 7", d)
	}
	if d := PeerId(3).Distance(PeerId(10)); d != -7 {
		t.Errorf("Distance(3,10) = %d, want -7", d)
	}
	if d := PeerId(0).Distance(PeerId(0)); d != 0 {
		t.Errorf("Distance(0,0) = %d, want 0", d)
	}
}

func TestSuccessorPicksClosestGreater(t *testing.T) {
	remaining := []PeerId{1, 5, 9, 20}
	got := Successor(remaining, 5)
	if got != 9 {
		t.Errorf("Successor(%v, 5) = %d, want 9", remaining, got)
	}
}

func TestSuccessorWrapsWhenNoneGreater(t *testing.T) {
	remaining := []PeerId{1, 2, 3}
	got := Successor(remaining, 100)
	if got != 1 {
		t.Errorf("Successor(%v, 100) = %d, want 1 (wrap to smallest)", remaining, got)
	}
}

func TestSuccessorSinglePeer(t *testing.T) {
	remaining := []PeerId{42}
	if got := Successor(remaining, 7); got != 42 {
		t.Errorf("Successor with one candidate = %d, want 42", got)
	}
}
