package core

import (
	"testing"

	"github.com/jabolina/tangle/types"
)

func TestLifecycleFiresOnActualTransitionOnly(t *testing.T) {
	var seen []types.TangleState
	l := newLifecycle(func(s types.TangleState) { seen = append(seen, s) })

	if l.State() != types.Disconnected {
		t.Fatalf("initial state = %v, want Disconnected", l.State())
	}

	l.transition(types.Disconnected) // no-op, same state
	l.transition(types.RequestingHeap)
	l.transition(types.RequestingHeap) // no-op
	l.transition(types.Connected)

	want := []types.TangleState{types.RequestingHeap, types.Connected}
	if len(seen) != len(want) {
		t.Fatalf("seen = %v, want %v", seen, want)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("seen = %v, want %v", seen, want)
		}
	}
}

func TestLifecycleNilOnChangeDoesNotPanic(t *testing.T) {
	l := newLifecycle(nil)
	l.transition(types.Connected)
	if l.State() != types.Connected {
		t.Fatalf("State() = %v, want Connected", l.State())
	}
}
