package core

import (
	"testing"

	"github.com/jabolina/tangle/types"
)

func TestPeerTableJoinLeave(t *testing.T) {
	pt := NewPeerTable()
	if !pt.Empty() {
		t.Fatal("fresh table not empty")
	}

	pt.Join(1)
	if pt.Len() != 1 {
		t.Fatalf("Len = %d, want 1", pt.Len())
	}
	if _, ok := pt.Get(1); !ok {
		t.Fatal("Get(1) not found after Join")
	}

	pt.Leave(1)
	if !pt.Empty() {
		t.Fatal("table not empty after Leave")
	}
	if _, ok := pt.Get(1); ok {
		t.Fatal("Get(1) still found after Leave")
	}
}

func TestPeerTableMinLastReceivedMessageSentinelWhenEmpty(t *testing.T) {
	pt := NewPeerTable()
	if got := pt.MinLastReceivedMessage(); got != types.NoUpperBound {
		t.Errorf("MinLastReceivedMessage on empty table = %v, want NoUpperBound", got)
	}
}

func TestPeerTableMinLastReceivedMessage(t *testing.T) {
	pt := NewPeerTable()
	pt.Join(1)
	pt.Join(2)

	r1, _ := pt.Get(1)
	r1.LastReceivedMessage = 50
	r2, _ := pt.Get(2)
	r2.LastReceivedMessage = 10

	if got := pt.MinLastReceivedMessage(); got != 10 {
		t.Errorf("MinLastReceivedMessage = %v, want 10", got)
	}
}

func TestPeerTableLowestRTTPeer(t *testing.T) {
	pt := NewPeerTable()
	if _, ok := pt.LowestRTTPeer(); ok {
		t.Fatal("LowestRTTPeer on empty table returned ok=true")
	}

	pt.Join(1)
	r1, _ := pt.Get(1)
	r1.RoundTripTime = 40

	pt.Join(2)
	r2, _ := pt.Get(2)
	r2.RoundTripTime = 5

	got, ok := pt.LowestRTTPeer()
	if !ok || got != 2 {
		t.Errorf("LowestRTTPeer = (%v, %v), want (2, true)", got, ok)
	}
}
