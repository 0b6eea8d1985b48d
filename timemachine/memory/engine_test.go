package memory

import (
	"bytes"
	"testing"

	"github.com/jabolina/tangle/types"
)

func getCounter(t *testing.T, e *Engine) float64 {
	t.Helper()
	idx, ok := e.GetFunctionExportIndex("get")
	if !ok {
		t.Fatal("get export missing")
	}
	out, err := e.CallAndRevert(idx, nil)
	if err != nil {
		t.Fatalf("CallAndRevert(get): %v", err)
	}
	return out[0]
}

func call(t *testing.T, e *Engine, name string, ts types.TimeStamp, args ...float64) {
	t.Helper()
	idx, ok := e.GetFunctionExportIndex(name)
	if !ok {
		t.Fatalf("export %q missing", name)
	}
	if err := e.CallWithTimeStamp(idx, args, ts, true); err != nil {
		t.Fatalf("CallWithTimeStamp(%s): %v", name, err)
	}
}

func TestEngineSequentialIncrements(t *testing.T) {
	e := NewCounterEngine(0)
	call(t, e, "increment", types.TimeStamp{Time: 1, Peer: 1})
	call(t, e, "increment", types.TimeStamp{Time: 2, Peer: 1})
	call(t, e, "increment", types.TimeStamp{Time: 3, Peer: 1})

	if got := getCounter(t, e); got != 3 {
		t.Errorf("counter = %v, want 3", got)
	}
}

func TestCallAndRevertDoesNotCommit(t *testing.T) {
	e := NewCounterEngine(0)
	call(t, e, "increment", types.TimeStamp{Time: 1, Peer: 1})

	idx, _ := e.GetFunctionExportIndex("increment")
	if _, err := e.CallAndRevert(idx, nil); err != nil {
		t.Fatalf("CallAndRevert: %v", err)
	}

	if got := getCounter(t, e); got != 1 {
		t.Errorf("counter after CallAndRevert = %v, want 1 (unchanged)", got)
	}
}

// TestLateCallTriggersRollbackAndReapply exercises the core rollback
// contract: a call inserted at a timestamp earlier than calls already
// committed must be spliced into the log's sorted position and every
// later call re-applied on top of it, in the same order every time.
func TestLateCallTriggersRollbackAndReapply(t *testing.T) {
	e := NewCounterEngine(0)
	call(t, e, "add", types.TimeStamp{Time: 10, Peer: 1}, 10)
	call(t, e, "add", types.TimeStamp{Time: 20, Peer: 1}, 5)

	if got := getCounter(t, e); got != 15 {
		t.Fatalf("counter before late call = %v, want 15", got)
	}

	// Arrives "late": timestamp 15 sorts between the two calls above.
	call(t, e, "add", types.TimeStamp{Time: 15, Peer: 2}, 100)

	if got := getCounter(t, e); got != 115 {
		t.Errorf("counter after late call = %v, want 115 (10+100+5 replayed in ts order)", got)
	}
}

func TestTwoEnginesConvergeRegardlessOfArrivalOrder(t *testing.T) {
	a := NewCounterEngine(0)
	b := NewCounterEngine(0)

	calls := []struct {
		ts  types.TimeStamp
		val float64
	}{
		{types.TimeStamp{Time: 30, Peer: 1}, 3},
		{types.TimeStamp{Time: 10, Peer: 2}, 1},
		{types.TimeStamp{Time: 20, Peer: 1}, 2},
	}

	for _, c := range calls { // a sees them in this order
		call(t, a, "add", c.ts, c.val)
	}
	for i := len(calls) - 1; i >= 0; i-- { // b sees them reversed
		call(t, b, "add", calls[i].ts, calls[i].val)
	}

	ga, gb := getCounter(t, a), getCounter(t, b)
	if ga != gb {
		t.Errorf("engines diverged: a=%v b=%v", ga, gb)
	}
	if ga != 6 {
		t.Errorf("converged value = %v, want 6", ga)
	}
}

func TestRemoveHistoryBeforeReturnsNearestEarlierSnapshot(t *testing.T) {
	e := NewCounterEngine(0)
	call(t, e, "increment", types.TimeStamp{Time: 10, Peer: 1})
	e.TakeSnapshot() // snapshot at simTime 10 (the call raised current time)

	e.ProgressTime(100)
	more, err := e.Step()
	if err != nil {
		t.Fatalf("Step: %v", err)
	}
	if more {
		t.Fatal("expected Step to catch up fully in variable-step mode")
	}
	e.TakeSnapshot()

	prunedTo := e.RemoveHistoryBefore(50)
	if prunedTo > 50 {
		t.Errorf("RemoveHistoryBefore(50) pruned to %v, which is after the cutoff", prunedTo)
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	src := NewCounterEngine(0)
	call(t, src, "add", types.TimeStamp{Time: 5, Peer: 1}, 7)
	call(t, src, "add", types.TimeStamp{Time: 9, Peer: 2}, 2)

	heap, err := src.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	dst := NewCounterEngine(0)
	if err := dst.DecodeAndApply(bytes.NewReader(heap)); err != nil {
		t.Fatalf("DecodeAndApply: %v", err)
	}

	if got, want := getCounter(t, dst), getCounter(t, src); got != want {
		t.Errorf("decoded counter = %v, want %v", got, want)
	}

	// A call that sorts between calls already in the decoded heap must
	// still roll back and reapply correctly.
	call(t, dst, "add", types.TimeStamp{Time: 7, Peer: 3}, 100)
	if got := getCounter(t, dst); got != 109 {
		t.Errorf("counter after post-heap rollback = %v, want 109", got)
	}
}

func TestFixedStepAdvancesGradually(t *testing.T) {
	e := NewCounterEngine(10)
	call(t, e, "increment", types.TimeStamp{Time: 5, Peer: 1})
	e.ProgressTime(25)

	steps := 0
	for {
		more, err := e.Step()
		if err != nil {
			t.Fatalf("Step: %v", err)
		}
		steps++
		if !more {
			break
		}
		if steps > 10 {
			t.Fatal("Step never converged")
		}
	}
	if e.CurrentSimulationTime() != e.TargetTime() {
		t.Errorf("current=%v target=%v, want equal after draining", e.CurrentSimulationTime(), e.TargetTime())
	}
	if steps < 2 {
		t.Errorf("fixed-step Step should need more than one call to cover 25ms at 10ms/tick, got %d", steps)
	}
}
