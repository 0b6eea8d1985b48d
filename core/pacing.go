package core

import (
	"github.com/jabolina/tangle/types"
	"github.com/jabolina/tangle/wire"
)

// divergenceHorizonMs is the rollback-safe horizon of spec §4.6 step 3:
// beyond this much lag in fixed-step mode, a peer re-requests a fresh heap
// instead of trying to roll forward through history it may have already
// pruned.
const divergenceHorizonMs = 2000.0

// pruningCushionMs masks an edge case where a snapshot immediately at the
// pruning boundary may not be available (spec §9, carried verbatim). The
// pacing loop takes a snapshot after every Step (runStepBudget), and the
// reference timemachine/memory.Engine returns the nearest-earlier snapshot
// time from RemoveHistoryBefore (DESIGN.md's "50ms pruning cushion"
// decision); this constant remains as a second line of defense.
const pruningCushionMs = 50.0

// keepAliveThresholdMs is the quiet-peer threshold of spec §4.6 step 7.
const keepAliveThresholdMs = 200.0

// stepBudgetFraction is the fraction of elapsed wall-clock time the pacing
// loop spends catching up simulation time (spec §4.6 step 5's backpressure
// mechanism).
const stepBudgetFraction = 0.7

// progressTimeLocked runs one pacing-loop iteration (spec §4.6). Must run
// inside the lane.
func (t *Tangle) progressTimeLocked() {
	now := t.now()
	if !t.haveLastPerformanceNow {
		t.lastPerformanceNow = now
		t.haveLastPerformanceNow = true
		return
	}

	elapsed := now - t.lastPerformanceNow

	if fixed := t.tm.FixedUpdateInterval(); fixed > 0 {
		lagging := float64(t.tm.TargetTime())+elapsed-float64(t.tm.CurrentSimulationTime()) > divergenceHorizonMs
		if lagging {
			elapsed = fixed
			if !t.peers.Empty() {
				t.requestHeapLocked()
			}
			// single-peer: nothing to resync against, just absorb the jump.
		}
	}

	t.tm.ProgressTime(elapsed)

	t.runStepBudget(now, stepBudgetFraction*elapsed)
	t.pruneHistory()
	t.sendKeepAlives()

	if elapsed > 0 {
		t.messageTimeOffset = 0
	}
	t.lastPerformanceNow = now
}

// runStepBudget executes step() repeatedly, snapshotting after each step,
// until either no work remains or the wall-clock budget is exhausted (spec
// §4.6 step 5). start is the wall-clock reading progress_time began at, so
// the budget is measured against real elapsed execution time, not sim
// time.
func (t *Tangle) runStepBudget(start, budget float64) {
	if budget <= 0 {
		return
	}
	for {
		if t.now()-start >= budget {
			return
		}
		more, err := t.tm.Step()
		if err != nil {
			t.logger.Errorf("tangle: step failed: %v", err)
			return
		}
		t.tm.TakeSnapshot()
		if !more {
			return
		}
	}
}

// pruneHistory computes the pruning watermark and instructs the Time
// Machine to discard history before it (spec §4.6 step 6, testable
// property 3).
func (t *Tangle) pruneHistory() {
	earliestSafe := t.tm.CurrentSimulationTime()
	if minReceived := t.peers.MinLastReceivedMessage(); minReceived < earliestSafe {
		earliestSafe = minReceived
	}
	cutoff := earliestSafe - pruningCushionMs
	prunedTo := t.tm.RemoveHistoryBefore(cutoff)
	t.metrics.SetPruneWatermark(float64(prunedTo))
}

// sendKeepAlives advances quiet peers' pruning watermarks with a
// TimeProgressed hint (spec §4.6 step 7). This is a hint-send only: the
// pacing loop does not itself mutate last_sent_message, per spec — that
// bookkeeping happens in steady state via the call path (spec §4.5 step f).
func (t *Tangle) sendKeepAlives() {
	target := t.tm.TargetTime()
	t.peers.Each(func(peer types.PeerId, r *types.PeerRecord) {
		if float64(target)-float64(r.LastSentMessage) <= keepAliveThresholdMs {
			return
		}
		payload := wire.EncodeTimeProgressed(target)
		if err := t.transport.SendMessage(payload, &peer); err != nil {
			t.logger.Errorf("tangle: keep-alive to %v failed: %v", peer, err)
		}
	})
}
