// Package memory is a reference, in-process implementation of
// types.TimeMachine: a deterministic module plus a log of committed calls
// and periodic snapshots, used by tangletest and the package test suites in
// place of a real rollback-capable execution engine (spec §6 treats the
// Time Machine as wholly external; this is the stand-in that makes the
// coordinator's rollback contract exercisable without one).
//
// Grounded on the teacher's pkg/mcast/types/state_machine.go
// (InMemoryStateMachine: a map-backed Commit/Restore contract) and
// pkg/mcast/types/storage.go (snapshot-by-copy storage), generalized from
// "apply one command, keep the last state" to "apply a sorted log of
// timestamped calls, keep many snapshots, roll back and replay on a late
// insert".
package memory

import (
	"fmt"
	"sort"

	"github.com/jabolina/tangle/types"
)

// Func is one exported function of the deterministic module under
// management: it reads and writes mem and may return result values (used
// by CallAndRevert).
type Func func(mem *Memory, args []float64) ([]float64, error)

type logEntry struct {
	ts    types.TimeStamp
	index uint32
	args  []float64
	fn    Func
}

type snapshot struct {
	afterIndex int // len(log) reflected in mem at the time this was taken
	simTime    types.SimTime
	mem        []byte
}

// Engine is a reference types.TimeMachine.
type Engine struct {
	mem *Memory

	exportIndex map[string]uint32
	exportNames []string
	funcs       map[uint32]Func

	log     []logEntry // always kept sorted ascending by ts
	applied int        // log[:applied] is reflected in mem

	snapshots []snapshot // ascending by afterIndex

	currentSimTime  types.SimTime
	targetTime      types.SimTime
	fixedIntervalMs float64
}

// New builds an Engine exporting the named functions, with a memory region
// of memSize bytes and the given fixed-step interval (0 = variable-step).
// The "binary" and "imports" parameters of core.TimeMachineFactory are
// unused here: this engine's module is the Go closures in exports, not a
// compiled artifact.
func New(exports map[string]Func, memSize int, fixedIntervalMs float64) *Engine {
	e := &Engine{
		mem:             newMemory(memSize),
		exportIndex:     make(map[string]uint32, len(exports)),
		funcs:           make(map[uint32]Func, len(exports)),
		fixedIntervalMs: fixedIntervalMs,
	}
	names := make([]string, 0, len(exports))
	for name := range exports {
		names = append(names, name)
	}
	sort.Strings(names) // deterministic index assignment across peers
	for i, name := range names {
		idx := uint32(i)
		e.exportIndex[name] = idx
		e.funcs[idx] = exports[name]
		e.exportNames = append(e.exportNames, name)
	}
	e.snapshots = append(e.snapshots, snapshot{afterIndex: 0, simTime: 0, mem: e.mem.clone()})
	return e
}

func (e *Engine) GetFunctionExportIndex(name string) (uint32, bool) {
	idx, ok := e.exportIndex[name]
	return idx, ok
}

func (e *Engine) GetFunctionName(index uint32) (string, bool) {
	if int(index) >= len(e.exportNames) {
		return "", false
	}
	return e.exportNames[index], true
}

// CallWithTimeStamp inserts the call into the log at its sorted position
// and, if authoritative, replays from the latest snapshot that predates
// the insertion point through the end of the log — the rollback-and-reapply
// contract of spec §4 in miniature.
func (e *Engine) CallWithTimeStamp(index uint32, args []float64, ts types.TimeStamp, authoritative bool) error {
	fn, ok := e.funcs[index]
	if !ok {
		return fmt.Errorf("memory: no exported function at index %d", index)
	}

	pos := sort.Search(len(e.log), func(i int) bool { return ts.Less(e.log[i].ts) })
	entry := logEntry{ts: ts, index: index, args: args, fn: fn}
	e.log = append(e.log, logEntry{})
	copy(e.log[pos+1:], e.log[pos:])
	e.log[pos] = entry

	if !authoritative {
		return nil
	}

	if err := e.replayFrom(pos); err != nil {
		return err
	}
	if ts.Time > e.currentSimTime {
		e.currentSimTime = ts.Time
	}
	return nil
}

// replayFrom restores the latest snapshot that still precedes insertion
// index pos, then reapplies every log entry from there through the end of
// the log, in order.
func (e *Engine) replayFrom(pos int) error {
	if pos >= e.applied {
		// Purely appended past everything already applied: nothing to
		// undo, just catch up to the end of the log.
		return e.applyThrough(len(e.log))
	}

	snap := e.snapshotBefore(pos)
	e.mem.restore(snap.mem)
	e.applied = snap.afterIndex
	return e.applyThrough(len(e.log))
}

func (e *Engine) applyThrough(target int) error {
	for e.applied < target {
		entry := e.log[e.applied]
		if _, err := entry.fn(e.mem, entry.args); err != nil {
			return fmt.Errorf("memory: call %q at %v failed: %w", e.exportNames[entry.index], entry.ts, err)
		}
		e.applied++
	}
	return nil
}

// snapshotBefore returns the latest snapshot whose afterIndex <= pos,
// falling back to the oldest retained snapshot if pos predates everything
// still on hand (spec §9's "50ms pruning cushion": this is the nearest-
// earlier-snapshot policy RemoveHistoryBefore commits to).
func (e *Engine) snapshotBefore(pos int) snapshot {
	best := e.snapshots[0]
	for _, s := range e.snapshots {
		if s.afterIndex <= pos && s.afterIndex >= best.afterIndex {
			best = s
		}
	}
	return best
}

// CallAndRevert executes fn against a scratch copy of mem and discards the
// result: no log entry, no snapshot, no commit.
func (e *Engine) CallAndRevert(index uint32, args []float64) ([]float64, error) {
	fn, ok := e.funcs[index]
	if !ok {
		return nil, fmt.Errorf("memory: no exported function at index %d", index)
	}
	scratch := &Memory{}
	scratch.restore(e.mem.clone())
	return fn(scratch, args)
}

func (e *Engine) ProgressTime(deltaMs float64) {
	e.targetTime += types.SimTime(deltaMs)
}

// Step executes one fixed-interval tick (or, in variable-step mode, jumps
// straight to target_time) and reports whether more work remains.
func (e *Engine) Step() (bool, error) {
	if e.currentSimTime >= e.targetTime {
		return false, nil
	}
	step := e.targetTime - e.currentSimTime
	if e.fixedIntervalMs > 0 && types.SimTime(e.fixedIntervalMs) < step {
		step = types.SimTime(e.fixedIntervalMs)
	}
	e.currentSimTime += step
	if err := e.applyThrough(e.countThrough(e.currentSimTime)); err != nil {
		return false, err
	}
	return e.currentSimTime < e.targetTime, nil
}

// countThrough returns the number of leading log entries whose ts.Time <=
// t; the log is sorted by ts, so this is the size of the applicable prefix.
func (e *Engine) countThrough(t types.SimTime) int {
	n := sort.Search(len(e.log), func(i int) bool { return e.log[i].ts.Time > t })
	return n
}

func (e *Engine) TakeSnapshot() {
	e.snapshots = append(e.snapshots, snapshot{
		afterIndex: e.applied,
		simTime:    e.currentSimTime,
		mem:        e.mem.clone(),
	})
}

// RemoveHistoryBefore discards snapshots and log entries that can no
// longer be needed for a rollback to cutoff or later, returning the time it
// actually pruned to: the simTime of the latest retained snapshot at or
// before cutoff (the nearest-earlier-snapshot policy), never cutoff itself
// if no snapshot lands exactly there.
func (e *Engine) RemoveHistoryBefore(cutoff types.SimTime) types.SimTime {
	keep := e.snapshots[0]
	keepIdx := 0
	for i, s := range e.snapshots {
		if s.simTime <= cutoff && s.afterIndex >= keep.afterIndex {
			keep = s
			keepIdx = i
		}
	}
	e.snapshots = e.snapshots[keepIdx:]

	if keep.afterIndex > 0 && keep.afterIndex <= len(e.log) {
		e.log = e.log[keep.afterIndex:]
		e.applied -= keep.afterIndex
		for i := range e.snapshots {
			e.snapshots[i].afterIndex -= keep.afterIndex
		}
	}
	return keep.simTime
}

func (e *Engine) TargetTime() types.SimTime {
	return e.targetTime
}

func (e *Engine) CurrentSimulationTime() types.SimTime {
	return e.currentSimTime
}

func (e *Engine) FixedUpdateInterval() float64 {
	return e.fixedIntervalMs
}

func (e *Engine) ReadMemory(addr, length uint32) ([]byte, error) {
	return e.mem.ReadMemory(addr, length)
}

func (e *Engine) ReadString(addr, length uint32) (string, error) {
	return e.mem.ReadString(addr, length)
}
