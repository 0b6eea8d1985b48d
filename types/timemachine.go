package types

import "io"

// TimeMachine is the external, single-peer deterministic execution engine
// with snapshot/rollback the Tangle coordinator sits above. §6 specifies
// exactly this surface; the coordinator never reaches past it into module
// internals.
type TimeMachine interface {
	// GetFunctionExportIndex resolves an exported function name to its
	// index, or ok=false if the module exports no such function.
	GetFunctionExportIndex(name string) (index uint32, ok bool)

	// GetFunctionName is the inverse of GetFunctionExportIndex, used for
	// logging.
	GetFunctionName(index uint32) (name string, ok bool)

	// CallWithTimeStamp executes the call at its logical timestamp,
	// rolling back and re-applying any later-executed calls whose
	// timestamp now sorts after this one. authoritative calls commit to
	// history; non-authoritative calls are used internally by the engine
	// during replay and never originate from the coordinator directly.
	CallWithTimeStamp(index uint32, args []float64, ts TimeStamp, authoritative bool) error

	// CallAndRevert executes the call speculatively against current state
	// and returns its result without committing to history or requiring
	// network exchange.
	CallAndRevert(index uint32, args []float64) ([]float64, error)

	// ProgressTime advances target_time by deltaMs of simulation time.
	ProgressTime(deltaMs float64)

	// Step executes one fixed-interval tick and reports whether more work
	// remains to reach target_time. In variable-step mode (no fixed
	// interval configured) Step advances straight to target_time and
	// reports false.
	Step() (more bool, err error)

	// TakeSnapshot records the current state so RemoveHistoryBefore and
	// rollback always have a valid state to roll back to.
	TakeSnapshot()

	// RemoveHistoryBefore discards history strictly before t. It returns
	// the time it actually pruned to, which may be earlier than t if no
	// snapshot exists exactly at t (the nearest-earlier-snapshot policy,
	// see DESIGN.md's "50ms pruning cushion" decision).
	RemoveHistoryBefore(t SimTime) (prunedTo SimTime)

	// TargetTime is the simulation time the engine is progressing toward.
	TargetTime() SimTime

	// CurrentSimulationTime is the simulation time actually reached so
	// far (TargetTime when caught up, earlier while Step-ing catches up).
	CurrentSimulationTime() SimTime

	// FixedUpdateInterval is the configured fixed-step interval in
	// milliseconds, or 0 for variable-step mode.
	FixedUpdateInterval() float64

	// Encode serializes the complete engine state (a "heap").
	Encode() ([]byte, error)

	// DecodeAndApply replaces the engine's state with a previously
	// Encode-d heap.
	DecodeAndApply(r io.Reader) error

	// ReadMemory/ReadString expose the module's linear memory for
	// embedders that need to peek at result state directly.
	ReadMemory(addr, length uint32) ([]byte, error)
	ReadString(addr, length uint32) (string, error)
}
