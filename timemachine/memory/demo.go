package memory

// Demo module layout: a float64 counter at address 0 and the PeerId of the
// last actor to touch it, substituted from types.UserIDSentinel, at address
// 8. Small and deterministic on purpose — it exists to give the test suites
// and tangletest something real to call, not to model any particular game.
const (
	counterAddr    = 0
	lastActorAddr  = 8
	demoMemorySize = 16
)

// CounterModule is the reference deterministic module used across the
// package test suites and tangletest: every call is a pure function of
// (mem, args), so two peers that apply the same log in the same order
// always converge to the same bytes.
func CounterModule() map[string]Func {
	return map[string]Func{
		"increment": func(mem *Memory, args []float64) ([]float64, error) {
			mem.WriteFloat64(counterAddr, mem.ReadFloat64(counterAddr)+1)
			if len(args) > 0 {
				mem.WriteFloat64(lastActorAddr, args[0])
			}
			return nil, nil
		},
		"add": func(mem *Memory, args []float64) ([]float64, error) {
			var delta float64
			if len(args) > 0 {
				delta = args[0]
			}
			mem.WriteFloat64(counterAddr, mem.ReadFloat64(counterAddr)+delta)
			if len(args) > 1 {
				mem.WriteFloat64(lastActorAddr, args[1])
			}
			return nil, nil
		},
		"get": func(mem *Memory, _ []float64) ([]float64, error) {
			return []float64{mem.ReadFloat64(counterAddr)}, nil
		},
		"get_last_actor": func(mem *Memory, _ []float64) ([]float64, error) {
			return []float64{mem.ReadFloat64(lastActorAddr)}, nil
		},
		// peer_left is resolved by name from core.Tangle.peerLeftLocked and
		// invoked by whichever peer wins the departure election (spec
		// §4.3); here it just records the departing id as the last actor so
		// tests can observe that it ran. Running it more than once leaves
		// the same value, so this does not count invocations.
		"peer_left": func(mem *Memory, args []float64) ([]float64, error) {
			if len(args) > 0 {
				mem.WriteFloat64(lastActorAddr, args[0])
			}
			return nil, nil
		},
	}
}

// NewCounterEngine builds an Engine preloaded with CounterModule, memory
// sized for the demo's two fields, at the given fixed-step interval.
func NewCounterEngine(fixedIntervalMs float64) *Engine {
	return New(CounterModule(), demoMemorySize, fixedIntervalMs)
}
