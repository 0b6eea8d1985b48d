package core

import "github.com/jabolina/tangle/types"

// lifecycle drives the TangleState machine (spec §4.7) and fires the
// user-provided state-change callback exactly once per transition.
type lifecycle struct {
	state    types.TangleState
	onChange func(types.TangleState)
}

func newLifecycle(onChange func(types.TangleState)) *lifecycle {
	return &lifecycle{state: types.Disconnected, onChange: onChange}
}

func (l *lifecycle) State() types.TangleState {
	return l.state
}

// transition moves to next and fires onChange iff next differs from the
// current state. Idempotent transitions (e.g. Disconnected -> Disconnected
// on a second Room.Joining event) are not reported, matching "any
// transition fires the callback exactly once."
func (l *lifecycle) transition(next types.TangleState) {
	if l.state == next {
		return
	}
	l.state = next
	if l.onChange != nil {
		l.onChange(next)
	}
}
