// Package serializer implements the reentrancy-safe command queue from
// spec §4.2: a single logical execution lane that serializes every
// mutating entry point of the Tangle coordinator. Grounded on the
// teacher's cooperative scheduling pattern (pkg/mcast/core/peer.go's
// poll/updated channel plus Invoker.Spawn), generalized from
// "one goroutine per task" to an explicit FIFO mailbox matching spec §4.2's
// "run immediately or enqueue" contract exactly.
package serializer

import "sync"

// Lane is a single-threaded cooperative scheduler: at most one task runs at
// a time; a task submitted while one is running is appended to a FIFO
// queue and drained, in order, once the running task returns.
type Lane struct {
	mu      sync.Mutex
	running bool
	pending []func()
}

// New creates an idle Lane.
func New() *Lane {
	return &Lane{}
}

// Run executes fn now if the lane is idle, otherwise enqueues it to run
// after every task ahead of it. Run never blocks the caller waiting for fn
// to complete when it must enqueue; callers that need a result use RunWait.
func (l *Lane) Run(fn func()) {
	l.mu.Lock()
	if l.running {
		l.pending = append(l.pending, fn)
		l.mu.Unlock()
		return
	}
	l.running = true
	l.mu.Unlock()

	l.execute(fn)
}

// RunWait executes fn through the lane exactly like Run, but blocks the
// caller until fn has actually finished running. Entry points that read a
// result out of a caller-owned local right after the call returns (as
// opposed to ones that only mutate Tangle-owned state and report nothing
// back) must use this instead of Run: Run's fire-and-forget contract would
// otherwise let such a caller observe the local's zero value, raced against
// the enqueued closure that hasn't actually run yet whenever the lane was
// busy.
func (l *Lane) RunWait(fn func()) {
	done := make(chan struct{})
	l.Run(func() {
		fn()
		close(done)
	})
	<-done
}

// RunEnqueueOnly always appends fn to the pending queue, behind every task
// already waiting there. If the lane is idle, the caller then takes the lane
// and drains the queue, fn included, before returning.
// This backs spec §4.2's enqueue_condition: inbound messages for a peer
// whose join hasn't been serialized yet must wait behind that join, even
// if nothing else happens to be running right now.
func (l *Lane) RunEnqueueOnly(fn func()) {
	l.mu.Lock()
	l.pending = append(l.pending, fn)
	if l.running {
		l.mu.Unlock()
		return
	}
	l.running = true
	l.mu.Unlock()

	l.drainFrom(nil)
}

func (l *Lane) execute(fn func()) {
	fn()
	l.drainFrom(nil)
}

// drainFrom runs every queued task in FIFO order, then releases the lane.
// `first`, if non-nil, runs before the queue; every current caller passes
// nil.
func (l *Lane) drainFrom(first func()) {
	if first != nil {
		first()
	}
	for {
		l.mu.Lock()
		if len(l.pending) == 0 {
			l.running = false
			l.mu.Unlock()
			return
		}
		next := l.pending[0]
		l.pending = l.pending[1:]
		l.mu.Unlock()

		next()
	}
}

// Idle reports whether the lane currently has no task running and nothing
// queued. Intended for tests only.
func (l *Lane) Idle() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return !l.running && len(l.pending) == 0
}
