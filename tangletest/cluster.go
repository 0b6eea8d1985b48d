package tangletest

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jabolina/tangle/core"
	"github.com/jabolina/tangle/timemachine/memory"
	"github.com/jabolina/tangle/types"
)

// Cluster is a fixed-size group of Tangle peers sharing one in-memory
// Network, each running its own memory.Engine over memory.CounterModule.
// Grounded on the teacher's test.UnityCluster: a T handle, a Names/Peers
// slice built together at construction, and a round-robin Next().
type Cluster struct {
	T       *testing.T
	Peers   []*core.Tangle
	Engines []*memory.Engine

	mu    sync.Mutex
	index int
}

// CreateCluster bootstraps size peers, ids 1..size, into the same room on a
// fresh Network, each with its own memory.CounterModule engine at
// fixedIntervalMs (0 for variable-step).
func CreateCluster(t *testing.T, size int, fixedIntervalMs float64) *Cluster {
	net := NewNetwork()
	cluster := &Cluster{T: t}

	for i := 1; i <= size; i++ {
		id := types.PeerId(i)
		transport := net.NewTransport(id)

		var engine *memory.Engine
		factory := func(_ []byte, _ interface{}, fixed float64) (types.TimeMachine, error) {
			engine = memory.NewCounterEngine(fixed)
			return engine, nil
		}

		cfg := types.Config{
			FixedUpdateIntervalMs: fixedIntervalMs,
			RoomName:              "tangletest",
		}
		tangle, err := core.Bootstrap([]byte("demo"), nil, factory, transport, cfg)
		if err != nil {
			t.Fatalf("tangletest: bootstrap peer %d: %v", id, err)
		}
		cluster.Peers = append(cluster.Peers, tangle)
		cluster.Engines = append(cluster.Engines, engine)
	}
	return cluster
}

// Next round-robins through the cluster's peers, matching
// test.UnityCluster.Next.
func (c *Cluster) Next() *core.Tangle {
	c.mu.Lock()
	defer func() {
		c.index++
		c.mu.Unlock()
	}()
	if c.index >= len(c.Peers) {
		c.index = 0
	}
	return c.Peers[c.index]
}

// Disconnect tears down every peer in the cluster.
func (c *Cluster) Disconnect() {
	for _, p := range c.Peers {
		_ = p.Disconnect()
	}
}

// WaitOrTimeout runs cb in its own goroutine and reports whether it
// finished within duration. Grounded on test.WaitThisOrTimeout, renamed
// away from the teacher's "unity" phrasing.
func WaitOrTimeout(cb func(), duration time.Duration) bool {
	done := make(chan struct{})
	go func() {
		cb()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(duration):
		return false
	}
}

// EventuallyEqual polls get (typically a CallAndRevert against "get") every
// 5ms until it returns want or duration elapses, for asserting eventual
// convergence across a cluster without a fixed sleep.
func EventuallyEqual(get func() (float64, error), want float64, duration time.Duration) error {
	deadline := time.Now().Add(duration)
	var last float64
	var err error
	for time.Now().Before(deadline) {
		last, err = get()
		if err == nil && last == want {
			return nil
		}
		time.Sleep(5 * time.Millisecond)
	}
	return fmt.Errorf("tangletest: value did not converge to %v within %v (last=%v, err=%v)", want, duration, last, err)
}
