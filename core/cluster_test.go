package core_test

import (
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/jabolina/tangle/tangletest"
)

// TestClusterBroadcastConvergence exercises the tangletest.Cluster harness
// (round-robin Next, shared Network, per-peer memory.Engine) end to end: a
// handful of calls issued from different peers in turn must be observed by
// every peer in the cluster.
func TestClusterBroadcastConvergence(t *testing.T) {
	defer goleak.VerifyNone(t)

	cluster := tangletest.CreateCluster(t, 3, 0)
	defer cluster.Disconnect()

	for _, engine := range cluster.Engines {
		if err := tangletest.EventuallyEqual(func() (float64, error) {
			out, err := engine.CallAndRevert(mustIndex(t, engine, "get"), nil)
			if err != nil {
				return 0, err
			}
			return out[0], nil
		}, 0, time.Second); err != nil {
			t.Fatalf("cluster did not settle before issuing calls: %v", err)
		}
	}

	for i := 0; i < 6; i++ {
		cluster.Next().Call("add", 1)
	}

	for i, engine := range cluster.Engines {
		if err := tangletest.EventuallyEqual(func() (float64, error) {
			out, err := engine.CallAndRevert(mustIndex(t, engine, "get"), nil)
			if err != nil {
				return 0, err
			}
			return out[0], nil
		}, 6, 2*time.Second); err != nil {
			t.Fatalf("peer %d never converged to 6: %v", i, err)
		}
	}
}

func mustIndex(t *testing.T, engine interface {
	GetFunctionExportIndex(string) (uint32, bool)
}, name string) uint32 {
	t.Helper()
	idx, ok := engine.GetFunctionExportIndex(name)
	if !ok {
		t.Fatalf("engine exports no %q", name)
	}
	return idx
}
