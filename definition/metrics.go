package definition

import "github.com/prometheus/client_golang/prometheus"

// Metrics is the set of Prometheus collectors the pacing loop (spec §4.6)
// and peer table (spec §4.3) update. A nil *Metrics (see NewMetrics) makes
// every method a no-op, so embedders that don't run a Prometheus exporter
// pay nothing beyond a nil check.
type Metrics struct {
	PeerCount         prometheus.Gauge
	RoundTripTime     prometheus.Histogram
	RollbacksTotal    prometheus.Counter
	HeapRequestsTotal prometheus.Counter
	PruneWatermark    prometheus.Gauge
}

// NewMetrics registers the Tangle collectors into reg and returns the
// handle, or returns nil if reg is nil (metrics disabled).
func NewMetrics(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		return nil
	}
	m := &Metrics{
		PeerCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tangle_peer_count",
			Help: "Number of peers currently tracked in the peer table.",
		}),
		RoundTripTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tangle_round_trip_time_ms",
			Help:    "Measured Ping/Pong round-trip time in milliseconds.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		}),
		RollbacksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tangle_rollbacks_total",
			Help: "Number of times a late remote call triggered a Time Machine rollback.",
		}),
		HeapRequestsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tangle_heap_requests_total",
			Help: "Number of RequestState heap requests issued.",
		}),
		PruneWatermark: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tangle_prune_watermark",
			Help: "Simulation time before which history has been discarded.",
		}),
	}
	reg.MustRegister(m.PeerCount, m.RoundTripTime, m.RollbacksTotal, m.HeapRequestsTotal, m.PruneWatermark)
	return m
}

// SetPeerCount, ObserveRTT, IncRollback, IncHeapRequest, and
// SetPruneWatermark are all safe to call on a nil *Metrics (metrics
// disabled), so core.Tangle never needs its own nil checks.

func (m *Metrics) SetPeerCount(n int) {
	if m == nil {
		return
	}
	m.PeerCount.Set(float64(n))
}

func (m *Metrics) ObserveRTT(ms float64) {
	if m == nil {
		return
	}
	m.RoundTripTime.Observe(ms)
}

func (m *Metrics) IncRollback() {
	if m == nil {
		return
	}
	m.RollbacksTotal.Inc()
}

func (m *Metrics) IncHeapRequest() {
	if m == nil {
		return
	}
	m.HeapRequestsTotal.Inc()
}

func (m *Metrics) SetPruneWatermark(t float64) {
	if m == nil {
		return
	}
	m.PruneWatermark.Set(t)
}
