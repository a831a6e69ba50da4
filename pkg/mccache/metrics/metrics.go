// Package metrics exposes the handful of Prometheus collectors the engines
// update. Registering them against an HTTP handler is left to cmd/mccached;
// this package only owns the collectors themselves.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Collectors bundles every mccache gauge/counter. A zero-value Collectors
// is unusable; always construct with NewCollectors.
type Collectors struct {
	OutboundQueueDepth         prometheus.Gauge
	PeersDroppedTotal          prometheus.Counter
	FragmentsRetransmittedTotal prometheus.Counter
	PendingEntries             prometheus.Gauge
}

// NewCollectors creates and registers the mccache collector set against
// reg. Passing prometheus.NewRegistry() keeps tests isolated from the
// global default registry.
func NewCollectors(reg prometheus.Registerer) *Collectors {
	c := &Collectors{
		OutboundQueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mccache_outbound_queue_depth",
			Help: "Number of operations waiting to be drained by the outbound engine.",
		}),
		PeersDroppedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mccache_peers_dropped_total",
			Help: "Number of peers dropped from membership after retries exhausted.",
		}),
		FragmentsRetransmittedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mccache_fragments_retransmitted_total",
			Help: "Number of fragments retransmitted by the housekeeper.",
		}),
		PendingEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mccache_pending_entries",
			Help: "Number of operations awaiting acknowledgement from peers.",
		}),
	}
	if reg != nil {
		reg.MustRegister(c.OutboundQueueDepth, c.PeersDroppedTotal, c.FragmentsRetransmittedTotal, c.PendingEntries)
	}
	return c
}
