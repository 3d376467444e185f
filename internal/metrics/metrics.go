// Package metrics wires the ledger's counters and gauges into
// prometheus/client_golang (component budget item #10, "metrics glue"),
// a dependency the teacher's go.mod already carries indirectly but never
// registers a metric with.
package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "empower1_ledger"

// Registry bundles every metric the pipeline, bridge, and governance
// modules update, constructed once and injected into each component
// rather than relying on package-level globals.
type Registry struct {
	BlocksFinalized   prometheus.Counter
	TxAccepted        *prometheus.CounterVec
	TxRejected        *prometheus.CounterVec
	QueueDepth        prometheus.Gauge
	BridgePoolPending prometheus.Gauge
	GovernanceTallies *prometheus.CounterVec
}

// NewRegistry constructs and registers every metric against reg.
func NewRegistry(reg prometheus.Registerer) *Registry {
	m := &Registry{
		BlocksFinalized: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "blocks_finalized_total",
			Help:      "Number of blocks applied by FinalizeBlock.",
		}),
		TxAccepted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tx_accepted_total",
			Help:      "Number of transactions accepted, labeled by kind.",
		}, []string{"kind"}),
		TxRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tx_rejected_total",
			Help:      "Number of transactions rejected, labeled by kind and reason.",
		}, []string{"kind", "reason"}),
		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "wrapper_queue_depth",
			Help:      "Number of wrappers currently queued awaiting decryption.",
		}),
		BridgePoolPending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "bridge_pool_pending",
			Help:      "Number of pending outbound transfers in the bridge pool.",
		}),
		GovernanceTallies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "governance_tallies_total",
			Help:      "Number of governance proposals tallied, labeled by result.",
		}, []string{"result"}),
	}
	reg.MustRegister(
		m.BlocksFinalized,
		m.TxAccepted,
		m.TxRejected,
		m.QueueDepth,
		m.BridgePoolPending,
		m.GovernanceTallies,
	)
	return m
}
