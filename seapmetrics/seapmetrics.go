// Package seapmetrics exposes SEAP's runtime state as Prometheus
// collectors: how many descriptors are open, how commands are being
// dispatched, how many errors have been observed, and how many worker
// jobs are in flight.
package seapmetrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics bundles the collectors a Context updates once attached with
// SetMetrics. Attaching does not register them; call Register once per
// process to add them to a prometheus.Registerer.
type Metrics struct {
	DescriptorsOpen prometheus.Gauge
	CommandDispatch *prometheus.HistogramVec
	ErrorsObserved  *prometheus.CounterVec
	WorkersRunning  prometheus.Gauge
	PendingReplies  prometheus.Gauge
}

// New builds an unregistered Metrics bundle.
func New() *Metrics {
	return &Metrics{
		DescriptorsOpen: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "seap",
			Name:      "descriptors_open",
			Help:      "Number of currently open SEAP descriptors.",
		}),
		CommandDispatch: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "seap",
			Name:      "command_dispatch_seconds",
			Help:      "Time spent executing a locally dispatched command handler.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"class", "mode"}),
		ErrorsObserved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "seap",
			Name:      "errors_total",
			Help:      "Count of ERR packets observed, by subtype.",
		}, []string{"type"}),
		WorkersRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "seap",
			Name:      "workers_running",
			Help:      "Number of detached worker-mode command handlers currently executing.",
		}),
		PendingReplies: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "seap",
			Name:      "pending_replies",
			Help:      "Number of locally issued commands awaiting a reply.",
		}),
	}
}

// Register adds every collector in m to reg.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		m.DescriptorsOpen,
		m.CommandDispatch,
		m.ErrorsObserved,
		m.WorkersRunning,
		m.PendingReplies,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}
