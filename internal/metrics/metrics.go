package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	EditEvents      prometheus.Counter
	Outcomes        *prometheus.CounterVec
	NotifySuccesses prometheus.Counter
	NotifyFailures  prometheus.Counter
	ProcessingTime  prometheus.Histogram
	LockWaitTime    prometheus.Histogram
	SweepRuns       prometheus.Counter
	PendingRows     prometheus.Gauge
}

// NewMetrics registers metrics with reg; nil uses the default registerer
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		EditEvents: factory.NewCounter(prometheus.CounterOpts{
			Name: "po_notifier_edit_events_total",
			Help: "Total number of edit events received",
		}),
		Outcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "po_notifier_row_outcomes_total",
			Help: "Row processing outcomes by kind",
		}, []string{"outcome"}),
		NotifySuccesses: factory.NewCounter(prometheus.CounterOpts{
			Name: "po_notifier_notify_successes_total",
			Help: "Total number of confirmations sent",
		}),
		NotifyFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "po_notifier_notify_failures_total",
			Help: "Total number of rows that ended in a failure",
		}),
		ProcessingTime: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "po_notifier_processing_duration_seconds",
			Help:    "Time spent processing one row",
			Buckets: prometheus.DefBuckets,
		}),
		LockWaitTime: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "po_notifier_lock_wait_seconds",
			Help:    "Time spent waiting for the document lock",
			Buckets: prometheus.DefBuckets,
		}),
		SweepRuns: factory.NewCounter(prometheus.CounterOpts{
			Name: "po_notifier_sweep_runs_total",
			Help: "Total number of pending-row sweeps",
		}),
		PendingRows: factory.NewGauge(prometheus.GaugeOpts{
			Name: "po_notifier_pending_rows",
			Help: "Rows found pending by the last sweep",
		}),
	}
}
