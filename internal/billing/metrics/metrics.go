package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus metrics for the billing scheduler.
type Metrics struct {
	Ticks           prometheus.Counter
	TicksSkipped    prometheus.Counter
	CyclesSucceeded prometheus.Counter
	CyclesFailed    prometheus.Counter
	TickDuration    prometheus.Histogram
}

// New creates and registers the billing metrics.
func New() *Metrics {
	return &Metrics{
		Ticks: promauto.NewCounter(prometheus.CounterOpts{
			Name: "givebridge_billing_ticks_total",
			Help: "Billing ticks executed.",
		}),
		TicksSkipped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "givebridge_billing_ticks_skipped_total",
			Help: "Billing ticks skipped because another tick held the lease.",
		}),
		CyclesSucceeded: promauto.NewCounter(prometheus.CounterOpts{
			Name: "givebridge_billing_cycles_succeeded_total",
			Help: "Subscription billing cycles that recorded a donation.",
		}),
		CyclesFailed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "givebridge_billing_cycles_failed_total",
			Help: "Subscription billing cycles that failed and stay due.",
		}),
		TickDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "givebridge_billing_tick_duration_seconds",
			Help:    "Wall time of a full billing tick.",
			Buckets: prometheus.DefBuckets,
		}),
	}
}
