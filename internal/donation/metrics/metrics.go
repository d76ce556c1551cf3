package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus metrics for the donation recorder.
type Metrics struct {
	Recorded      *prometheus.CounterVec
	Duplicates    prometheus.Counter
	Failed        prometheus.Counter
	RecordedCents *prometheus.CounterVec
}

// New creates and registers the donation metrics.
func New() *Metrics {
	return &Metrics{
		Recorded: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "givebridge_donations_recorded_total",
			Help: "Completed donations recorded in the ledger, by payment origin.",
		}, []string{"origin"}),
		Duplicates: promauto.NewCounter(prometheus.CounterOpts{
			Name: "givebridge_donations_duplicate_correlation_total",
			Help: "Donation submissions resolved as idempotent duplicates.",
		}),
		Failed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "givebridge_donations_failed_total",
			Help: "Donation record attempts that failed after retries.",
		}),
		RecordedCents: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "givebridge_donations_recorded_cents_total",
			Help: "Total value of recorded donations in minor units, by origin.",
		}, []string{"origin"}),
	}
}
