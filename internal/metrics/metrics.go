// Package metrics exposes Prometheus instrumentation for ledger operations.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/mmynk/splitledger/internal/ledger"
)

const namespace = "splitledger"

// Recorder collects operation counts, latencies and ledger size.
// A nil *Recorder is valid and records nothing.
type Recorder struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	balances   prometheus.Gauge
	expenses   prometheus.Gauge
}

// New registers the ledger metrics with reg.
func New(reg prometheus.Registerer) *Recorder {
	factory := promauto.With(reg)
	return &Recorder{
		operations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Ledger operations by name and outcome.",
		}, []string{"operation", "outcome"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Time spent in ledger operations, including the transaction.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
		}, []string{"operation"}),
		balances: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "open_balances",
			Help:      "Number of outstanding balance records.",
		}),
		expenses: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "expenses",
			Help:      "Number of recorded expenses.",
		}),
	}
}

// Observe records one finished operation.
func (r *Recorder) Observe(operation string, start time.Time, err error) {
	if r == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = ledger.KindOf(err).String()
	}
	r.operations.WithLabelValues(operation, outcome).Inc()
	r.duration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// SetSize publishes the current number of balance records and expenses.
func (r *Recorder) SetSize(balances, expenses int) {
	if r == nil {
		return
	}
	r.balances.Set(float64(balances))
	r.expenses.Set(float64(expenses))
}
