package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels for lifecycle operations.
const (
	OutcomeOK       = "ok"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

// Metrics holds the reservation engine's collectors.
type Metrics struct {
	LifecycleOperations *prometheus.CounterVec
	SweeperRuns         *prometheus.CounterVec
	SweeperExpired      prometheus.Counter
	SweeperDuration     prometheus.Histogram
}

// NewMetrics creates the collectors and registers them with reg.  Pass
// prometheus.DefaultRegisterer in production and a fresh registry in
// tests so that repeated construction does not panic.
func NewMetrics(reg prometheus.Registerer, namespace, subsystem string) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		LifecycleOperations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "lifecycle_operations_total",
			Help:      "Reservation lifecycle operations by operation and outcome",
		}, []string{"operation", "outcome"}),
		SweeperRuns: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "sweeper_runs_total",
			Help:      "Expiry sweeper runs by result (ok, skipped, error)",
		}, []string{"result"}),
		SweeperExpired: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "sweeper_expired_total",
			Help:      "Reservations canceled because the deposit window expired",
		}),
		SweeperDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "sweeper_run_duration_seconds",
			Help:      "Time spent in one expiry sweep",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}),
	}
}

// New registers the collectors on a private registry.  Used where no
// scrape endpoint is exposed, such as one-shot CLI runs and tests.
func New() *Metrics {
	return NewMetrics(prometheus.NewRegistry(), "venue", "reservations")
}

// Observe records the outcome of a lifecycle operation.  A nil receiver
// is a no-op.
func (m *Metrics) Observe(operation, outcome string) {
	if m == nil {
		return
	}
	m.LifecycleOperations.WithLabelValues(operation, outcome).Inc()
}

// Sweeper run results.
const (
	SweepOK      = "ok"
	SweepSkipped = "skipped"
	SweepError   = "error"
)

// ObserveSweep records one sweeper run.  A nil receiver is a no-op.
func (m *Metrics) ObserveSweep(result string, expired int, took time.Duration) {
	if m == nil {
		return
	}
	m.SweeperRuns.WithLabelValues(result).Inc()
	if expired > 0 {
		m.SweeperExpired.Add(float64(expired))
	}
	if result != SweepSkipped {
		m.SweeperDuration.Observe(took.Seconds())
	}
}
