package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveCountsByLabel(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry(), "venue", "reservations")
	m.Observe("create", OutcomeOK)
	m.Observe("create", OutcomeOK)
	m.Observe("create", OutcomeRejected)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.LifecycleOperations.WithLabelValues("create", OutcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LifecycleOperations.WithLabelValues("create", OutcomeRejected)))
}

func TestObserveOnNilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Observe("pay", OutcomeError)
		m.ObserveSweep(SweepOK, 3, time.Second)
	})
}

func TestNewUsesPrivateRegistry(t *testing.T) {
	assert.NotPanics(t, func() {
		New()
		New()
	})
}

func TestObserveSweep(t *testing.T) {
	m := New()
	m.ObserveSweep(SweepOK, 3, 20*time.Millisecond)
	m.ObserveSweep(SweepOK, 0, 10*time.Millisecond)
	m.ObserveSweep(SweepSkipped, 0, 0)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.SweeperRuns.WithLabelValues(SweepOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SweeperRuns.WithLabelValues(SweepSkipped)))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.SweeperExpired))
	assert.Equal(t, 1, testutil.CollectAndCount(m.SweeperDuration))
}
