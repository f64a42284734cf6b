package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_RunLifecycle(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.RunStarted()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.inflight))

	m.RunFinished(OutcomeCompleted, 250*time.Millisecond)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.inflight))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues(OutcomeCompleted)))

	m.RunRejected()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues(OutcomeRejected)))
	assert.Equal(t, 1, testutil.CollectAndCount(m.duration))
}

func TestMetrics_EntriesAndTransitions(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.EntryLogged("task", "completed")
	m.EntryLogged("task", "completed")
	m.EntryLogged("automated", "skipped")
	m.Transition("task", "pending", "completed")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.entries.WithLabelValues("task", "completed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.entries.WithLabelValues("automated", "skipped")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.transitions.WithLabelValues("task", "pending", "completed")))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RunStarted()
		m.RunFinished(OutcomeDeadEnd, time.Second)
		m.RunRejected()
		m.EntryLogged("end", "completed")
		m.Transition("end", "executing", "completed")
	})
}

func TestMetrics_DoubleRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NotPanics(t, func() { New(reg) })
	assert.Panics(t, func() { New(reg) })
}
