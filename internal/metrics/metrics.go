// Package metrics exposes Prometheus collectors for simulation runs.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "flowsim"

// Run outcomes recorded by RunFinished.
const (
	OutcomeCompleted  = "completed"
	OutcomeDeadEnd    = "dead_end"
	OutcomeIncomplete = "incomplete"
	OutcomeRejected   = "rejected"
	OutcomeCancelled  = "cancelled"
	OutcomeAborted    = "aborted"
)

// Metrics groups the simulator's collectors. A nil *Metrics is valid and
// records nothing, so components can take it as an optional dependency.
type Metrics struct {
	runs        *prometheus.CounterVec
	entries     *prometheus.CounterVec
	transitions *prometheus.CounterVec
	duration    prometheus.Histogram
	inflight    prometheus.Gauge
}

// New creates the collectors and registers them with reg.
// Passing nil registers with prometheus.DefaultRegisterer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Simulation runs by outcome.",
		}, []string{"outcome"}),
		entries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "log_entries_total",
			Help:      "Execution log entries by node type and status.",
		}, []string{"node_type", "status"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "node_transitions_total",
			Help:      "Node status transitions by node type.",
		}, []string{"node_type", "from", "to"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall-clock duration of simulation runs, including simulated delays.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		inflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "runs_inflight",
			Help:      "Simulation runs currently walking a graph.",
		}),
	}

	reg.MustRegister(m.runs, m.entries, m.transitions, m.duration, m.inflight)
	return m
}

// RunStarted marks a run as in flight.
func (m *Metrics) RunStarted() {
	if m == nil {
		return
	}
	m.inflight.Inc()
}

// RunFinished records the outcome and duration of a run that was started.
func (m *Metrics) RunFinished(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.inflight.Dec()
	m.runs.WithLabelValues(outcome).Inc()
	m.duration.Observe(elapsed.Seconds())
}

// RunRejected records a run that failed its preconditions and never walked.
func (m *Metrics) RunRejected() {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(OutcomeRejected).Inc()
}

// EntryLogged counts one execution log entry.
func (m *Metrics) EntryLogged(nodeType, status string) {
	if m == nil {
		return
	}
	m.entries.WithLabelValues(nodeType, status).Inc()
}

// Transition counts one node status transition.
func (m *Metrics) Transition(nodeType, from, to string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(nodeType, from, to).Inc()
}
