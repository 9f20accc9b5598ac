package xslt

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics collects counters about transformations. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	transformations *prometheus.CounterVec
	steps           *prometheus.CounterVec
	instructions    prometheus.Counter
	programs        *prometheus.CounterVec
	keys            prometheus.Counter
	duration        prometheus.Histogram
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := Metrics{
		transformations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "angle",
			Name:      "transformations_total",
			Help:      "Transformations by final status",
		}, []string{"status"}),
		steps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "angle",
			Name:      "steps_total",
			Help:      "Transformation steps by result",
		}, []string{"result"}),
		instructions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "angle",
			Name:      "instructions_total",
			Help:      "Instructions executed",
		}),
		programs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "angle",
			Name:      "apply_programs_total",
			Help:      "Apply-templates program lookups by cache result",
		}, []string{"cache"}),
		keys: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "angle",
			Name:      "key_tables_total",
			Help:      "Key tables built",
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "angle",
			Name:      "transformation_duration_seconds",
			Help:      "Time spent running transformations",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	if reg != nil {
		reg.MustRegister(m.transformations, m.steps, m.instructions, m.programs, m.keys, m.duration)
	}
	return &m
}

func (m *Metrics) transformed(status string, seconds float64) {
	if m == nil {
		return
	}
	m.transformations.WithLabelValues(status).Inc()
	m.duration.Observe(seconds)
}

func (m *Metrics) stepped(res StepResult, count int) {
	if m == nil {
		return
	}
	m.steps.WithLabelValues(res.String()).Inc()
	m.instructions.Add(float64(count))
}

func (m *Metrics) programLookup(hit bool) {
	if m == nil {
		return
	}
	label := "miss"
	if hit {
		label = "hit"
	}
	m.programs.WithLabelValues(label).Inc()
}

func (m *Metrics) keyTable() {
	if m == nil {
		return
	}
	m.keys.Inc()
}
