// Package metrics provides Prometheus metrics for plan replays.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Edit kinds used as label values on EditsTotal.
const (
	EditDerive = "derive"
	EditDelete = "delete"
	EditCarry  = "carry"
)

// Metrics holds all Prometheus metrics for a replay. Each instance owns its
// own registry so several replays in one process never collide.
type Metrics struct {
	registry *prometheus.Registry

	StepsApplied  prometheus.Counter
	StepsFailed   *prometheus.CounterVec
	EditsTotal    *prometheus.CounterVec
	LookupErrors  prometheus.Counter
	NodesMarked   prometheus.Counter
	MaxLayer      prometheus.Gauge
	LiveAttrs     prometheus.Gauge
	StepDurations prometheus.Histogram
}

// New creates and registers all metrics on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	m := &Metrics{registry: reg}

	m.StepsApplied = factory.NewCounter(prometheus.CounterOpts{
		Name: "schemamap_steps_applied_total",
		Help: "Total number of plan steps committed",
	})

	m.StepsFailed = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "schemamap_steps_failed_total",
			Help: "Total number of plan steps that failed",
		},
		[]string{"reason"},
	)

	m.EditsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "schemamap_edits_total",
			Help: "Total number of attribute edits registered",
		},
		[]string{"kind"},
	)

	m.LookupErrors = factory.NewCounter(prometheus.CounterOpts{
		Name: "schemamap_lookup_errors_total",
		Help: "Total number of edits whose source was not live",
	})

	m.NodesMarked = factory.NewCounter(prometheus.CounterOpts{
		Name: "schemamap_nodes_marked_total",
		Help: "Total number of lineage nodes confirmed by update passes",
	})

	m.MaxLayer = factory.NewGauge(prometheus.GaugeOpts{
		Name: "schemamap_max_layer",
		Help: "Layer of the most recently committed schema",
	})

	m.LiveAttrs = factory.NewGauge(prometheus.GaugeOpts{
		Name: "schemamap_current_attributes",
		Help: "Number of attributes in the most recently committed schema",
	})

	m.StepDurations = factory.NewHistogram(prometheus.HistogramOpts{
		Name:    "schemamap_step_duration_seconds",
		Help:    "Duration of plan steps in seconds",
		Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1},
	})

	return m
}

// Registry returns the registry the metrics are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordEdit counts one registered edit of the given kind.
func (m *Metrics) RecordEdit(kind string) {
	m.EditsTotal.WithLabelValues(kind).Inc()
}

// RecordStep records a committed step.
func (m *Metrics) RecordStep(seconds float64, marked, layer, attrs int) {
	m.StepsApplied.Inc()
	m.NodesMarked.Add(float64(marked))
	m.MaxLayer.Set(float64(layer))
	m.LiveAttrs.Set(float64(attrs))
	m.StepDurations.Observe(seconds)
}

// RecordFailure records a failed step.
func (m *Metrics) RecordFailure(reason string) {
	m.StepsFailed.WithLabelValues(reason).Inc()
}

// WriteFile writes every metric in the text exposition format to path, for
// pickup by a node_exporter textfile collector.
func (m *Metrics) WriteFile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}
