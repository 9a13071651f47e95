package report

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/v0xg/bookcheck/internal/scenario"
)

// Metrics bundles Prometheus collectors for a run.
type Metrics struct {
	Registry         *prometheus.Registry
	ScenariosTotal   *prometheus.CounterVec
	FailuresTotal    *prometheus.CounterVec
	ScenarioDuration *prometheus.HistogramVec
	RunDuration      prometheus.Gauge
	LastRunFailed    prometheus.Gauge
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	scenarios := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookcheck_scenarios_total",
			Help: "Scenarios executed, by group and outcome.",
		},
		[]string{"group", "outcome"},
	)
	failures := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookcheck_failures_total",
			Help: "Failed scenarios by failure label.",
		},
		[]string{"label"},
	)
	duration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bookcheck_scenario_duration_seconds",
			Help:    "Wall time of each scenario.",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60},
		},
		[]string{"group"},
	)
	runDuration := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "bookcheck_run_duration_seconds",
			Help: "Wall time of the last run.",
		},
	)
	lastFailed := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "bookcheck_last_run_failed_scenarios",
			Help: "Failed scenarios in the last run.",
		},
	)

	registry.MustRegister(scenarios, failures, duration, runDuration, lastFailed)

	return &Metrics{
		Registry:         registry,
		ScenariosTotal:   scenarios,
		FailuresTotal:    failures,
		ScenarioDuration: duration,
		RunDuration:      runDuration,
		LastRunFailed:    lastFailed,
	}
}

// ObserveResult records one finished scenario.
func (m *Metrics) ObserveResult(r scenario.Result) {
	if m == nil {
		return
	}
	outcome := "passed"
	if !r.Passed {
		outcome = "failed"
		m.FailuresTotal.WithLabelValues(r.Label).Inc()
	}
	m.ScenariosTotal.WithLabelValues(r.Group, outcome).Inc()
	m.ScenarioDuration.WithLabelValues(r.Group).Observe(r.Duration.Seconds())
}

// ObserveRun records run-level gauges.
func (m *Metrics) ObserveRun(o *scenario.Outcome) {
	if m == nil {
		return
	}
	m.RunDuration.Set(o.Duration.Seconds())
	m.LastRunFailed.Set(float64(o.Failed()))
}

// WriteTextfile writes the registry in the node_exporter textfile format.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.Registry); err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}
	return nil
}
