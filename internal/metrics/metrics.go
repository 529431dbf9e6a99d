// Package metrics holds the prometheus collectors for generation runs.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is a private registry plus the run collectors registered on it.
type Metrics struct {
	Registry  *prometheus.Registry
	Runs      *prometheus.CounterVec
	Duration  *prometheus.HistogramVec
	Rows      *prometheus.CounterVec
	Shortfall *prometheus.CounterVec
}

// New builds a registry with the run collectors and the Go runtime collectors.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		Runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "taskgen",
			Name:      "runs_total",
			Help:      "Generation runs by task and outcome.",
		}, []string{"task", "status"}),
		Duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "taskgen",
			Name:      "run_duration_seconds",
			Help:      "Wall time of generation runs.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 14),
		}, []string{"task"}),
		Rows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "taskgen",
			Name:      "rows_total",
			Help:      "Dataset rows written.",
		}, []string{"task"}),
		Shortfall: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "taskgen",
			Name:      "shortfall_rows_total",
			Help:      "Requested rows the balancer could not produce.",
		}, []string{"task"}),
	}
	m.Registry.MustRegister(m.Runs, m.Duration, m.Rows, m.Shortfall,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return m
}

// Observe records one finished run. A nil receiver is a no-op.
func (m *Metrics) Observe(task, status string, elapsed time.Duration, rows, shortfall int) {
	if m == nil {
		return
	}
	m.Runs.WithLabelValues(task, status).Inc()
	m.Duration.WithLabelValues(task).Observe(elapsed.Seconds())
	if rows > 0 {
		m.Rows.WithLabelValues(task).Add(float64(rows))
	}
	if shortfall > 0 {
		m.Shortfall.WithLabelValues(task).Add(float64(shortfall))
	}
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}
