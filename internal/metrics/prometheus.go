// Package metrics records sweep outcomes as prometheus metrics.
package metrics

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/ytppt/slidesweep/internal/models"
)

// Collector owns a registry so a sweep's metrics can be written out on their own
type Collector struct {
	registry *prometheus.Registry

	SetRunsTotal    *prometheus.CounterVec
	SetRunDuration  *prometheus.HistogramVec
	SetPages        *prometheus.GaugeVec
	SweepsTotal     prometheus.Counter
	LastSweepFailed prometheus.Gauge
	LastSweepTime   prometheus.Gauge
}

// New creates a collector with its own registry
func New() *Collector {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,

		SetRunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "slidesweep_set_runs_total",
			Help: "Parameter set runs, by status",
		}, []string{"status"}),

		SetRunDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "slidesweep_set_run_duration_seconds",
			Help:    "Duration of one parameter set's extraction",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600, 1200},
		}, []string{"status"}),

		SetPages: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "slidesweep_set_pages",
			Help: "Pages produced by a parameter set in the latest sweep, -1 when it failed",
		}, []string{"set"}),

		SweepsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "slidesweep_sweeps_total",
			Help: "Completed sweeps",
		}),

		LastSweepFailed: factory.NewGauge(prometheus.GaugeOpts{
			Name: "slidesweep_last_sweep_failed_sets",
			Help: "Failed parameter sets in the latest sweep",
		}),

		LastSweepTime: factory.NewGauge(prometheus.GaugeOpts{
			Name: "slidesweep_last_sweep_timestamp_seconds",
			Help: "Unix time the latest sweep finished",
		}),
	}
}

// WithProcessCollectors adds Go runtime and process metrics, used by the results server
func (c *Collector) WithProcessCollectors() *Collector {
	c.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// ObserveResult records one parameter set's run
func (c *Collector) ObserveResult(r models.SweepResult) {
	status := string(r.Status)
	c.SetRunsTotal.WithLabelValues(status).Inc()
	c.SetRunDuration.WithLabelValues(status).Observe(r.Duration.Seconds())
	c.SetPages.WithLabelValues(r.SetID).Set(float64(r.Pages))
}

// ObserveManifest records the totals of a finished sweep
func (c *Collector) ObserveManifest(m *models.Manifest) {
	c.SweepsTotal.Inc()
	c.LastSweepFailed.Set(float64(m.Failures()))
	if !m.FinishedAt.IsZero() {
		c.LastSweepTime.Set(float64(m.FinishedAt.Unix()))
	}
}

// LoadManifest sets the per-set gauges from a stored manifest without counting runs
func (c *Collector) LoadManifest(m *models.Manifest) {
	for _, r := range m.Results {
		c.SetPages.WithLabelValues(r.SetID).Set(float64(r.Pages))
	}
	c.LastSweepFailed.Set(float64(m.Failures()))
	if !m.FinishedAt.IsZero() {
		c.LastSweepTime.Set(float64(m.FinishedAt.Unix()))
	}
}

// WriteTextfile writes the registry in the node-exporter textfile format
func (c *Collector) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, c.registry); err != nil {
		return fmt.Errorf("failed to write metrics: %w", err)
	}
	return nil
}

// Handler serves the registry at /metrics
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}
