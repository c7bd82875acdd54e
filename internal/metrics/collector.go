// Package metrics exposes scheduler activity as Prometheus metrics.
package metrics

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"pixelbatch/internal/domain"
	"pixelbatch/internal/scheduler"
)

// Collector observes the scheduler and owns a private registry.
type Collector struct {
	registry    *prometheus.Registry
	transitions *prometheus.CounterVec
	runs        *prometheus.CounterVec
	duration    prometheus.Histogram
	inFlight    prometheus.Gauge

	mu      sync.Mutex
	started map[string]time.Time
}

// NewCollector registers the pixelbatch metrics plus the Go and process
// collectors on a fresh registry.
func NewCollector() *Collector {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(registry)
	return &Collector{
		registry: registry,
		transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pixelbatch_job_transitions_total",
			Help: "Job status changes, partitioned by new status.",
		}, []string{"status"}),
		runs: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pixelbatch_runs_total",
			Help: "Finished scheduler runs, partitioned by outcome.",
		}, []string{"outcome"}),
		duration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "pixelbatch_generation_duration_seconds",
			Help:    "Time from processing to a terminal status.",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80, 160},
		}),
		inFlight: factory.NewGauge(prometheus.GaugeOpts{
			Name: "pixelbatch_jobs_processing",
			Help: "Jobs currently in the processing state.",
		}),
		started: map[string]time.Time{},
	}
}

// JobUpdated implements scheduler.Observer.
func (c *Collector) JobUpdated(_ context.Context, job domain.Job) error {
	c.transitions.WithLabelValues(string(job.Status)).Inc()

	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case job.Status == domain.JobStatusProcessing:
		c.started[job.ID] = job.UpdatedAt
		c.inFlight.Inc()
	case job.Status.IsTerminal():
		if at, ok := c.started[job.ID]; ok {
			delete(c.started, job.ID)
			c.inFlight.Dec()
			if elapsed := job.UpdatedAt.Sub(at); elapsed >= 0 {
				c.duration.Observe(elapsed.Seconds())
			}
		}
	}
	return nil
}

// RunFinished implements scheduler.RunObserver.
func (c *Collector) RunFinished(_ context.Context, report scheduler.Report) {
	outcome := "completed"
	switch {
	case report.Aborted:
		outcome = "aborted"
	case report.Cancelled:
		outcome = "cancelled"
	}
	c.runs.WithLabelValues(outcome).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// Registry exposes the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

var (
	_ scheduler.Observer    = (*Collector)(nil)
	_ scheduler.RunObserver = (*Collector)(nil)
)
