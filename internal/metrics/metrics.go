// Package metrics exposes Prometheus instruments for chunk processing.
//
// A Collector owns its registry so several collectors can coexist in tests;
// the daemon serves it on /metrics via Handler. A nil *Collector is valid and
// records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Task outcomes recorded in lexisub_tasks_total.
const (
	OutcomeCompleted = "completed"
	OutcomeFailed    = "failed"
	OutcomeCancelled = "cancelled"
)

// Collector holds the lexisub instruments.
type Collector struct {
	registry      *prometheus.Registry
	stageDuration *prometheus.HistogramVec
	tasks         *prometheus.CounterVec
	inFlight      prometheus.Gauge
	cacheHits     prometheus.Counter
}

// NewCollector creates and registers all instruments on a fresh registry,
// alongside the Go runtime and process collectors.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "lexisub_stage_duration_seconds",
			Help:    "Wall time spent in each processing stage",
			Buckets: []float64{0.05, 0.25, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
		}, []string{"stage"}),
		tasks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lexisub_tasks_total",
			Help: "Chunk tasks finished, by outcome",
		}, []string{"outcome"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "lexisub_tasks_in_flight",
			Help: "Chunk tasks currently running",
		}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lexisub_translation_cache_hits_total",
			Help: "Translations served from the translation memory",
		}),
	}
	c.registry.MustRegister(
		c.stageDuration,
		c.tasks,
		c.inFlight,
		c.cacheHits,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// ObserveStage records how long a stage took.
func (c *Collector) ObserveStage(stage string, d time.Duration) {
	if c == nil {
		return
	}
	c.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// TaskStarted increments the in-flight gauge.
func (c *Collector) TaskStarted() {
	if c == nil {
		return
	}
	c.inFlight.Inc()
}

// TaskFinished decrements the in-flight gauge and counts the outcome.
func (c *Collector) TaskFinished(outcome string) {
	if c == nil {
		return
	}
	c.inFlight.Dec()
	c.tasks.WithLabelValues(outcome).Inc()
}

// CacheHit counts one translation memory hit.
func (c *Collector) CacheHit() {
	if c == nil {
		return
	}
	c.cacheHits.Inc()
}

// Registry exposes the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}
