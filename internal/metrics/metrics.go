// Package metrics provides Prometheus metrics for the Rituo service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every collector the service exports. Each instance owns
// its registry so tests can build as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	// Rollover metrics
	RolloverRuns     *prometheus.CounterVec
	RolloverRows     *prometheus.CounterVec
	RolloverDuration prometheus.Histogram

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// Domain metrics
	CyclesStarted prometheus.Counter
	Toggles       *prometheus.CounterVec
}

// New creates and registers all collectors, plus the Go runtime and
// process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		RolloverRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "rituo_rollover_runs_total",
			Help: "Rollover runs by final status",
		}, []string{"status"}),
		RolloverRows: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "rituo_rollover_rows_total",
			Help: "Completion rows handled by rollover, by outcome",
		}, []string{"outcome"}),
		RolloverDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "rituo_rollover_duration_seconds",
			Help:    "Duration of rollover runs in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~20s
		}),

		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "rituo_http_requests_total",
			Help: "HTTP requests by method, route and status",
		}, []string{"method", "route", "status"}),
		HTTPDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "rituo_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),

		CyclesStarted: factory.NewCounter(prometheus.CounterOpts{
			Name: "rituo_cycles_started_total",
			Help: "Cycles started",
		}),
		Toggles: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "rituo_completion_toggles_total",
			Help: "Completion toggles by resulting state",
		}, []string{"state"}),
	}
}

// Registry exposes the underlying registry for gathering in tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
