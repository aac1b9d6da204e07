// Package metrics exports Prometheus metrics for the scheduler and its HTTP
// control plane.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every collector, bound to its own registry so multiple
// instances can coexist in tests.
type Metrics struct {
	registry *prometheus.Registry

	// Execution metrics
	ExecutionsTotal   *prometheus.CounterVec
	ExecutionDuration *prometheus.HistogramVec
	JobsScheduled     prometheus.Gauge
	WorkersBusy       prometheus.Gauge

	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

// New creates the metric set on a fresh registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,

		ExecutionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "scheduler_executions_total",
			Help: "Total firing attempts by terminal state",
		}, []string{"state"}),

		ExecutionDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "scheduler_execution_duration_seconds",
			Help:    "Wall time of one job execution",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60, 300, 900},
		}, []string{"job_class"}),

		JobsScheduled: factory.NewGauge(prometheus.GaugeOpts{
			Name: "scheduler_jobs_scheduled",
			Help: "Jobs currently holding a live trigger",
		}),

		WorkersBusy: factory.NewGauge(prometheus.GaugeOpts{
			Name: "scheduler_workers_busy",
			Help: "Worker pool slots currently executing a job",
		}),

		RequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "scheduler_http_requests_total",
			Help: "Total HTTP requests by method, route and status",
		}, []string{"method", "route", "status"}),

		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "scheduler_http_request_duration_seconds",
			Help:    "HTTP request latency by method and route",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"method", "route"}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordExecution counts one finished firing and observes its wall time.
func (m *Metrics) RecordExecution(state, jobClass string, duration time.Duration) {
	m.ExecutionsTotal.WithLabelValues(state).Inc()
	m.ExecutionDuration.WithLabelValues(jobClass).Observe(duration.Seconds())
}

// RecordExecutionState counts a firing outcome that never ran, such as a
// misfire skip, without touching the duration histogram.
func (m *Metrics) RecordExecutionState(state string) {
	m.ExecutionsTotal.WithLabelValues(state).Inc()
}

// SetJobsScheduled tracks how many jobs currently hold a live trigger.
func (m *Metrics) SetJobsScheduled(n int) {
	m.JobsScheduled.Set(float64(n))
}

// SetWorkersBusy tracks how many pool slots are executing a job.
func (m *Metrics) SetWorkersBusy(n int) {
	m.WorkersBusy.Set(float64(n))
}

// GinMiddleware instruments every request with count and latency. The route
// template is used as the label so path parameters do not explode
// cardinality.
func (m *Metrics) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.RequestsTotal.WithLabelValues(
			c.Request.Method,
			route,
			strconv.Itoa(c.Writer.Status()),
		).Inc()
		m.RequestDuration.WithLabelValues(c.Request.Method, route).
			Observe(time.Since(start).Seconds())
	}
}
