// Package metrics exposes Prometheus collectors for the matchwatch service.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	jobPollsTotal              *prometheus.CounterVec
	jobsSettledTotal           *prometheus.CounterVec
	backendRequestsTotal       *prometheus.CounterVec
	backendRequestDuration     *prometheus.HistogramVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec
	aggregationsTotal          prometheus.Counter

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		jobPollsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "matchwatch_job_polls_total",
				Help: "Total job status queries, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		jobsSettledTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "matchwatch_jobs_settled_total",
				Help: "Total tracked jobs that reached a terminal state, labeled by status.",
			},
			[]string{"status"},
		)

		backendRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "matchwatch_backend_requests_total",
				Help: "Total requests sent to the article backend, labeled by endpoint and code.",
			},
			[]string{"endpoint", "code"},
		)

		backendRequestDuration = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "matchwatch_backend_request_duration_seconds",
				Help:    "Histogram of article backend request latencies, labeled by endpoint.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"endpoint"},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)

		aggregationsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "matchwatch_source_aggregations_total",
				Help: "Total source comparison aggregations computed.",
			},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObservePoll counts one job status query by outcome (a job status or an error class).
func ObservePoll(outcome string) {
	Init()
	jobPollsTotal.WithLabelValues(outcome).Inc()
}

// ObserveSettled increments the settled counter for the given terminal status.
func ObserveSettled(status string) {
	Init()
	jobsSettledTotal.WithLabelValues(status).Inc()
}

// ObserveBackendRequest records one article backend round trip. A code of 0
// means the request never produced a response.
func ObserveBackendRequest(endpoint string, code int, duration time.Duration) {
	Init()
	backendRequestsTotal.WithLabelValues(endpoint, strconv.Itoa(code)).Inc()
	backendRequestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveAggregation counts one source comparison computation.
func ObserveAggregation() {
	Init()
	aggregationsTotal.Inc()
}
