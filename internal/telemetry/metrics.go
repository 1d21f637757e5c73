// Package telemetry defines the Prometheus collectors shared by the
// collection engine: request outcomes, limiter waits, and breaker states.
package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harvester_requests_total",
			Help: "Total remote API requests, labeled by platform, endpoint class, and status class.",
		},
		[]string{"platform", "endpoint", "status_class"},
	)

	requestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "harvester_request_duration_seconds",
			Help:    "Histogram of remote API request latencies.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"platform", "endpoint"},
	)

	rateLimitWaitSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "harvester_rate_limit_wait_seconds",
			Help:    "Histogram of time spent waiting for a rate-limit permit.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"key"},
	)

	breakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "harvester_breaker_state",
			Help: "Circuit breaker state per platform (0 closed, 1 half-open, 2 open).",
		},
		[]string{"platform"},
	)

	retriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harvester_retries_total",
			Help: "Retry attempts issued per platform and endpoint class.",
		},
		[]string{"platform", "endpoint"},
	)
)

// ObserveRequest records one completed request attempt.
func ObserveRequest(platform, endpoint string, statusCode int, dur time.Duration) {
	requestsTotal.WithLabelValues(platform, endpoint, ClassifyStatus(statusCode)).Inc()
	requestDurationSeconds.WithLabelValues(platform, endpoint).Observe(dur.Seconds())
}

// ObserveRateLimitWait records the delay introduced by the rate limiter.
func ObserveRateLimitWait(key string, dur time.Duration) {
	rateLimitWaitSeconds.WithLabelValues(key).Observe(dur.Seconds())
}

// SetBreakerState exports the current breaker state for a platform.
func SetBreakerState(platform string, state int) {
	breakerState.WithLabelValues(platform).Set(float64(state))
}

// IncRetry counts one retry attempt.
func IncRetry(platform, endpoint string) {
	retriesTotal.WithLabelValues(platform, endpoint).Inc()
}

// ClassifyStatus groups HTTP status codes into coarse classes. Code 0 marks
// transport-level failures that never produced a response.
func ClassifyStatus(code int) string {
	switch {
	case code == 0:
		return "error"
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500 && code < 600:
		return "5xx"
	default:
		return "other"
	}
}
