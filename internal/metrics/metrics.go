// Package metrics exposes the service-wide Prometheus collectors.
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
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec
	tzFallbackTotal            *prometheus.CounterVec
	streamSubscribers          prometheus.Gauge
	stateChangesTotal          *prometheus.CounterVec

	once sync.Once
)

// Init registers the collectors with the default registry. Repeated calls are no-ops.
func Init() {
	once.Do(func() {
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
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
			},
			[]string{"method", "route"},
		)

		tzFallbackTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "worldclock_tz_fallback_total",
				Help: "Timezone lookups that failed and degraded to UTC, labeled by zone.",
			},
			[]string{"timezone"},
		)

		streamSubscribers = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "worldclock_stream_subscribers",
				Help: "Clients currently attached to the frame stream.",
			},
		)

		stateChangesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "worldclock_api_state_changes_total",
				Help: "State mutations requested over the API, labeled by kind and outcome.",
			},
			[]string{"kind", "outcome"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveTZFallback counts a degraded timezone lookup. Empty zone names are
// reported as "empty" to keep the label readable.
func ObserveTZFallback(zone string) {
	if zone == "" {
		zone = "empty"
	}
	tzFallbackTotal.WithLabelValues(zone).Inc()
}

// SetStreamSubscribers records the number of attached stream clients.
func SetStreamSubscribers(n int) {
	streamSubscribers.Set(float64(n))
}

// ObserveStateChange counts an API mutation. outcome is "changed", "unchanged" or "rejected".
func ObserveStateChange(kind, outcome string) {
	stateChangesTotal.WithLabelValues(kind, outcome).Inc()
}
