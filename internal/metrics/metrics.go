package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application collectors; /metrics serves it alone.
	Registry = prometheus.NewRegistry()

	upstreamRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "calcweb",
			Subsystem: "upstream",
			Name:      "requests_total",
			Help:      "Requests sent to the calculator service.",
		},
		[]string{"method", "endpoint", "outcome"},
	)

	upstreamDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "calcweb",
			Subsystem: "upstream",
			Name:      "request_duration_seconds",
			Help:      "Latency of requests sent to the calculator service.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
		},
		[]string{"method", "endpoint"},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "calcweb",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Pages and actions served to the browser.",
		},
		[]string{"method", "route", "status"},
	)
)

func init() {
	Registry.MustRegister(upstreamRequests, upstreamDuration, httpRequests)
}

// Outcome labels for upstream calls.
const (
	OutcomeTransportError = "transport_error"
	OutcomeShapeError     = "shape_error"
)

// ObserveUpstream records one call to the calculator service. outcome is the
// HTTP status code, or one of the Outcome constants when no usable response
// arrived.
func ObserveUpstream(method, endpoint, outcome string, elapsed time.Duration) {
	upstreamRequests.WithLabelValues(method, endpoint, outcome).Inc()
	upstreamDuration.WithLabelValues(method, endpoint).Observe(elapsed.Seconds())
}

func ObserveHTTP(method, route string, status int) {
	httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
}

func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}
