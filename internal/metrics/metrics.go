// ABOUTME: Prometheus collectors for the dashboard and its upstream API calls
// ABOUTME: Exposes an HTTP middleware, upstream observers, and the scrape handler

package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tripdesk_dashboard_http_requests_total",
			Help: "Total number of HTTP requests served by the dashboard.",
		},
		[]string{"method", "route", "status"},
	)
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tripdesk_dashboard_http_request_duration_seconds",
			Help:    "Dashboard HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
	upstreamRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tripdesk_upstream_requests_total",
			Help: "Total number of requests sent to the platform API.",
		},
		[]string{"method", "endpoint", "status"},
	)
	upstreamRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tripdesk_upstream_request_duration_seconds",
			Help:    "Platform API request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)
	staleResponsesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tripdesk_stale_responses_discarded_total",
			Help: "Responses dropped because a newer request superseded them.",
		},
		[]string{"list"},
	)
	renderFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tripdesk_render_failures_total",
			Help: "Views replaced by the error panel after a render failure.",
		},
		[]string{"view"},
	)
	messagesSentTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tripdesk_messages_sent_total",
			Help: "Admin messages submitted from the dashboard.",
		},
		[]string{"outcome"},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDuration,
		upstreamRequestsTotal,
		upstreamRequestDuration,
		staleResponsesTotal,
		renderFailuresTotal,
		messagesSentTotal,
	)
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Middleware records request count and latency labelled by the matched
// ServeMux pattern.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		httpRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).Inc()
		httpRequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// ObserveUpstream records one platform API call. status is 0 for
// transport failures.
func ObserveUpstream(method, endpoint string, status int, elapsed time.Duration) {
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	upstreamRequestsTotal.WithLabelValues(method, endpoint, label).Inc()
	upstreamRequestDuration.WithLabelValues(endpoint).Observe(elapsed.Seconds())
}

func IncStaleDiscarded(list string) {
	staleResponsesTotal.WithLabelValues(list).Inc()
}

func IncRenderFailure(view string) {
	renderFailuresTotal.WithLabelValues(view).Inc()
}

func IncMessageSent(outcome string) {
	messagesSentTotal.WithLabelValues(outcome).Inc()
}
