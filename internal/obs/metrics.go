package obs

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	// EventsPublished counts identity notifications handed to subscribers.
	EventsPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "identity_events_published_total",
			Help: "Identity lifecycle events dispatched to subscribers.",
		},
		[]string{"event_type"},
	)

	// EventsFailed counts notifications that were dropped or whose subscriber failed.
	EventsFailed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "identity_events_failed_total",
			Help: "Identity lifecycle events that could not be delivered.",
		},
		[]string{"event_type"},
	)

	// AuthAttempts counts authentication outcomes (success, invalid_credentials, error).
	AuthAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_attempts_total",
			Help: "Authentication attempts by outcome.",
		},
		[]string{"outcome"},
	)

	// WebhookDeliveries counts outbound event deliveries (delivered, failed, dropped).
	WebhookDeliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "identity_webhook_deliveries_total",
			Help: "Identity events forwarded to the webhook endpoint, by outcome.",
		},
		[]string{"outcome"},
	)

	registerOnce sync.Once
)

// Init registers the collectors in the default registry. Safe to call more than once.
func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(httpInFlight, httpRequestsTotal, httpRequestDuration,
			EventsPublished, EventsFailed, AuthAttempts, WebhookDeliveries)
	})
}

func Handler() http.Handler {
	return promhttp.Handler()
}

// Instrument records request count, latency and in-flight gauge. The route
// label uses the chi route pattern to keep cardinality bounded.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httpInFlight.Inc()
		defer httpInFlight.Dec()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(sw, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := strconv.Itoa(sw.code)

		httpRequestDuration.WithLabelValues(r.Method, route, status).Observe(time.Since(start).Seconds())
		httpRequestsTotal.WithLabelValues(r.Method, route, status).Inc()
	})
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
