// Package metrics provides Prometheus instrumentation for movieweb.
//
// Metrics are registered with the default registry at init time and exposed by [Handler]:
//
//	movieweb_provider_lookups_total            counter: metadata lookups by provider and outcome
//	movieweb_provider_lookup_duration_seconds  histogram: metadata lookup latency by provider
//	movieweb_reconciliations_total             counter: add requests by terminal state
//	movieweb_degraded_fields_total             counter: normalization flags by flag
//	movieweb_http_requests_total               counter: HTTP requests by method, route and status
//	movieweb_http_request_duration_seconds     histogram: HTTP latency by method and route
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Lookup outcomes.
const (
	OutcomeOK          = "ok"
	OutcomeNoMatch     = "no_match"
	OutcomeUnavailable = "unavailable"
)

// ProviderLookups counts metadata lookups by provider and outcome.
var ProviderLookups = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "movieweb_provider_lookups_total",
	Help: "Metadata provider lookups by outcome.",
}, []string{"provider", "outcome"})

// ProviderDuration tracks metadata lookup latency.
var ProviderDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "movieweb_provider_lookup_duration_seconds",
	Help:    "Metadata provider lookup latency in seconds.",
	Buckets: []float64{.05, .1, .25, .5, 1, 2, 4, 8, 16},
}, []string{"provider"})

// Reconciliations counts add requests by the state they ended in.
var Reconciliations = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "movieweb_reconciliations_total",
	Help: "Library add requests by terminal state.",
}, []string{"state"})

// DegradedFields counts fields the normalizer truncated or dropped.
var DegradedFields = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "movieweb_degraded_fields_total",
	Help: "Normalization degradation flags by flag.",
}, []string{"flag"})

// HTTPRequests counts HTTP requests by method, route pattern, and status code.
var HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "movieweb_http_requests_total",
	Help: "Total HTTP requests handled.",
}, []string{"method", "route", "status"})

// HTTPDuration tracks HTTP request latency.
var HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "movieweb_http_request_duration_seconds",
	Help:    "HTTP request latency in seconds.",
	Buckets: prometheus.DefBuckets,
}, []string{"method", "route"})

// ObserveLookup records one provider lookup.
func ObserveLookup(provider, outcome string, started time.Time) {
	ProviderLookups.WithLabelValues(provider, outcome).Inc()
	ProviderDuration.WithLabelValues(provider).Observe(time.Since(started).Seconds())
}

// Handler returns the Prometheus HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware wraps an HTTP handler to record request counts and latency.
//
// Requests are labelled with the matched route pattern rather than the raw path to keep cardinality bounded.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		HTTPRequests.WithLabelValues(r.Method, route, strconv.Itoa(rw.status)).Inc()
		HTTPDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}
