// Package metrics provides Prometheus metrics for the auth service
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "authsys"

var (
	// HTTPRequestsTotal counts total HTTP requests by method, path, and status
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests by method, path, and status code",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration measures HTTP request duration in seconds
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)

	// HTTPRequestsInFlight tracks current in-flight requests
	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_in_flight",
			Help:      "Current number of HTTP requests being processed",
		},
	)
)

var (
	// DBConnections reports pool connections by state: total, acquired, idle, max
	DBConnections = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "db",
			Name:      "connections",
			Help:      "Database pool connections by state",
		},
		[]string{"state"},
	)

	// DBQueryDuration measures database query duration
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "db",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)
)

// Outcome labels for auth counters
const (
	ResultSuccess            = "success"
	ResultWeakPassword       = "weak_password"
	ResultDuplicate          = "duplicate"
	ResultInvalidCredentials = "invalid_credentials"
	ResultInactive           = "inactive"
	ResultInvalid            = "invalid"
	ResultUnknownSubject     = "unknown_subject"
	ResultError              = "error"
)

var (
	// RegistrationsTotal counts registration attempts by outcome
	RegistrationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "registrations_total",
			Help:      "Total number of registration attempts by result",
		},
		[]string{"result"},
	)

	// LoginAttemptsTotal counts login attempts by outcome
	LoginAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "login_attempts_total",
			Help:      "Total number of login attempts by result",
		},
		[]string{"result"},
	)

	// TokenValidationsTotal counts bearer token checks by outcome
	TokenValidationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "token_validations_total",
			Help:      "Total number of bearer token validations by result",
		},
		[]string{"result"},
	)

	// AttemptLogSize tracks how many login attempts the audit log retains
	AttemptLogSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "audit",
			Name:      "attempts_retained",
			Help:      "Number of login attempts currently retained in the audit log",
		},
	)
)

// RecordRegistration increments the registration counter for result
func RecordRegistration(result string) {
	RegistrationsTotal.WithLabelValues(result).Inc()
}

// RecordLogin increments the login counter for result
func RecordLogin(result string) {
	LoginAttemptsTotal.WithLabelValues(result).Inc()
}

// RecordTokenValidation increments the token validation counter for result
func RecordTokenValidation(result string) {
	TokenValidationsTotal.WithLabelValues(result).Inc()
}

// responseWriter records the status code written by the wrapped handler
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

// newResponseWriter creates a new responseWriter
func newResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{
		ResponseWriter: w,
		statusCode:     http.StatusOK,
	}
}

// WriteHeader captures the status code
func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Unwrap lets http.ResponseController reach the underlying writer
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// unmatchedRoute labels requests that matched no chi route
const unmatchedRoute = "unmatched"

// Middleware records request count, latency and in-flight gauge. Requests are
// labelled by chi route pattern so ids in paths do not create new series.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		HTTPRequestsInFlight.Inc()
		defer HTTPRequestsInFlight.Dec()

		start := time.Now()
		rw := newResponseWriter(w)
		next.ServeHTTP(rw, r)

		route := routePattern(r)
		HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rw.statusCode)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return unmatchedRoute
}

// Handler returns the Prometheus metrics HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
