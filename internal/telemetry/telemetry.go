// Package telemetry exposes Prometheus metrics for the gating pipeline.
package telemetry

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	gateDecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gate_decisions_total",
			Help: "Total number of gate decisions, labeled by verdict and reason.",
		},
		[]string{"verdict", "reason"},
	)

	powChallengesIssuedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pow_challenges_issued_total",
			Help: "Total number of proof-of-work challenges issued.",
		},
	)

	powVerificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pow_verifications_total",
			Help: "Total number of proof-of-work solution verifications, labeled by result.",
		},
		[]string{"result"},
	)

	powTokensIssuedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pow_tokens_issued_total",
			Help: "Total number of session tokens issued after a solved challenge.",
		},
	)

	rdnsLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rdns_lookups_total",
			Help: "Total number of reverse-DNS crawler verifications, labeled by result.",
		},
		[]string{"result"},
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
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2},
		},
		[]string{"method", "route"},
	)
)

// Handler returns the standard Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware is a chi middleware that records HTTP request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(ww, r)

		routePattern := "unknown"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			routePattern = rctx.RoutePattern()
		}

		ObserveHTTPRequest(r.Method, routePattern, ww.statusCode, time.Since(start))
	})
}

// statusRecorder wraps http.ResponseWriter to capture the status code.
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (rec *statusRecorder) WriteHeader(code int) {
	rec.statusCode = code
	rec.ResponseWriter.WriteHeader(code)
}

// ObserveDecision records a gate verdict.
func ObserveDecision(verdict, reason string) {
	gateDecisionsTotal.WithLabelValues(verdict, reason).Inc()
}

// ObserveChallengeIssued records an issued PoW challenge.
func ObserveChallengeIssued() {
	powChallengesIssuedTotal.Inc()
}

// ObservePoWVerification records the outcome of a solution check.
func ObservePoWVerification(ok bool) {
	result := "invalid"
	if ok {
		result = "valid"
	}
	powVerificationsTotal.WithLabelValues(result).Inc()
}

// ObserveTokenIssued records an issued session token.
func ObserveTokenIssued() {
	powTokensIssuedTotal.Inc()
}

// ObserveRDNSLookup records the result of a reverse-DNS verification.
func ObserveRDNSLookup(result string) {
	rdnsLookupsTotal.WithLabelValues(result).Inc()
}

// ObserveHTTPRequest records metrics for an HTTP request.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
