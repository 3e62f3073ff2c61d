// Package observability exposes Prometheus metrics for the auth core.
package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects the application's Prometheus metrics.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	cacheLookups    *prometheus.CounterVec
	resolveDuration prometheus.Histogram
	signInsTotal    *prometheus.CounterVec
}

// NewMetrics initialises the registry and base metrics.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "portalescola_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "portalescola_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	cacheLookups := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "portalescola_permission_cache_lookups_total",
		Help: "Permission cache lookups by outcome.",
	}, []string{"outcome"})
	resolveDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "portalescola_permission_resolve_duration_seconds",
		Help:    "Duration of permission resolution on cache misses.",
		Buckets: prometheus.DefBuckets,
	})
	signIns := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "portalescola_sign_ins_total",
		Help: "Sign-in attempts by outcome.",
	}, []string{"outcome"})
	registry.MustRegister(requests, duration, cacheLookups, resolveDuration, signIns)
	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		cacheLookups:    cacheLookups,
		resolveDuration: resolveDuration,
		signInsTotal:    signIns,
	}
}

// PermissionCacheHit records a lookup served from the cache.
func (m *Metrics) PermissionCacheHit() {
	if m == nil {
		return
	}
	m.cacheLookups.WithLabelValues("hit").Inc()
}

// PermissionCacheMiss records a lookup that required resolution.
func (m *Metrics) PermissionCacheMiss() {
	if m == nil {
		return
	}
	m.cacheLookups.WithLabelValues("miss").Inc()
}

// ObserveResolve records the duration of one permission resolution.
func (m *Metrics) ObserveResolve(d time.Duration) {
	if m == nil {
		return
	}
	m.resolveDuration.Observe(d.Seconds())
}

// SignIn records a sign-in attempt outcome ("success", "invalid",
// "upstream").
func (m *Metrics) SignIn(outcome string) {
	if m == nil {
		return
	}
	m.signInsTotal.WithLabelValues(outcome).Inc()
}

// Handler returns the http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records request metrics for every HTTP request.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// Registerer exposes the registry for custom metric registration.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
