// Package metrics defines the Prometheus collectors exported by the frontend.
// All collectors live on a dedicated registry so tests can build isolated instances.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	obserrors "github.com/target/coffee-ui/internal/observability/errors"
)

const namespace = "coffee"

// Auth event names used as the "event" label.
const (
	EventLogin   = "login"
	EventSignup  = "signup"
	EventLogout  = "logout"
	EventRestore = "restore"
	EventRevoked = "revoked"
)

// Registry owns every collector. A nil *Registry is valid and records nothing.
type Registry struct {
	reg *prometheus.Registry

	httpRequests    *prometheus.CounterVec
	backendRequests *prometheus.CounterVec
	backendDuration *prometheus.HistogramVec
	authEvents      *prometheus.CounterVec
	liveSessions    prometheus.Gauge
}

// New builds a registry with process and Go runtime collectors attached.
func New() *Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Registry{
		reg: reg,
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total HTTP requests served, by method, route pattern and status.",
		}, []string{"method", "route", "status"}),
		backendRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backend_requests_total",
			Help:      "Total requests sent to the backend API, by method, path and status class.",
		}, []string{"method", "path", "status_class"}),
		backendDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "backend_request_duration_seconds",
			Help:      "Latency of backend API requests.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),
		authEvents: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_events_total",
			Help:      "Session lifecycle events, by event and result.",
		}, []string{"event", "result"}),
		liveSessions: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "live_sessions",
			Help:      "Sessions currently held in the in-process registry.",
		}),
	}
}

// Handler exposes the registry in the Prometheus text format.
func (r *Registry) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{Registry: r.reg})
}

// Gatherer returns the underlying registry for tests.
func (r *Registry) Gatherer() prometheus.Gatherer {
	if r == nil {
		return prometheus.NewRegistry()
	}
	return r.reg
}

// ObserveHTTP records one served request.
func (r *Registry) ObserveHTTP(method, route string, status int) {
	if r == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	r.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
}

// ObserveBackend records one backend round trip. status 0 means a transport failure.
func (r *Registry) ObserveBackend(method, path string, status int, d time.Duration) {
	if r == nil {
		return
	}
	r.backendRequests.WithLabelValues(method, path, StatusClass(status)).Inc()
	r.backendDuration.WithLabelValues(method, path).Observe(d.Seconds())
}

// ObserveAuth records a session lifecycle event and its classified outcome.
func (r *Registry) ObserveAuth(event string, err error) {
	if r == nil {
		return
	}
	r.authEvents.WithLabelValues(event, obserrors.Result(err)).Inc()
}

// SetLiveSessions updates the live session gauge.
func (r *Registry) SetLiveSessions(n int) {
	if r == nil {
		return
	}
	r.liveSessions.Set(float64(n))
}

// StatusClass buckets an HTTP status into 2xx/3xx/4xx/5xx, or "error" for transport failures.
func StatusClass(status int) string {
	switch {
	case status <= 0:
		return "error"
	case status < 200:
		return "1xx"
	case status < 300:
		return "2xx"
	case status < 400:
		return "3xx"
	case status < 500:
		return "4xx"
	default:
		return "5xx"
	}
}
