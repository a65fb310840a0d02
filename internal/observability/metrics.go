package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics mengumpulkan metrik Prometheus untuk gateway.
type Metrics struct {
	registry         *prometheus.Registry
	handler          http.Handler
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	dispatchTotal    *prometheus.CounterVec
	dispatchDuration *prometheus.HistogramVec
	remoteAttempts   *prometheus.CounterVec
}

// NewMetrics menginisialisasi registry dan metrik dasar.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gateway_http_request_duration_seconds",
		Help:    "HTTP request latency per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	dispatches := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_dispatch_total",
		Help: "Operation dispatches by operation and result kind.",
	}, []string{"operation", "kind"})
	dispatchDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gateway_dispatch_duration_seconds",
		Help:    "End to end dispatch latency per operation.",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
	}, []string{"operation"})
	attempts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_remote_attempts_total",
		Help: "Attempts against the remote SOAP service by outcome.",
	}, []string{"operation", "outcome"})
	registry.MustRegister(
		requests, duration, dispatches, dispatchDuration, attempts,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return &Metrics{
		registry:         registry,
		handler:          promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:    requests,
		requestDuration:  duration,
		dispatchTotal:    dispatches,
		dispatchDuration: dispatchDuration,
		remoteAttempts:   attempts,
	}
}

// Handler mengembalikan http.Handler untuk endpoint /metrics.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware mencatat metrik untuk setiap permintaan HTTP.
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

// ObserveDispatch records one finished dispatch.
func (m *Metrics) ObserveDispatch(operation, kind string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.dispatchTotal.WithLabelValues(operation, kind).Inc()
	m.dispatchDuration.WithLabelValues(operation).Observe(elapsed.Seconds())
}

// ObserveAttempt records one attempt made by the SOAP transport.
func (m *Metrics) ObserveAttempt(operation, outcome string) {
	if m == nil {
		return
	}
	m.remoteAttempts.WithLabelValues(operation, outcome).Inc()
}

// Registerer mengekspos registry untuk pendaftaran metrik khusus.
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
