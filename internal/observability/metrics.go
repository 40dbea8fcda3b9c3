package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects Prometheus metrics for the application.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	runsTotal      *prometheus.CounterVec
	productsSent   prometheus.Counter
	issuesRecorded *prometheus.CounterVec
	runDuration    prometheus.Histogram
}

// NewMetrics initialises the registry and base metrics.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stoksync_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "stoksync_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stoksync_runs_total",
		Help: "Reconciliation runs by terminal status.",
	}, []string{"status"})
	sent := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "stoksync_products_sent_total",
		Help: "Staged updates accepted by the marketplace.",
	})
	issues := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stoksync_issues_recorded_total",
		Help: "Sync issues recorded by issue type.",
	}, []string{"type"})
	runDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "stoksync_run_duration_seconds",
		Help:    "Wall-clock duration of reconciliation runs.",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
	})
	registry.MustRegister(requests, duration, runs, sent, issues, runDuration)
	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		runsTotal:       runs,
		productsSent:    sent,
		issuesRecorded:  issues,
		runDuration:     runDuration,
	}
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

// Middleware records metrics for every HTTP request.
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

// ObserveRun records the terminal status and duration of a reconciliation run.
func (m *Metrics) ObserveRun(status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.runsTotal.WithLabelValues(status).Inc()
	m.runDuration.Observe(duration.Seconds())
}

// AddProductsSent increments the sent counter by n.
func (m *Metrics) AddProductsSent(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.productsSent.Add(float64(n))
}

// AddIssue increments the issue counter for an issue type.
func (m *Metrics) AddIssue(issueType string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.issuesRecorded.WithLabelValues(issueType).Add(float64(n))
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
