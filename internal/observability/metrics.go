package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects Prometheus metrics for the service.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	entriesPosted    *prometheus.CounterVec
	paymentsRecorded *prometheus.CounterVec
	recalcDuration   prometheus.Histogram
	recalcFailures   prometheus.Counter
	reportsGenerated *prometheus.CounterVec
	cacheLookups     *prometheus.CounterVec
}

// NewMetrics initialises the registry with HTTP and domain metrics.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ams_http_requests_total",
		Help: "HTTP requests by route and status.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ams_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	entries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ams_ledger_entries_total",
		Help: "Ledger entry mutations by entry type and operation.",
	}, []string{"type", "op"})
	payments := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ams_payments_recorded_total",
		Help: "Payment records by target and resulting status.",
	}, []string{"target", "status"})
	recalc := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "ams_balance_recalculation_duration_seconds",
		Help:    "Time spent recomputing a ledger balance.",
		Buckets: []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
	})
	recalcFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ams_balance_recalculation_failures_total",
		Help: "Balance recalculations aborted by a consistency error.",
	})
	reports := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ams_reports_generated_total",
		Help: "Generated reports by type.",
	}, []string{"type"})
	cache := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ams_report_cache_lookups_total",
		Help: "Report export cache lookups by result.",
	}, []string{"result"})
	registry.MustRegister(requests, duration, entries, payments, recalc, recalcFailures, reports, cache)
	return &Metrics{
		registry:         registry,
		handler:          promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:    requests,
		requestDuration:  duration,
		entriesPosted:    entries,
		paymentsRecorded: payments,
		recalcDuration:   recalc,
		recalcFailures:   recalcFailures,
		reportsGenerated: reports,
		cacheLookups:     cache,
	}
}

// Handler returns the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records request count and latency per chi route pattern.
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

// Registerer exposes the registry for additional collectors such as the job queue.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

// EntryPosted counts a ledger entry create or delete.
func (m *Metrics) EntryPosted(entryType, op string) {
	if m == nil {
		return
	}
	m.entriesPosted.WithLabelValues(entryType, op).Inc()
}

// PaymentRecorded counts a payment against an invoice or bill.
func (m *Metrics) PaymentRecorded(target, status string) {
	if m == nil {
		return
	}
	m.paymentsRecorded.WithLabelValues(target, status).Inc()
}

// ObserveRecalculation records how long a balance recompute took.
func (m *Metrics) ObserveRecalculation(d time.Duration, err error) {
	if m == nil {
		return
	}
	m.recalcDuration.Observe(d.Seconds())
	if err != nil {
		m.recalcFailures.Inc()
	}
}

// ReportGenerated counts a persisted report.
func (m *Metrics) ReportGenerated(reportType string) {
	if m == nil {
		return
	}
	m.reportsGenerated.WithLabelValues(reportType).Inc()
}

// CacheLookup counts a report cache hit or miss.
func (m *Metrics) CacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(result).Inc()
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
