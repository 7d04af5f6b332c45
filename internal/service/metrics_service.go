package service

import (
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the API.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	paymentPolls    prometheus.Counter
	paymentsSettled prometheus.Counter
	dashboardHits   prometheus.Counter
	dashboardMisses prometheus.Counter
	exportsFinished *prometheus.CounterVec
}

// NewMetricsService registers the collectors on a dedicated registry.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	paymentPolls := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "payment_polls_total",
		Help: "Total invoice status polls performed by payment watchers",
	})

	paymentsSettled := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "payments_settled_total",
		Help: "Total payments settled through QR confirmation",
	})

	dashboardHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dashboard_cache_hits_total",
		Help: "Dashboard summary cache hits",
	})

	dashboardMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dashboard_cache_misses_total",
		Help: "Dashboard summary cache misses",
	})

	exportsFinished := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "exports_finished_total",
		Help: "Finished export jobs by outcome",
	}, []string{"outcome"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, paymentPolls, paymentsSettled, dashboardHits, dashboardMisses, exportsFinished, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		paymentPolls:    paymentPolls,
		paymentsSettled: paymentsSettled,
		dashboardHits:   dashboardHits,
		dashboardMisses: dashboardMisses,
		exportsFinished: exportsFinished,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records per-route request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := strconv.Itoa(status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordPaymentPoll counts one watcher poll iteration.
func (m *MetricsService) RecordPaymentPoll() {
	if m == nil {
		return
	}
	m.paymentPolls.Inc()
}

// RecordPaymentSettled counts a settled payment.
func (m *MetricsService) RecordPaymentSettled() {
	if m == nil {
		return
	}
	m.paymentsSettled.Inc()
}

// RecordDashboardLookup tracks dashboard cache utilisation.
func (m *MetricsService) RecordDashboardLookup(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.dashboardHits.Inc()
	} else {
		m.dashboardMisses.Inc()
	}
}

// RecordExportOutcome counts a finished or failed export job.
func (m *MetricsService) RecordExportOutcome(outcome string) {
	if m == nil {
		return
	}
	m.exportsFinished.WithLabelValues(outcome).Inc()
}
