// Package metrics holds the Prometheus collectors of the onboarding service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "onboard"

// Metrics holds all Prometheus metrics
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Business metrics
	VendorsCreated      prometheus.Counter
	VendorDecisions     *prometheus.CounterVec
	PhotoUploadFailures *prometheus.CounterVec
	RoleFallbacks       prometheus.Counter
	EarningsFallbacks   *prometheus.CounterVec
}

// New creates a Metrics instance registered on its own registry, together
// with the Go runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		VendorsCreated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "vendors_created_total",
			Help:      "Total number of vendors submitted",
		}),
		VendorDecisions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "vendor_decisions_total",
				Help:      "Total number of approve and reject decisions",
			},
			[]string{"action"}, // approve, reject
		),
		PhotoUploadFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "photo_upload_failures_total",
				Help:      "Photo uploads that failed and were skipped",
			},
			[]string{"bucket", "kind"},
		),
		RoleFallbacks: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "role_default_fallbacks_total",
			Help:      "Role lookups answered with the default role",
		}),
		EarningsFallbacks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "earnings_computed_fallbacks_total",
				Help:      "Earnings summaries computed locally instead of read from the aggregate",
			},
			[]string{"reason"},
		),
	}
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Middleware records request counts and latency per route pattern.
func (m *Metrics) Middleware() runtime.Middleware {
	return func(next runtime.HandlerFunc) runtime.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request, pathParams map[string]string) {
			start := time.Now()
			route := r.URL.Path
			if pattern, ok := runtime.HTTPPattern(r.Context()); ok {
				route = pattern.String()
			}

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next(ww, r, pathParams)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			m.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
			m.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
		}
	}
}

// RecordVendorCreated increments the vendors created counter
func (m *Metrics) RecordVendorCreated() {
	m.VendorsCreated.Inc()
}

// RecordDecision counts an approve or reject action.
func (m *Metrics) RecordDecision(action string) {
	m.VendorDecisions.WithLabelValues(action).Inc()
}

// RecordUploadFailure counts a skipped photo upload.
func (m *Metrics) RecordUploadFailure(bucket, kind string) {
	m.PhotoUploadFailures.WithLabelValues(bucket, kind).Inc()
}

func (m *Metrics) RecordRoleFallback() {
	m.RoleFallbacks.Inc()
}

func (m *Metrics) RecordEarningsFallback(reason string) {
	m.EarningsFallbacks.WithLabelValues(reason).Inc()
}
