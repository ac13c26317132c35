// Package metrics exposes Prometheus instrumentation for the HTTP API and
// the feedback ledger.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"credit-backend/internal/apperrors"
)

const namespace = "user_credit"

// NewRegistry creates a registry with Go runtime and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return reg
}

func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

type HTTPMetrics struct {
	RequestDuration *prometheus.HistogramVec
	RequestsTotal   *prometheus.CounterVec
	InFlightGauge   prometheus.Gauge
}

func NewHTTPMetrics(reg prometheus.Registerer) *HTTPMetrics {
	m := &HTTPMetrics{
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status_code"}),
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"method", "route", "status_code"}),
		InFlightGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of HTTP requests currently being processed.",
		}),
	}

	reg.MustRegister(m.RequestDuration, m.RequestsTotal, m.InFlightGauge)
	return m
}

// Middleware records request metrics labelled by chi route pattern.
// /metrics and /health are not recorded.
func (m *HTTPMetrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" || r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		m.InFlightGauge.Inc()
		defer m.InFlightGauge.Dec()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		code := strconv.Itoa(status)
		m.RequestDuration.WithLabelValues(r.Method, route, code).Observe(time.Since(start).Seconds())
		m.RequestsTotal.WithLabelValues(r.Method, route, code).Inc()
	})
}

// FeedbackMetrics counts ledger outcomes.
type FeedbackMetrics struct {
	Created  *prometheus.CounterVec
	Rejected *prometheus.CounterVec
	Deleted  prometheus.Counter
	Modified prometheus.Counter
}

func NewFeedbackMetrics(reg prometheus.Registerer) *FeedbackMetrics {
	m := &FeedbackMetrics{
		Created: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feedback",
			Name:      "created_total",
			Help:      "Feedback entries created, by rating.",
		}, []string{"rating"}),
		Rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feedback",
			Name:      "rejected_total",
			Help:      "Feedback writes rejected, by error kind.",
		}, []string{"kind"}),
		Deleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feedback",
			Name:      "deleted_total",
			Help:      "Feedback entries soft-deleted.",
		}),
		Modified: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feedback",
			Name:      "modified_total",
			Help:      "Feedback entries modified by administrators.",
		}),
	}

	reg.MustRegister(m.Created, m.Rejected, m.Deleted, m.Modified)
	return m
}

func (m *FeedbackMetrics) RecordCreated(rating int) {
	m.Created.WithLabelValues(strconv.Itoa(rating)).Inc()
}

// RecordRejected counts err under its error kind.
func (m *FeedbackMetrics) RecordRejected(err error) {
	if se := apperrors.AsStructured(err); se != nil {
		m.Rejected.WithLabelValues(string(se.Kind)).Inc()
	}
}
