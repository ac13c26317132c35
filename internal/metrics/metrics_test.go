package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"credit-backend/internal/apperrors"
)

func TestHTTPMetrics_RecordsRoutePattern(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewHTTPMetrics(reg)

	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/feedbacks/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {})

	for _, path := range []string{"/feedbacks/1", "/feedbacks/2", "/health"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("GET", "/feedbacks/{id}", "404")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.RequestsTotal))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.InFlightGauge))
}

func TestFeedbackMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewFeedbackMetrics(reg)

	m.RecordCreated(1)
	m.RecordCreated(1)
	m.RecordCreated(-1)
	m.RecordRejected(apperrors.DuplicateRatingToday())
	m.RecordRejected(nil)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Created.WithLabelValues("1")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Created.WithLabelValues("-1")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Rejected.WithLabelValues("duplicate_rating_today")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.Rejected))
}

func TestHandler_ServesRegistry(t *testing.T) {
	reg := NewRegistry()
	NewFeedbackMetrics(reg).RecordCreated(0)

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "user_credit_feedback_created_total")
}
