package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"credit-backend/internal/feedback"
	"credit-backend/internal/metrics"
	"credit-backend/internal/models"
	"credit-backend/internal/reports"
	"credit-backend/internal/repository"
)

const testSecret = "handler-secret"

type recordingNotifier struct {
	ch chan *models.Feedback
}

func (n *recordingNotifier) FeedbackReceived(_ context.Context, f *models.Feedback) error {
	n.ch <- f
	return nil
}

type testServer struct {
	handler  http.Handler
	store    *repository.MemoryFeedbackRepo
	clock    *clockwork.FakeClock
	notifier *recordingNotifier
	metrics  *metrics.FeedbackMetrics
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	store := repository.NewMemoryFeedbackRepo()
	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 11, 15, 0, 0, 0, time.UTC))
	reg := prometheus.NewRegistry()
	fm := metrics.NewFeedbackMetrics(reg)
	notifier := &recordingNotifier{ch: make(chan *models.Feedback, 10)}

	svc := feedback.NewService(store, nil, clock, time.UTC)
	engine := reports.NewEngine(store, clock, time.UTC)

	h := NewRouter(RouterConfig{
		JWTSecret:   testSecret,
		Feedback:    NewFeedbackHandler(svc, notifier, fm),
		Reports:     NewReportHandler(engine),
		Users:       NewUserHandler(svc),
		HTTPMetrics: metrics.NewHTTPMetrics(reg),
		Registry:    reg,
	})
	return &testServer{handler: h, store: store, clock: clock, notifier: notifier, metrics: fm}
}

func token(t *testing.T, id int64, role models.Role) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": id,
		"role":    string(role),
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return s
}

func (s *testServer) do(t *testing.T, method, path, bearer string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

type entryBody struct {
	UserFeedback models.Feedback `json:"user_feedback"`
}

func (s *testServer) create(t *testing.T, bearer string, target int64, rating int) models.Feedback {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/feedbacks", bearer, map[string]interface{}{
		"feedback_to_id": target,
		"rating":         rating,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return decode[entryBody](t, rec).UserFeedback
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","service":"credit-backend"}`, rec.Body.String())
}

func TestRequiresAuth(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodGet, "/feedbacks", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "unauthorized", decode[errorBody](t, rec).Kind)
}

func TestCreateFeedback(t *testing.T) {
	s := newTestServer(t)
	alice := token(t, 1, models.RoleUser)

	rec := s.do(t, http.MethodPost, "/feedbacks", alice, map[string]interface{}{
		"feedback_to_id": 2,
		"rating":         1,
		"review":         "smooth trade",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body map[string]map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	entry := body["user_feedback"]
	assert.EqualValues(t, 1, entry["id"])
	assert.EqualValues(t, 1, entry["user_id"])
	assert.EqualValues(t, 2, entry["feedback_to_id"])
	assert.EqualValues(t, 1, entry["rating"])
	assert.Equal(t, "smooth trade", entry["review"])
	assert.Equal(t, false, entry["admin_modified"])
	assert.NotContains(t, entry, "daily_key")
	assert.NotContains(t, entry, "deleted_at")

	select {
	case f := <-s.notifier.ch:
		assert.Equal(t, int64(2), f.TargetID)
	case <-time.After(2 * time.Second):
		t.Fatal("notification was not sent")
	}
	assert.Equal(t, 1.0, testutil.ToFloat64(s.metrics.Created.WithLabelValues("1")))
}

func TestCreateFeedback_Rejections(t *testing.T) {
	s := newTestServer(t)
	alice := token(t, 1, models.RoleUser)
	s.create(t, alice, 2, 1)

	tests := []struct {
		name   string
		body   interface{}
		status int
		kind   string
	}{
		{"missing rating", map[string]interface{}{"feedback_to_id": 3}, http.StatusUnprocessableEntity, "invalid_rating"},
		{"rating out of range", map[string]interface{}{"feedback_to_id": 3, "rating": 2}, http.StatusUnprocessableEntity, "invalid_rating"},
		{"missing target", map[string]interface{}{"rating": 1}, http.StatusUnprocessableEntity, "invalid_target"},
		{"self rating", map[string]interface{}{"feedback_to_id": 1, "rating": 1}, http.StatusUnprocessableEntity, "invalid_target"},
		{"duplicate today", map[string]interface{}{"feedback_to_id": 2, "rating": 0}, http.StatusUnprocessableEntity, "duplicate_rating_today"},
		{"malformed body", `{"rating":`, http.StatusBadRequest, "invalid_parameters"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, http.MethodPost, "/feedbacks", alice, tt.body)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.kind, decode[errorBody](t, rec).Kind)
		})
	}

	assert.Equal(t, 1.0, testutil.ToFloat64(s.metrics.Rejected.WithLabelValues("duplicate_rating_today")))
}

func TestCreateFeedback_NextDayAllowed(t *testing.T) {
	s := newTestServer(t)
	alice := token(t, 1, models.RoleUser)
	s.create(t, alice, 2, 1)

	s.clock.Advance(9 * time.Hour) // 00:00 next day
	s.create(t, alice, 2, -1)
}

func TestUpdateFeedback(t *testing.T) {
	s := newTestServer(t)
	alice := token(t, 1, models.RoleUser)
	admin := token(t, 9, models.RoleAdmin)
	mod := token(t, 8, models.RoleModerator)
	entry := s.create(t, alice, 2, 1)
	path := fmt.Sprintf("/feedbacks/%d", entry.ID)

	rec := s.do(t, http.MethodPatch, path, alice, map[string]interface{}{"rating": -1})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodPatch, path, mod, map[string]interface{}{"rating": 5})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "invalid_rating", decode[errorBody](t, rec).Kind)

	rec = s.do(t, http.MethodPatch, path, admin, map[string]interface{}{})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "no_op", decode[errorBody](t, rec).Kind)

	rec = s.do(t, http.MethodPatch, "/feedbacks/999", admin, map[string]interface{}{"rating": 0})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodPatch, path, admin, map[string]interface{}{
		"user_feedback": map[string]interface{}{"rating": -1, "review": "edited"},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[entryBody](t, rec).UserFeedback
	assert.Equal(t, -1, updated.Rating)
	require.NotNil(t, updated.Review)
	assert.Equal(t, "edited", *updated.Review)
	assert.True(t, updated.AdminModified)
	require.NotNil(t, updated.AdminModifiedAt)

	rec = s.do(t, http.MethodPatch, path, mod, map[string]interface{}{"rating": 0})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, decode[entryBody](t, rec).UserFeedback.Rating)
}

func TestUpdateRequest_NestedWins(t *testing.T) {
	var req UpdateFeedbackRequest
	require.NoError(t, json.Unmarshal([]byte(`{"rating":1,"review":"top","user_feedback":{"rating":-1}}`), &req))

	p := req.patch()
	require.NotNil(t, p.Rating)
	assert.Equal(t, -1, *p.Rating)
	require.NotNil(t, p.Review)
	assert.Equal(t, "top", *p.Review)
}

func TestDeleteFeedback(t *testing.T) {
	s := newTestServer(t)
	alice := token(t, 1, models.RoleUser)
	bob := token(t, 2, models.RoleUser)
	entry := s.create(t, alice, 2, 1)
	path := fmt.Sprintf("/feedbacks/%d", entry.ID)

	rec := s.do(t, http.MethodDelete, path, bob, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodDelete, path, alice, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true,"message":"Feedback deleted successfully"}`, rec.Body.String())

	rec = s.do(t, http.MethodDelete, path, alice, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodGet, path, alice, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodDelete, "/feedbacks/abc", alice, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// the slot is free again after deletion
	s.create(t, alice, 2, 0)
}

func TestGetFeedback_Visibility(t *testing.T) {
	s := newTestServer(t)
	entry := s.create(t, token(t, 1, models.RoleUser), 2, 1)
	path := fmt.Sprintf("/feedbacks/%d", entry.ID)

	for _, tt := range []struct {
		name   string
		bearer string
		status int
	}{
		{"rater", token(t, 1, models.RoleUser), http.StatusOK},
		{"target", token(t, 2, models.RoleUser), http.StatusOK},
		{"stranger", token(t, 3, models.RoleUser), http.StatusForbidden},
		{"moderator", token(t, 8, models.RoleModerator), http.StatusOK},
	} {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.status, s.do(t, http.MethodGet, path, tt.bearer, nil).Code)
		})
	}
}

func TestListFeedbacks(t *testing.T) {
	s := newTestServer(t)
	alice := token(t, 1, models.RoleUser)
	bob := token(t, 2, models.RoleUser)
	s.create(t, alice, 2, 1)
	s.create(t, bob, 3, 0)
	s.create(t, token(t, 4, models.RoleUser), 5, -1)

	rec := s.do(t, http.MethodGet, "/feedbacks", alice, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	result := decode[feedback.ListResult](t, rec)
	assert.Equal(t, int64(1), result.Count)
	assert.False(t, result.CanModify)

	rec = s.do(t, http.MethodGet, "/feedbacks", bob, nil)
	result = decode[feedback.ListResult](t, rec)
	assert.Equal(t, int64(2), result.Count)

	rec = s.do(t, http.MethodGet, "/feedbacks?feedback_to_id=3", token(t, 9, models.RoleAdmin), nil)
	result = decode[feedback.ListResult](t, rec)
	assert.Equal(t, int64(1), result.Count)
	assert.True(t, result.CanModify)

	rec = s.do(t, http.MethodGet, "/feedbacks?page=1", token(t, 9, models.RoleAdmin), nil)
	result = decode[feedback.ListResult](t, rec)
	assert.Equal(t, int64(3), result.Count)
	assert.Empty(t, result.Feedbacks)

	rec = s.do(t, http.MethodGet, "/feedbacks?feedback_to_id=0", alice, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	rec = s.do(t, http.MethodGet, "/feedbacks?feedback_to_id=x", alice, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	rec = s.do(t, http.MethodGet, "/feedbacks?page=-1", alice, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStatsAndReports(t *testing.T) {
	s := newTestServer(t)
	s.create(t, token(t, 1, models.RoleUser), 2, 1)
	s.create(t, token(t, 3, models.RoleUser), 2, -1)
	admin := token(t, 9, models.RoleAdmin)
	mod := token(t, 8, models.RoleModerator)

	rec := s.do(t, http.MethodGet, "/feedbacks/stats", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decode[reports.Stats](t, rec)
	assert.Equal(t, "2026-03-11", stats.Daily.Date)
	assert.Equal(t, int64(2), stats.Daily.TotalFeedbacks)
	assert.Len(t, stats.Weekly.DailyBreakdown, 7)

	assert.Equal(t, http.StatusForbidden, s.do(t, http.MethodGet, "/feedbacks/stats", mod, nil).Code)

	rec = s.do(t, http.MethodGet, "/reports/total?start_date=2026-03-10&end_date=2026-03-11", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var totals struct {
		Report reports.Report[reports.Point] `json:"report"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &totals))
	assert.Equal(t, []reports.Point{{X: "2026-03-10", Y: 0}, {X: "2026-03-11", Y: 2}}, totals.Report.Data)

	rec = s.do(t, http.MethodGet, "/reports/by_rating", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `"type":"user_feedbacks_by_rating"`))

	rec = s.do(t, http.MethodGet, "/reports/activity?start_date=2026-03-12&end_date=2026-03-01", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var activity struct {
		Report reports.Report[reports.ActivityPoint] `json:"report"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &activity))
	assert.Empty(t, activity.Report.Data)

	rec = s.do(t, http.MethodGet, "/reports/total?start_date=yesterday", admin, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_parameters", decode[errorBody](t, rec).Kind)

	assert.Equal(t, http.StatusForbidden, s.do(t, http.MethodGet, "/reports/activity", mod, nil).Code)
}

func TestReports_ForbiddenBeforeDateValidation(t *testing.T) {
	s := newTestServer(t)
	alice := token(t, 1, models.RoleUser)

	for _, path := range []string{
		"/reports/total?start_date=garbage",
		"/reports/by_rating?end_date=2026-13-40",
		"/reports/activity?start_date=x&end_date=y",
	} {
		rec := s.do(t, http.MethodGet, path, alice, nil)
		assert.Equal(t, http.StatusForbidden, rec.Code, path)
		assert.Equal(t, "forbidden", decode[errorBody](t, rec).Kind, path)
	}
}

func TestUserEndpoints(t *testing.T) {
	s := newTestServer(t)
	alice := token(t, 1, models.RoleUser)
	s.create(t, alice, 2, 1)
	s.create(t, token(t, 3, models.RoleUser), 2, 0)
	s.create(t, alice, 4, -1)

	rec := s.do(t, http.MethodGet, "/users/2/rating-summary", alice, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	summary := decode[models.RatingSummary](t, rec)
	assert.Equal(t, models.RatingSummary{UserID: 2, Average: 0.5, Count: 2, Positive: 1, Neutral: 1}, summary)

	rec = s.do(t, http.MethodGet, "/users/1/feedbacks-to", alice, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"user_id":1,"feedbacks_to":[2,4]}`, rec.Body.String())

	rec = s.do(t, http.MethodGet, "/users/0/rating-summary", alice, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t)
	s.create(t, token(t, 1, models.RoleUser), 2, 1)

	rec := s.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "user_credit_http_requests_total")
	assert.Contains(t, body, `method="POST"`)
	assert.Contains(t, body, `user_credit_feedback_created_total{rating="1"} 1`)
}

func TestFeedbackLifecycle(t *testing.T) {
	s := newTestServer(t)
	author := token(t, 1, models.RoleUser)
	admin := token(t, 9, models.RoleAdmin)

	// day 1: create
	entry := s.create(t, author, 2, 1)
	assert.False(t, entry.AdminModified)
	path := fmt.Sprintf("/feedbacks/%d", entry.ID)

	// same day again
	rec := s.do(t, http.MethodPost, "/feedbacks", author, map[string]interface{}{
		"feedback_to_id": 2,
		"rating":         1,
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "duplicate_rating_today", decode[errorBody](t, rec).Kind)

	// admin override
	rec = s.do(t, http.MethodPatch, path, admin, map[string]interface{}{"rating": -1})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[entryBody](t, rec).UserFeedback
	assert.Equal(t, -1, updated.Rating)
	assert.True(t, updated.AdminModified)
	assert.NotNil(t, updated.AdminModifiedAt)

	// author deletes own entry
	rec = s.do(t, http.MethodDelete, path, author, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodGet, "/feedbacks", author, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[feedback.ListResult](t, rec)
	assert.Zero(t, list.Count)
	assert.Empty(t, list.Feedbacks)

	// deleted entries are not reported
	rec = s.do(t, http.MethodGet, "/reports/by_rating?start_date=2026-03-11&end_date=2026-03-11", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var byRating struct {
		Report reports.Report[reports.RatingPoint] `json:"report"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &byRating))
	require.Len(t, byRating.Report.Data, 3)
	assert.Equal(t, "Negative", byRating.Report.Data[2].X)
	assert.Zero(t, byRating.Report.Data[2].Y)
	assert.Zero(t, byRating.Report.Total)
}
