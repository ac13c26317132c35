package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"credit-backend/internal/apperrors"
	"credit-backend/internal/feedback"
	"credit-backend/internal/metrics"
	"credit-backend/internal/models"
	"credit-backend/internal/notify"
)

const notifyTimeout = 10 * time.Second

type FeedbackHandler struct {
	service  *feedback.Service
	notifier notify.Notifier
	metrics  *metrics.FeedbackMetrics
}

func NewFeedbackHandler(service *feedback.Service, notifier notify.Notifier, m *metrics.FeedbackMetrics) *FeedbackHandler {
	return &FeedbackHandler{
		service:  service,
		notifier: notifier,
		metrics:  m,
	}
}

type CreateFeedbackRequest struct {
	FeedbackToID int64   `json:"feedback_to_id"`
	Rating       *int    `json:"rating"`
	Review       *string `json:"review"`
}

type feedbackPatchBody struct {
	Rating *int    `json:"rating"`
	Review *string `json:"review"`
}

// UpdateFeedbackRequest accepts the fields at the top level or nested
// under user_feedback. Nested fields win.
type UpdateFeedbackRequest struct {
	feedbackPatchBody
	UserFeedback *feedbackPatchBody `json:"user_feedback"`
}

func (req UpdateFeedbackRequest) patch() models.FeedbackPatch {
	p := models.FeedbackPatch{Rating: req.Rating, Review: req.Review}
	if nested := req.UserFeedback; nested != nil {
		if nested.Rating != nil {
			p.Rating = nested.Rating
		}
		if nested.Review != nil {
			p.Review = nested.Review
		}
	}
	return p
}

var feedbackNotFound = apperrors.NotFound("Feedback not found")

// --- POST /feedbacks ---

func (h *FeedbackHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req CreateFeedbackRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Rating == nil {
		h.reject(w, r, apperrors.InvalidRating())
		return
	}

	created, err := h.service.Create(r.Context(), actor, feedback.CreateInput{
		TargetID: req.FeedbackToID,
		Rating:   *req.Rating,
		Review:   req.Review,
	})
	if err != nil {
		h.reject(w, r, err)
		return
	}
	h.metrics.RecordCreated(created.Rating)

	// Notify in the background so a slow mail provider never delays the response.
	notifyCtx := context.WithoutCancel(r.Context())
	go func() {
		ctx, cancel := context.WithTimeout(notifyCtx, notifyTimeout)
		defer cancel()
		if err := h.notifier.FeedbackReceived(ctx, created); err != nil {
			slog.ErrorContext(ctx, "Error sending feedback notification", "feedback_id", created.ID, "error", err)
		}
	}()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"user_feedback": created,
	})
}

// --- PATCH /feedbacks/{id} ---

func (h *FeedbackHandler) Update(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	id, err := pathID(r, "id", feedbackNotFound)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req UpdateFeedbackRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	updated, err := h.service.Update(r.Context(), actor, id, req.patch())
	if err != nil {
		h.reject(w, r, err)
		return
	}
	h.metrics.Modified.Inc()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"user_feedback": updated,
	})
}

// --- DELETE /feedbacks/{id} ---

func (h *FeedbackHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	id, err := pathID(r, "id", feedbackNotFound)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := h.service.Delete(r.Context(), actor, id); err != nil {
		h.reject(w, r, err)
		return
	}
	h.metrics.Deleted.Inc()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Feedback deleted successfully",
	})
}

// --- GET /feedbacks/{id} ---

func (h *FeedbackHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	id, err := pathID(r, "id", feedbackNotFound)
	if err != nil {
		writeError(w, r, err)
		return
	}

	entry, err := h.service.Get(r.Context(), actor, id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"user_feedback": entry,
	})
}

// --- GET /feedbacks ---

func (h *FeedbackHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var q feedback.ListQuery
	query := r.URL.Query()
	if raw := query.Get("feedback_to_id"); raw != "" {
		target, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(w, r, apperrors.InvalidTarget("feedback_to_id must be a positive user id"))
			return
		}
		q.TargetID = &target
	}
	if raw := query.Get("page"); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil || page < 0 {
			writeError(w, r, apperrors.InvalidParameters("page must be a non-negative integer"))
			return
		}
		q.Page = page
	}

	result, err := h.service.List(r.Context(), actor, q)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (h *FeedbackHandler) reject(w http.ResponseWriter, r *http.Request, err error) {
	h.metrics.RecordRejected(err)
	writeError(w, r, err)
}
