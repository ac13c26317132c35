package handlers

import (
	"net/http"

	"credit-backend/internal/apperrors"
	"credit-backend/internal/feedback"
)

type UserHandler struct {
	service *feedback.Service
}

func NewUserHandler(service *feedback.Service) *UserHandler {
	return &UserHandler{service: service}
}

var invalidUserID = apperrors.InvalidTarget("user id must be positive")

// --- GET /users/{id}/rating-summary ---

func (h *UserHandler) RatingSummary(w http.ResponseWriter, r *http.Request) {
	if _, err := actorFrom(r); err != nil {
		writeError(w, r, err)
		return
	}
	userID, err := pathID(r, "id", invalidUserID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	summary, err := h.service.Summary(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// --- GET /users/{id}/feedbacks-to ---

func (h *UserHandler) RatedTargets(w http.ResponseWriter, r *http.Request) {
	if _, err := actorFrom(r); err != nil {
		writeError(w, r, err)
		return
	}
	userID, err := pathID(r, "id", invalidUserID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	targets, err := h.service.RatedTargets(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"user_id":      userID,
		"feedbacks_to": targets,
	})
}
