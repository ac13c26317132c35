package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"credit-backend/internal/apperrors"
	"credit-backend/internal/middleware"
	"credit-backend/internal/models"
)

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// writeError maps err to its status code. Causes of internal errors are
// logged and never returned to the client.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	se := apperrors.AsStructured(err)
	status := se.HTTPStatus()
	if status >= http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "Request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err)
	}
	writeJSON(w, status, se.ToResponse())
}

func decodeJSON(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return apperrors.InvalidParameters("invalid request body")
	}
	return nil
}

func actorFrom(r *http.Request) (models.Actor, error) {
	actor, ok := middleware.GetActor(r.Context())
	if !ok {
		return models.Actor{}, apperrors.Unauthorized()
	}
	return actor, nil
}

// pathID parses a positive numeric URL parameter. Anything else cannot
// name a record, so it is reported as notFound.
func pathID(r *http.Request, name string, notFound error) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, notFound
	}
	return id, nil
}
