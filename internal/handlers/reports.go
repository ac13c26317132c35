package handlers

import (
	"context"
	"net/http"

	"credit-backend/internal/models"
	"credit-backend/internal/reports"
)

type ReportHandler struct {
	engine *reports.Engine
}

func NewReportHandler(engine *reports.Engine) *ReportHandler {
	return &ReportHandler{engine: engine}
}

// --- GET /feedbacks/stats ---

func (h *ReportHandler) Stats(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	stats, err := h.engine.Stats(r.Context(), actor)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// --- GET /reports/total ---

func (h *ReportHandler) Totals(w http.ResponseWriter, r *http.Request) {
	serveReport(w, r, h.engine, h.engine.Totals)
}

// --- GET /reports/by_rating ---

func (h *ReportHandler) ByRating(w http.ResponseWriter, r *http.Request) {
	serveReport(w, r, h.engine, h.engine.ByRating)
}

// --- GET /reports/activity ---

func (h *ReportHandler) Activity(w http.ResponseWriter, r *http.Request) {
	serveReport(w, r, h.engine, h.engine.Activity)
}

func serveReport[P any](
	w http.ResponseWriter,
	r *http.Request,
	engine *reports.Engine,
	build func(context.Context, models.Actor, reports.Range) (*reports.Report[P], error),
) {
	actor, err := actorFrom(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := engine.Authorize(actor); err != nil {
		writeError(w, r, err)
		return
	}

	query := r.URL.Query()
	rng, err := engine.ParseRange(query.Get("start_date"), query.Get("end_date"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	report, err := build(r.Context(), actor, rng)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"report": report,
	})
}
