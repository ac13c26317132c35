package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"

	"credit-backend/internal/metrics"
	"credit-backend/internal/middleware"
)

type RouterConfig struct {
	JWTSecret   string
	Feedback    *FeedbackHandler
	Reports     *ReportHandler
	Users       *UserHandler
	HTTPMetrics *metrics.HTTPMetrics
	Registry    *prometheus.Registry
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	if cfg.HTTPMetrics != nil {
		r.Use(cfg.HTTPMetrics.Middleware)
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", middleware.RequestIDHeader},
		ExposedHeaders:   []string{middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "credit-backend"})
	})
	if cfg.Registry != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(cfg.Registry))
	}

	// Protected routes (JWT required)
	r.Group(func(r chi.Router) {
		r.Use(middleware.JWTAuth(cfg.JWTSecret))

		r.Route("/feedbacks", func(r chi.Router) {
			r.Get("/", cfg.Feedback.List)
			r.Post("/", cfg.Feedback.Create)
			r.Get("/stats", cfg.Reports.Stats)
			r.Get("/{id}", cfg.Feedback.Get)
			r.Patch("/{id}", cfg.Feedback.Update)
			r.Delete("/{id}", cfg.Feedback.Delete)
		})

		r.Route("/reports", func(r chi.Router) {
			r.Get("/total", cfg.Reports.Totals)
			r.Get("/by_rating", cfg.Reports.ByRating)
			r.Get("/activity", cfg.Reports.Activity)
		})

		r.Get("/users/{id}/rating-summary", cfg.Users.RatingSummary)
		r.Get("/users/{id}/feedbacks-to", cfg.Users.RatedTargets)
	})

	return r
}
