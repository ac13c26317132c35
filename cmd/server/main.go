package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"

	"credit-backend/internal/cache"
	"credit-backend/internal/config"
	"credit-backend/internal/database"
	"credit-backend/internal/feedback"
	"credit-backend/internal/handlers"
	"credit-backend/internal/logging"
	"credit-backend/internal/metrics"
	"credit-backend/internal/notify"
	"credit-backend/internal/reports"
	"credit-backend/internal/repository"
)

// store is everything the service and the reporting engine read and write.
type store interface {
	feedback.Store
	reports.Store
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	loc := cfg.Location()
	clock := clockwork.NewRealClock()

	var (
		feedbackStore store
		users         notify.UserLookup
	)
	switch cfg.StoreDriver {
	case config.DriverMemory:
		slog.Warn("Using in-memory store, data is lost on restart")
		feedbackStore = repository.NewMemoryFeedbackRepo()
		users = repository.NewMemoryUserRepo()
	default:
		db, err := database.Connect(ctx, cfg.MongoURI, cfg.DBName)
		if err != nil {
			slog.Error("Failed to connect to MongoDB", "error", err)
			os.Exit(1)
		}
		defer func() {
			if err := database.Disconnect(context.Background(), db); err != nil {
				slog.Error("Error disconnecting from MongoDB", "error", err)
			}
		}()

		feedbackRepo := repository.NewFeedbackRepo(db)
		userRepo := repository.NewUserRepo(db)

		indexCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		if err := feedbackRepo.EnsureIndexes(indexCtx); err != nil {
			// The daily-limit index is load-bearing; refuse to start without it.
			cancel()
			slog.Error("Failed to create feedback indexes", "error", err)
			os.Exit(1)
		}
		if err := userRepo.EnsureIndexes(indexCtx); err != nil {
			slog.Warn("Failed to create user indexes", "error", err)
		}
		cancel()

		feedbackStore = feedbackRepo
		users = userRepo
	}

	var summaryCache feedback.SummaryCache
	if cfg.RedisURL != "" {
		rdb, err := database.ConnectRedis(ctx, cfg.RedisURL)
		if err != nil {
			slog.Error("Failed to connect to Redis", "error", err)
			os.Exit(1)
		}
		defer rdb.Close()
		summaryCache = cache.NewSummaryCache(rdb, cfg.SummaryCacheTTL)
	}

	var notifier notify.Notifier
	if cfg.ResendAPIKey != "" {
		notifier = notify.NewEmailNotifier(cfg.ResendAPIKey, cfg.FromEmail, users)
	} else {
		slog.Warn("RESEND_API_KEY not set, feedback notifications are only logged")
		notifier = notify.NewLogNotifier()
	}

	reg := metrics.NewRegistry()
	service := feedback.NewService(feedbackStore, summaryCache, clock, loc)
	engine := reports.NewEngine(feedbackStore, clock, loc)

	router := handlers.NewRouter(handlers.RouterConfig{
		JWTSecret:   cfg.JWTSecret,
		Feedback:    handlers.NewFeedbackHandler(service, notifier, metrics.NewFeedbackMetrics(reg)),
		Reports:     handlers.NewReportHandler(engine),
		Users:       handlers.NewUserHandler(service),
		HTTPMetrics: metrics.NewHTTPMetrics(reg),
		Registry:    reg,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("Credit backend starting", "port", cfg.Port, "store", cfg.StoreDriver, "timezone", loc.String())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Graceful shutdown failed", "error", err)
	}
}
