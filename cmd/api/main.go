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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/nikhilbhutani/minutesai/internal/api"
	"github.com/nikhilbhutani/minutesai/internal/api/handlers"
	"github.com/nikhilbhutani/minutesai/internal/app"
	"github.com/nikhilbhutani/minutesai/internal/cache"
	"github.com/nikhilbhutani/minutesai/internal/config"
	"github.com/nikhilbhutani/minutesai/internal/queue"
	"github.com/nikhilbhutani/minutesai/internal/storage"
	"github.com/nikhilbhutani/minutesai/internal/transcription"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(app.NewLogger(cfg.LogLevel))

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	core, err := app.NewCore(cfg, reg)
	if err != nil {
		slog.Error("failed to build pipeline", "error", err)
		os.Exit(1)
	}

	deps := transcription.Deps{
		Runner:  core.Pipeline,
		Bucket:  cfg.Storage.Bucket,
		Metrics: core.Metrics,
	}
	checks := map[string]handlers.Pinger{}

	// Database connection (optional: without it only synchronous transcription is served)
	db, err := app.OpenDatabase(ctx, cfg.Database)
	switch {
	case err != nil:
		slog.Warn("database unavailable, async jobs disabled", "error", err)
	case db == nil:
		slog.Info("DATABASE_URL not set, async jobs disabled")
	default:
		defer db.Close()
		checks["database"] = db
	}

	// Redis connection (optional)
	rdb := app.NewRedis(cfg.Redis)
	defer rdb.Close()
	if rc := app.NewResultCache(ctx, rdb, cfg.Redis.CacheTTL); rc != nil {
		deps.Cache = rc
		checks["redis"] = cache.NewCache(rdb)
	}

	if db != nil && cfg.Storage.SupabaseURL != "" {
		qc := queue.NewClient(cfg.Redis, cfg.Queue)
		defer qc.Close()
		deps.Store = transcription.NewPgStore(db)
		deps.Storage = storage.NewSupabaseStorage(cfg.Storage.SupabaseURL, cfg.Storage.SupabaseKey)
		deps.Queue = qc
	}

	router := api.NewRouter(cfg, api.Deps{
		Transcriptions: transcription.NewService(deps),
		Templates:      core.Templates,
		HealthChecks:   checks,
		Gatherer:       reg,
	})
	defer router.Close()

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router.Setup(),
		ReadHeaderTimeout: 15 * time.Second,
		// Synchronous transcription holds the connection for the whole pipeline run.
		WriteTimeout: 30 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("starting API server", "addr", cfg.Addr())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced shutdown", "error", err)
	}
	slog.Info("server stopped")
}
