package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nikhilbhutani/minutesai/internal/app"
	"github.com/nikhilbhutani/minutesai/internal/config"
	"github.com/nikhilbhutani/minutesai/internal/queue"
	"github.com/nikhilbhutani/minutesai/internal/queue/workers"
	"github.com/nikhilbhutani/minutesai/internal/storage"
	"github.com/nikhilbhutani/minutesai/internal/transcription"
	"github.com/nikhilbhutani/minutesai/internal/webhook"
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
	if cfg.Database.URL == "" || cfg.Storage.SupabaseURL == "" {
		slog.Error("the worker needs DATABASE_URL and SUPABASE_URL")
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

	db, err := app.OpenDatabase(ctx, cfg.Database)
	if err != nil {
		slog.Error("database unavailable", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	qc := queue.NewClient(cfg.Redis, cfg.Queue)
	defer qc.Close()

	svc := transcription.NewService(transcription.Deps{
		Runner:  core.Pipeline,
		Store:   transcription.NewPgStore(db),
		Storage: storage.NewSupabaseStorage(cfg.Storage.SupabaseURL, cfg.Storage.SupabaseKey),
		Bucket:  cfg.Storage.Bucket,
		Queue:   qc,
		Metrics: core.Metrics,
	})

	registry := queue.NewHandlersRegistry()
	registry.Register(queue.TypeTranscriptionProcess, asynq.HandlerFunc(workers.NewTranscriptionWorker(svc).ProcessTask))
	registry.Register(queue.TypeWebhookDeliver, asynq.HandlerFunc(
		workers.NewWebhookWorker(webhook.NewDispatcher(cfg.Webhook.Secret, cfg.Webhook.Timeout)).ProcessTask,
	))

	if cfg.Queue.MetricsAddr != "" {
		metricsSrv := &http.Server{
			Addr:              cfg.Queue.MetricsAddr,
			Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server error", "error", err)
			}
		}()
		defer metricsSrv.Close()
	}

	srv := queue.NewServer(cfg.Redis, cfg.Queue)
	slog.Info("starting worker", "concurrency", cfg.Queue.Concurrency, "max_retry", cfg.Queue.MaxRetry)
	// Run blocks until SIGINT/SIGTERM and drains in-flight tasks.
	if err := srv.Run(registry.Mux()); err != nil {
		slog.Error("worker error", "error", err)
		os.Exit(1)
	}
}
