// Package app wires configuration into the services shared by the binaries.
package app

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/nikhilbhutani/minutesai/internal/cache"
	"github.com/nikhilbhutani/minutesai/internal/config"
	"github.com/nikhilbhutani/minutesai/internal/database"
	"github.com/nikhilbhutani/minutesai/internal/llm"
	"github.com/nikhilbhutani/minutesai/internal/media"
	"github.com/nikhilbhutani/minutesai/internal/multimodal/stt"
	"github.com/nikhilbhutani/minutesai/internal/observability"
	"github.com/nikhilbhutani/minutesai/internal/pipeline"
	"github.com/nikhilbhutani/minutesai/internal/prompt"
	"github.com/nikhilbhutani/minutesai/internal/transcription"
	"github.com/nikhilbhutani/minutesai/migrations"
)

// NewLogger returns the JSON logger used by every binary.
func NewLogger(level string) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: ParseLevel(level)}))
}

func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Core is the pipeline with the collaborators it was built from.
type Core struct {
	Pipeline  *pipeline.Pipeline
	Templates *prompt.Library
	Metrics   *observability.Metrics
}

// NewCore builds the pipeline from configuration. A nil registerer disables metrics.
func NewCore(cfg *config.Config, reg prometheus.Registerer) (*Core, error) {
	templates, err := prompt.Load(cfg.Minutes.TemplatesFile)
	if err != nil {
		return nil, err
	}

	sttProvider, err := stt.New(cfg.STT)
	if err != nil {
		return nil, err
	}

	exec := media.NewExecutor()
	ffmpeg := media.NewFFmpeg(exec, cfg.Media, cfg.Pipeline.CanonicalExtension)
	gw := llm.NewGateway(cfg.LLM)

	var metrics *observability.Metrics
	if reg != nil {
		metrics = observability.NewMetrics(reg)
	}

	p := pipeline.New(cfg.Pipeline, cfg.Minutes, pipeline.Collaborators{
		Transcoder: ffmpeg,
		Probe:      media.NewFFprobe(exec, cfg.Media),
		STT:        stt.NewTranscriber(sttProvider, cfg.STT.Language),
		Generator:  llm.NewGenerator(gw, cfg.Minutes),
		Templates:  templates,
	}, pipeline.WithMetrics(metrics), pipeline.WithWindowStrategy(cfg.Minutes.WindowStrategy))

	slog.Info("pipeline ready",
		"stt_backend", cfg.STT.Backend,
		"minutes_model", cfg.Minutes.Model,
		"templates", len(templates.List()),
	)
	return &Core{Pipeline: p, Templates: templates, Metrics: metrics}, nil
}

// OpenDatabase connects and migrates. It returns a nil pool when DATABASE_URL is unset.
func OpenDatabase(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	if cfg.URL == "" {
		return nil, nil
	}
	db, err := database.NewPool(ctx, cfg)
	if err != nil {
		return nil, err
	}

	var fsys fs.FS = migrations.FS
	if cfg.MigrationsPath != "" {
		fsys = os.DirFS(cfg.MigrationsPath)
	}
	if err := database.RunMigrations(ctx, db, fsys); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return db, nil
}

func NewRedis(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// NewResultCache returns nil when Redis is unreachable so requests run uncached.
func NewResultCache(ctx context.Context, rdb *redis.Client, ttl time.Duration) transcription.ResultCache {
	c := cache.NewCache(rdb)
	if err := c.Ping(ctx); err != nil {
		slog.Warn("redis unavailable, running without result cache", "error", err)
		return nil
	}
	return cache.NewResultCache(c, ttl)
}
