package pipeline

import (
	"context"
	"fmt"
	"math"

	"golang.org/x/sync/errgroup"

	"github.com/nikhilbhutani/minutesai/internal/config"
	"github.com/nikhilbhutani/minutesai/internal/models"
	"github.com/nikhilbhutani/minutesai/internal/observability"
)

// ceilEpsilon absorbs float noise so that e.g. 100/50 does not round up to 3 chunks.
const ceilEpsilon = 1e-9

// PlanChunks computes the chunk plan for a file of sizeBytes. Files at or under the
// threshold are never split. duration is only consulted for files over the threshold;
// nil or non-positive durations fall back to cfg.FallbackDurationSeconds.
func PlanChunks(sizeBytes int64, duration *float64, cfg config.PipelineConfig) models.ChunkPlan {
	if sizeBytes <= cfg.SizeThresholdBytes {
		return models.ChunkPlan{ChunkCount: 1}
	}

	plan := models.ChunkPlan{}
	if duration == nil || math.IsNaN(*duration) || math.IsInf(*duration, 0) || *duration <= 0 {
		plan.TotalDurationSeconds = cfg.FallbackDurationSeconds
		plan.DurationFallback = true
	} else {
		plan.TotalDurationSeconds = *duration
	}

	proportional := plan.TotalDurationSeconds * float64(cfg.SizeThresholdBytes) / float64(sizeBytes)
	plan.ChunkDurationSeconds = math.Max(cfg.MinChunkSeconds, proportional)
	plan.ChunkCount = max(1, int(math.Ceil(plan.TotalDurationSeconds/plan.ChunkDurationSeconds-ceilEpsilon)))

	return plan
}

// Splitter turns normalized media into transcription units.
type Splitter struct {
	transcoder Transcoder
	probe      MediaProbe
	cfg        config.PipelineConfig
	metrics    *observability.Metrics
}

func NewSplitter(t Transcoder, p MediaProbe, cfg config.PipelineConfig, m *observability.Metrics) *Splitter {
	return &Splitter{transcoder: t, probe: p, cfg: cfg, metrics: m}
}

// Plan probes the media only when it is over the size threshold.
func (s *Splitter) Plan(ctx context.Context, media models.NormalizedMedia) (models.ChunkPlan, error) {
	if media.SizeBytes <= s.cfg.SizeThresholdBytes {
		return PlanChunks(media.SizeBytes, nil, s.cfg), nil
	}

	callCtx, cancel := callContext(ctx, s.cfg.CallTimeout)
	probed, err := s.probe.Probe(callCtx, media.Path)
	cancel()
	s.metrics.ObserveCall("media_probe", err)
	if err != nil {
		return models.ChunkPlan{}, fmt.Errorf("probe media: %w", err)
	}

	plan := PlanChunks(media.SizeBytes, probed.DurationSeconds, s.cfg)
	if plan.DurationFallback {
		logger(ctx).Warn("media duration unknown, using fallback",
			"path", media.Path,
			"fallback_seconds", plan.TotalDurationSeconds,
		)
	}
	return plan, nil
}

// Split plans and, for oversized media, extracts all chunks concurrently. On the first
// extraction failure the remaining extractions are cancelled; files already written stay
// in the request's working directory until it is removed.
func (s *Splitter) Split(ctx context.Context, media models.NormalizedMedia) (models.ChunkPlan, []models.AudioChunk, error) {
	plan, err := s.Plan(ctx, media)
	if err != nil {
		return plan, nil, err
	}

	if plan.Degenerate() {
		return plan, []models.AudioChunk{{Path: media.Path, Ordinal: 0}}, nil
	}

	logger(ctx).Info("splitting media",
		"size_bytes", media.SizeBytes,
		"duration_seconds", plan.TotalDurationSeconds,
		"chunk_seconds", plan.ChunkDurationSeconds,
		"chunks", plan.ChunkCount,
	)

	chunks := make([]models.AudioChunk, plan.ChunkCount)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrencyLimit(s.cfg.MaxConcurrency))

	for i := range chunks {
		start := float64(i) * plan.ChunkDurationSeconds
		g.Go(func() error {
			callCtx, cancel := callContext(gctx, s.cfg.CallTimeout)
			defer cancel()

			path, err := s.transcoder.ExtractSegment(callCtx, media.Path, start, plan.ChunkDurationSeconds)
			s.metrics.ObserveCall("transcoder", err)
			if err != nil {
				return fmt.Errorf("chunk %d: %w", i, err)
			}
			chunks[i] = models.AudioChunk{
				Path:            path,
				Ordinal:         i,
				StartSeconds:    start,
				DurationSeconds: plan.ChunkDurationSeconds,
				Extracted:       true,
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return plan, nil, err
	}
	return plan, chunks, nil
}
