package pipeline

import (
	"context"
	"fmt"
	"os"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/nikhilbhutani/minutesai/internal/config"
	"github.com/nikhilbhutani/minutesai/internal/models"
	"github.com/nikhilbhutani/minutesai/internal/observability"
)

// Transcriber fans chunks out to the speech-to-text collaborator and joins the results
// in ordinal order.
type Transcriber struct {
	stt     SpeechToText
	cfg     config.PipelineConfig
	metrics *observability.Metrics
}

func NewTranscriber(stt SpeechToText, cfg config.PipelineConfig, m *observability.Metrics) *Transcriber {
	return &Transcriber{stt: stt, cfg: cfg, metrics: m}
}

// TranscribeAll is all-or-nothing: the first failure cancels the in-flight siblings and
// no text is returned.
func (t *Transcriber) TranscribeAll(ctx context.Context, chunks []models.AudioChunk) (models.Transcript, error) {
	results := make([]models.TranscriptionResult, len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrencyLimit(t.cfg.MaxConcurrency))

	for i, chunk := range chunks {
		g.Go(func() error {
			text, err := t.transcribeOne(gctx, chunk)
			if err != nil {
				return fmt.Errorf("chunk %d: %w", chunk.Ordinal, err)
			}
			results[i] = models.TranscriptionResult{Ordinal: chunk.Ordinal, Text: text}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return models.Transcript{}, err
	}

	return Assemble(results), nil
}

func (t *Transcriber) transcribeOne(ctx context.Context, chunk models.AudioChunk) (string, error) {
	if chunk.Extracted {
		defer removeChunk(ctx, chunk)
	}

	callCtx, cancel := callContext(ctx, t.cfg.CallTimeout)
	defer cancel()

	text, err := t.stt.Transcribe(callCtx, chunk.Path)
	t.metrics.ObserveCall("speech_to_text", err)
	return text, err
}

// removeChunk is best effort; the working directory sweep catches anything left behind.
func removeChunk(ctx context.Context, chunk models.AudioChunk) {
	if err := os.Remove(chunk.Path); err != nil && !os.IsNotExist(err) {
		logger(ctx).Warn("failed to remove chunk file", "ordinal", chunk.Ordinal, "path", chunk.Path, "error", err)
	}
}

// Assemble joins results by ordinal with single spaces and trims the ends. The input
// order is irrelevant.
func Assemble(results []models.TranscriptionResult) models.Transcript {
	ordered := make([]string, len(results))
	for _, r := range results {
		if r.Ordinal >= 0 && r.Ordinal < len(ordered) {
			ordered[r.Ordinal] = r.Text
		}
	}
	return models.Transcript{Text: strings.TrimSpace(strings.Join(ordered, " "))}
}
