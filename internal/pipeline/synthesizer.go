package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/nikhilbhutani/minutesai/internal/config"
	"github.com/nikhilbhutani/minutesai/internal/models"
	"github.com/nikhilbhutani/minutesai/internal/observability"
	"github.com/nikhilbhutani/minutesai/pkg/chunker"
)

// PartialSeparator joins per-window minutes before the combine pass.
const PartialSeparator = "\n\n"

// Synthesizer turns a transcript into minutes: one call for short transcripts,
// map-then-combine for long ones.
type Synthesizer struct {
	gen       TextGenerator
	templates TemplateResolver
	cfg       config.MinutesConfig
	pipe      config.PipelineConfig
	strategy  string
	metrics   *observability.Metrics
}

func NewSynthesizer(gen TextGenerator, templates TemplateResolver, cfg config.MinutesConfig, pipe config.PipelineConfig, m *observability.Metrics) *Synthesizer {
	return &Synthesizer{
		gen:       gen,
		templates: templates,
		cfg:       cfg,
		pipe:      pipe,
		strategy:  chunker.StrategyFixed,
		metrics:   m,
	}
}

// WithWindowStrategy switches how long transcripts are cut. Only chunker.StrategyFixed
// guarantees windows of exactly the threshold length.
func (s *Synthesizer) WithWindowStrategy(strategy string) *Synthesizer {
	if strategy != "" {
		s.strategy = strategy
	}
	return s
}

func (s *Synthesizer) instruction(formatTemplate string) string {
	if s.templates != nil {
		if resolved := s.templates.Resolve(formatTemplate); resolved != "" {
			return resolved
		}
	} else if strings.TrimSpace(formatTemplate) != "" {
		return formatTemplate
	}
	if s.cfg.DefaultInstruction != "" {
		return s.cfg.DefaultInstruction
	}
	return config.DefaultInstruction
}

func (s *Synthesizer) combineInstruction() string {
	if s.cfg.CombineInstruction != "" {
		return s.cfg.CombineInstruction
	}
	return config.DefaultCombineInstruction
}

// Fingerprint identifies everything besides the transcript that shapes the minutes
// for formatTemplate: the generation budget, the window settings and both resolved
// instructions. Cached results are only valid for an equal fingerprint.
func (s *Synthesizer) Fingerprint(formatTemplate string) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s\x00%s\x00%d\x00%g\x00%d\x00%s\x00",
		s.cfg.Provider, s.cfg.Model, s.cfg.MaxTokens, s.cfg.Temperature, s.cfg.CharThreshold, s.strategy)
	fmt.Fprintf(h, "%s\x00%s", s.instruction(formatTemplate), s.combineInstruction())
	return hex.EncodeToString(h.Sum(nil)[:8])
}

// Windows cuts the transcript for the long path. It returns nil when the transcript is
// short enough for a single pass.
func (s *Synthesizer) Windows(text string) []models.TextWindow {
	if utf8.RuneCountInString(text) <= s.cfg.CharThreshold {
		return nil
	}
	parts := chunker.Split(text, s.cfg.CharThreshold, s.strategy)
	windows := make([]models.TextWindow, len(parts))
	for i, p := range parts {
		windows[i] = models.TextWindow{Ordinal: p.Index, Text: p.Text}
	}
	return windows
}

func (s *Synthesizer) Synthesize(ctx context.Context, transcript models.Transcript, formatTemplate string) (models.MinutesDocument, error) {
	system := s.instruction(formatTemplate)

	windows := s.Windows(transcript.Text)
	if windows == nil {
		text, err := s.complete(ctx, system, transcript.Text)
		if err != nil {
			return models.MinutesDocument{}, err
		}
		return models.MinutesDocument{Text: text, WindowCount: 1}, nil
	}

	logger(ctx).Info("transcript over threshold, summarizing in windows",
		"chars", utf8.RuneCountInString(transcript.Text),
		"threshold", s.cfg.CharThreshold,
		"windows", len(windows),
	)

	partials := make([]string, len(windows))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrencyLimit(s.pipe.MaxConcurrency))

	for _, w := range windows {
		g.Go(func() error {
			text, err := s.complete(gctx, system, w.Text)
			if err != nil {
				return fmt.Errorf("window %d: %w", w.Ordinal, err)
			}
			partials[w.Ordinal] = text
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return models.MinutesDocument{}, err
	}

	combined, err := s.complete(ctx, s.combineInstruction(), strings.Join(partials, PartialSeparator))
	if err != nil {
		return models.MinutesDocument{}, fmt.Errorf("combine: %w", err)
	}
	return models.MinutesDocument{Text: combined, WindowCount: len(windows)}, nil
}

func (s *Synthesizer) complete(ctx context.Context, system, user string) (string, error) {
	callCtx, cancel := callContext(ctx, s.pipe.CallTimeout)
	defer cancel()

	text, err := s.gen.Complete(callCtx, system, user)
	s.metrics.ObserveCall("text_generation", err)
	return text, err
}
