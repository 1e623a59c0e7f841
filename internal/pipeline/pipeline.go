// Package pipeline turns an uploaded recording into a transcript and meeting minutes.
//
// A request flows through four stages, strictly in order:
//
//	normalize -> split -> transcribe -> synthesize
//
// Concurrency exists only inside split (segment extraction), transcribe (one call per
// chunk) and synthesize (one call per transcript window). Reassembly is always by
// ordinal, never by completion order. Every request owns a private working directory
// that is removed when the request ends, whatever the outcome.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/nikhilbhutani/minutesai/internal/config"
	"github.com/nikhilbhutani/minutesai/internal/models"
	"github.com/nikhilbhutani/minutesai/internal/observability"
)

const (
	StageNormalize  = "normalize"
	StageSplit      = "split"
	StageTranscribe = "transcribe"
	StageSynthesize = "synthesize"
	StageSpool      = "spool"
)

// Collaborators are the external services the pipeline drives.
type Collaborators struct {
	Transcoder Transcoder
	Probe      MediaProbe
	STT        SpeechToText
	Generator  TextGenerator
	Templates  TemplateResolver
}

// Input is one uploaded file. Body is read once and spooled into the request's
// working directory.
type Input struct {
	Filename  string
	MIMEType  string
	Body      io.Reader
	RequestID string
}

type Result struct {
	RequestID     string        `json:"request_id"`
	Transcription string        `json:"transcription"`
	Minutes       string        `json:"minutes"`
	ChunkCount    int           `json:"chunk_count"`
	WindowCount   int           `json:"window_count"`
	Converted     bool          `json:"converted"`
	Cached        bool          `json:"cached,omitempty"`
	Elapsed       time.Duration `json:"-"`
}

type Pipeline struct {
	cfg         config.PipelineConfig
	normalizer  *Normalizer
	splitter    *Splitter
	transcriber *Transcriber
	synthesizer *Synthesizer
	metrics     *observability.Metrics
	tracer      *observability.Tracer
}

type Option func(*Pipeline)

func WithMetrics(m *observability.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

func WithTracer(t *observability.Tracer) Option {
	return func(p *Pipeline) { p.tracer = t }
}

// WithWindowStrategy selects how long transcripts are cut (see pkg/chunker).
func WithWindowStrategy(strategy string) Option {
	return func(p *Pipeline) { p.synthesizer.WithWindowStrategy(strategy) }
}

func New(cfg config.PipelineConfig, minutes config.MinutesConfig, c Collaborators, opts ...Option) *Pipeline {
	p := &Pipeline{
		cfg:    cfg,
		tracer: observability.NewTracer(),
	}
	p.normalizer = NewNormalizer(c.Transcoder, cfg, nil)
	p.splitter = NewSplitter(c.Transcoder, c.Probe, cfg, nil)
	p.transcriber = NewTranscriber(c.STT, cfg, nil)
	p.synthesizer = NewSynthesizer(c.Generator, c.Templates, minutes, cfg, nil)

	for _, opt := range opts {
		opt(p)
	}

	p.normalizer.metrics = p.metrics
	p.splitter.metrics = p.metrics
	p.transcriber.metrics = p.metrics
	p.synthesizer.metrics = p.metrics
	return p
}

// Run executes the whole pipeline for one upload. On failure the returned error is a
// *Error and no partial transcript or minutes are returned.
func (p *Pipeline) Run(ctx context.Context, in Input, formatTemplate string) (result *Result, err error) {
	started := time.Now()

	reqID := in.RequestID
	if reqID == "" {
		reqID = RequestIDFromContext(ctx)
	}
	if reqID == "" {
		reqID = uuid.NewString()
	}
	ctx = WithRequestID(ctx, reqID)
	log := logger(ctx)

	ctx, span := p.tracer.StartRequest(ctx, reqID)
	defer func() {
		kind := KindOf(err)
		if err != nil {
			p.metrics.ObserveRequest("error", string(kind))
			pe, _ := AsError(err)
			retryable := pe != nil && pe.Retryable
			observability.EndSpan(span, err,
				attribute.String(observability.AttrErrorKind, string(kind)),
				attribute.Bool(observability.AttrRetryable, retryable),
			)
			log.Error("transcription request failed", "kind", kind, "retryable", retryable, "error", err)
			return
		}
		p.metrics.ObserveRequest("success", "")
		observability.EndSpan(span, nil)
	}()

	if in.Body == nil || in.Filename == "" {
		return nil, newError(KindNoFileProvided, "", reqID, nil)
	}

	workDir, err := os.MkdirTemp(p.cfg.WorkDir, "minutes-*")
	if err != nil {
		return nil, newError(KindInternal, StageSpool, reqID, fmt.Errorf("create working directory: %w", err))
	}
	defer func() {
		if rmErr := os.RemoveAll(workDir); rmErr != nil {
			log.Warn("failed to remove working directory", "dir", workDir, "error", rmErr)
		}
	}()

	upload, err := spool(workDir, in)
	if err != nil {
		return nil, newError(KindInternal, StageSpool, reqID, err)
	}
	if upload.SizeBytes == 0 {
		return nil, newError(KindNoFileProvided, "", reqID, errors.New("uploaded file is empty"))
	}

	log.Info("transcription request started",
		"file", in.Filename,
		"mime_type", in.MIMEType,
		"size_bytes", upload.SizeBytes,
	)

	var normalized models.NormalizedMedia
	if err := p.stage(ctx, StageNormalize, KindConversionFailed, func(ctx context.Context) (err error) {
		normalized, err = p.normalizer.Normalize(ctx, upload)
		return err
	}); err != nil {
		return nil, err
	}

	var chunks []models.AudioChunk
	if err := p.stage(ctx, StageSplit, KindChunkExtractionFailed, func(ctx context.Context) (err error) {
		_, chunks, err = p.splitter.Split(ctx, normalized)
		return err
	}); err != nil {
		return nil, err
	}
	p.metrics.ObserveChunks(len(chunks))

	var transcript models.Transcript
	if err := p.stage(ctx, StageTranscribe, KindTranscriptionFailed, func(ctx context.Context) (err error) {
		transcript, err = p.transcriber.TranscribeAll(ctx, chunks)
		return err
	}); err != nil {
		return nil, err
	}

	var minutes models.MinutesDocument
	if err := p.stage(ctx, StageSynthesize, KindMinutesGenerationFailed, func(ctx context.Context) (err error) {
		minutes, err = p.synthesizer.Synthesize(ctx, transcript, formatTemplate)
		return err
	}); err != nil {
		return nil, err
	}
	p.metrics.ObserveWindows(minutes.WindowCount)

	result = &Result{
		RequestID:     reqID,
		Transcription: transcript.Text,
		Minutes:       minutes.Text,
		ChunkCount:    len(chunks),
		WindowCount:   minutes.WindowCount,
		Converted:     normalized.Converted,
		Elapsed:       time.Since(started),
	}

	log.Info("transcription request completed",
		"chunks", result.ChunkCount,
		"windows", result.WindowCount,
		"transcript_chars", len(result.Transcription),
		"elapsed_ms", result.Elapsed.Milliseconds(),
	)
	return result, nil
}

// stage runs fn under a span and wraps any failure as kind.
// Fingerprint identifies the minutes configuration a request with formatTemplate
// would run under.
func (p *Pipeline) Fingerprint(formatTemplate string) string {
	return p.synthesizer.Fingerprint(formatTemplate)
}

func (p *Pipeline) stage(ctx context.Context, name string, kind Kind, fn func(context.Context) error) error {
	start := time.Now()
	ctx, span := p.tracer.StartStage(ctx, name)

	err := fn(ctx)
	p.metrics.ObserveStage(name, start, err)
	if err != nil {
		pe := newError(kind, name, RequestIDFromContext(ctx), err)
		observability.EndSpan(span, pe, attribute.String(observability.AttrErrorKind, string(kind)))
		return pe
	}
	observability.EndSpan(span, nil)
	return nil
}

var safeExt = regexp.MustCompile(`^\.[A-Za-z0-9]{1,10}$`)

// spool copies the upload into workDir. The stored name keeps the declared extension
// only when it is a plain one.
func spool(workDir string, in Input) (models.UploadedMedia, error) {
	ext := filepath.Ext(in.Filename)
	name := "upload"
	if safeExt.MatchString(ext) {
		name += ext
	}
	path := filepath.Join(workDir, name)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return models.UploadedMedia{}, fmt.Errorf("create upload file: %w", err)
	}
	n, err := io.Copy(f, in.Body)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return models.UploadedMedia{}, fmt.Errorf("store upload: %w", err)
	}

	return models.UploadedMedia{
		Path:              path,
		SizeBytes:         n,
		DeclaredExtension: ext,
		DeclaredMIMEType:  in.MIMEType,
	}, nil
}

func callContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

func concurrencyLimit(n int) int {
	return max(n, 1)
}
