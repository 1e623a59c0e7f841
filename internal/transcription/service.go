// Package transcription serves transcription requests synchronously (with a result
// cache) and asynchronously as persisted jobs processed by the worker.
package transcription

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nikhilbhutani/minutesai/internal/cache"
	"github.com/nikhilbhutani/minutesai/internal/models"
	"github.com/nikhilbhutani/minutesai/internal/observability"
	"github.com/nikhilbhutani/minutesai/internal/pipeline"
	"github.com/nikhilbhutani/minutesai/internal/queue"
	"github.com/nikhilbhutani/minutesai/internal/storage"
)

var (
	// ErrPermanent marks a job failure that must not be retried.
	ErrPermanent = errors.New("permanent job failure")
	// ErrAsyncUnavailable is returned by Submit when job storage is not configured.
	ErrAsyncUnavailable = errors.New("asynchronous jobs are not configured")
)

type Runner interface {
	Run(ctx context.Context, in pipeline.Input, formatTemplate string) (*pipeline.Result, error)
	// Fingerprint changes whenever the minutes produced for formatTemplate could.
	Fingerprint(formatTemplate string) string
}

type Enqueuer interface {
	EnqueueTranscription(ctx context.Context, jobID string) error
	EnqueueWebhookDeliver(ctx context.Context, payload queue.WebhookDeliverPayload) error
}

type ResultCache interface {
	Get(ctx context.Context, key string) (*cache.Result, error)
	Put(ctx context.Context, key string, res *cache.Result) error
}

// Deps wires the service. Only Runner is required; the async path needs Store,
// Storage and Queue, and Cache is optional.
type Deps struct {
	Runner  Runner
	Store   JobStore
	Storage storage.Storage
	Bucket  string
	Queue   Enqueuer
	Cache   ResultCache
	Metrics *observability.Metrics
}

type Service struct {
	runner  Runner
	store   JobStore
	storage storage.Storage
	bucket  string
	queue   Enqueuer
	cache   ResultCache
	metrics *observability.Metrics
}

func NewService(d Deps) *Service {
	return &Service{
		runner:  d.Runner,
		store:   d.Store,
		storage: d.Storage,
		bucket:  d.Bucket,
		queue:   d.Queue,
		cache:   d.Cache,
		metrics: d.Metrics,
	}
}

// Upload is one file submitted by a client.
type Upload struct {
	Filename       string
	MIMEType       string
	Body           io.Reader
	SizeBytes      int64
	FormatTemplate string
	CallbackURL    string
	RequestID      string
}

// Attempt describes the asynq delivery a Process call belongs to.
type Attempt struct {
	Retried  int
	MaxRetry int
}

func (a Attempt) last() bool { return a.Retried >= a.MaxRetry }

// Transcribe runs the pipeline in the caller's request. When the body can be
// rewound, results are cached by content hash and the runner's fingerprint for
// the format template.
func (s *Service) Transcribe(ctx context.Context, up Upload) (*pipeline.Result, error) {
	key, err := s.cacheKey(up)
	if err != nil {
		return nil, err
	}
	if key != "" {
		hit, err := s.cache.Get(ctx, key)
		switch {
		case err == nil:
			slog.Info("serving cached transcription", "request_id", up.RequestID, "file", up.Filename)
			return &pipeline.Result{
				RequestID:     up.RequestID,
				Transcription: hit.Transcription,
				Minutes:       hit.Minutes,
				ChunkCount:    hit.ChunkCount,
				WindowCount:   hit.WindowCount,
				Cached:        true,
			}, nil
		case !errors.Is(err, cache.ErrMiss):
			slog.Warn("result cache lookup failed", "request_id", up.RequestID, "error", err)
		}
	}

	res, err := s.runner.Run(ctx, pipeline.Input{
		Filename:  up.Filename,
		MIMEType:  up.MIMEType,
		Body:      up.Body,
		RequestID: up.RequestID,
	}, up.FormatTemplate)
	if err != nil {
		return nil, err
	}

	if key != "" {
		entry := &cache.Result{
			Transcription: res.Transcription,
			Minutes:       res.Minutes,
			ChunkCount:    res.ChunkCount,
			WindowCount:   res.WindowCount,
		}
		if err := s.cache.Put(ctx, key, entry); err != nil {
			slog.Warn("result cache store failed", "request_id", res.RequestID, "error", err)
		}
	}
	return res, nil
}

func (s *Service) cacheKey(up Upload) (string, error) {
	if s.cache == nil {
		return "", nil
	}
	rs, ok := up.Body.(io.ReadSeeker)
	if !ok {
		return "", nil
	}
	h := sha256.New()
	n, err := io.Copy(h, rs)
	if _, seekErr := rs.Seek(0, io.SeekStart); seekErr != nil {
		return "", fmt.Errorf("rewind upload: %w", seekErr)
	}
	if err != nil || n == 0 {
		return "", nil
	}
	return cache.ResultKey(hex.EncodeToString(h.Sum(nil)), s.runner.Fingerprint(up.FormatTemplate)), nil
}

// Submit stores the upload, records a pending job and schedules it.
func (s *Service) Submit(ctx context.Context, up Upload) (*models.TranscriptionJob, error) {
	if s.store == nil || s.storage == nil || s.queue == nil {
		return nil, ErrAsyncUnavailable
	}
	if up.Body == nil || up.Filename == "" || up.SizeBytes == 0 {
		return nil, pipeline.ErrNoFileProvided
	}

	job := &models.TranscriptionJob{
		ID:             uuid.New(),
		Status:         models.JobStatusPending,
		FileName:       up.Filename,
		MIMEType:       up.MIMEType,
		SizeBytes:      up.SizeBytes,
		FormatTemplate: up.FormatTemplate,
		CallbackURL:    up.CallbackURL,
	}
	job.StoragePath = fmt.Sprintf("uploads/%s/%s", job.ID, objectName(up.Filename))

	contentType := up.MIMEType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	if err := s.storage.Upload(ctx, s.bucket, job.StoragePath, up.Body, contentType); err != nil {
		return nil, fmt.Errorf("store upload: %w", err)
	}

	if err := s.store.Create(ctx, job); err != nil {
		s.removeObject(ctx, job.StoragePath)
		return nil, err
	}

	if err := s.queue.EnqueueTranscription(ctx, job.ID.String()); err != nil {
		failure := Failure{Kind: "enqueue_failed", Message: err.Error(), Retryable: true}
		if ferr := s.store.Fail(ctx, job.ID, failure, true); ferr != nil {
			slog.Error("failed to record enqueue failure", "job_id", job.ID, "error", ferr)
		}
		s.removeObject(ctx, job.StoragePath)
		return nil, err
	}

	s.metrics.ObserveJob(models.JobStatusPending)
	slog.Info("transcription job submitted", "job_id", job.ID, "file", job.FileName, "size_bytes", job.SizeBytes)
	return job, nil
}

func (s *Service) Get(ctx context.Context, id string) (*models.TranscriptionJob, error) {
	if s.store == nil {
		return nil, ErrAsyncUnavailable
	}
	jobID, err := uuid.Parse(id)
	if err != nil {
		return nil, ErrJobNotFound
	}
	return s.store.Get(ctx, jobID)
}

// Process runs one delivery of a job. A nil return or an error wrapping ErrPermanent
// ends the job; any other error asks the queue to retry.
func (s *Service) Process(ctx context.Context, jobID string, attempt Attempt) error {
	id, err := uuid.Parse(jobID)
	if err != nil {
		return fmt.Errorf("%w: invalid job id %q", ErrPermanent, jobID)
	}
	log := slog.Default().With("job_id", jobID, "attempt", attempt.Retried+1)

	job, err := s.store.Get(ctx, id)
	if errors.Is(err, ErrJobNotFound) {
		return fmt.Errorf("%w: %w", ErrPermanent, err)
	}
	if err != nil {
		return err
	}
	if job.Terminal() {
		log.Info("job already finished, skipping", "status", job.Status)
		return nil
	}
	if err := s.store.MarkProcessing(ctx, id); err != nil {
		return err
	}
	log.Info("processing transcription job", "file", job.FileName)

	body, err := s.storage.Download(ctx, s.bucket, job.StoragePath)
	if errors.Is(err, storage.ErrNotFound) {
		return s.fail(ctx, job, Failure{Kind: "upload_missing", Message: "uploaded file is no longer available"}, true, err)
	}
	if err != nil {
		return s.fail(ctx, job, Failure{Kind: "storage_unavailable", Message: err.Error(), Retryable: true}, attempt.last(), err)
	}
	defer body.Close()

	res, err := s.runner.Run(ctx, pipeline.Input{
		Filename:  job.FileName,
		MIMEType:  job.MIMEType,
		Body:      body,
		RequestID: job.ID.String(),
	}, job.FormatTemplate)
	if err != nil {
		if ctx.Err() != nil {
			if !attempt.last() {
				// shutdown or task timeout; asynq owns the retry decision
				return err
			}
			return s.fail(ctx, job, Failure{Kind: "interrupted", Message: "job did not finish: " + ctx.Err().Error(), Retryable: true}, true, err)
		}
		kind := string(pipeline.KindOf(err))
		retryable := pipeline.IsRetryable(err)
		if pe, ok := pipeline.AsError(err); ok {
			retryable = pe.Retryable
		}
		if kind == "" {
			kind = "internal"
		}
		return s.fail(ctx, job, Failure{Kind: kind, Message: pipeline.Describe(err), Retryable: retryable}, !retryable || attempt.last(), err)
	}

	minutesPath := fmt.Sprintf("minutes/%s.md", job.ID)
	if err := s.storage.Upload(ctx, s.bucket, minutesPath, strings.NewReader(res.Minutes), "text/markdown; charset=utf-8"); err != nil {
		return s.fail(ctx, job, Failure{Kind: "storage_unavailable", Message: err.Error(), Retryable: true}, attempt.last(), err)
	}

	out := Outcome{
		Transcription: res.Transcription,
		Minutes:       res.Minutes,
		MinutesPath:   minutesPath,
		ChunkCount:    res.ChunkCount,
		WindowCount:   res.WindowCount,
	}
	if err := s.store.Complete(ctx, id, out); err != nil {
		return err
	}
	s.removeObject(ctx, job.StoragePath)

	job.Status = models.JobStatusCompleted
	job.Transcription, job.Minutes, job.MinutesPath = out.Transcription, out.Minutes, out.MinutesPath
	s.notify(ctx, job, models.EventTranscriptionCompleted)
	s.metrics.ObserveJob(models.JobStatusCompleted)

	log.Info("transcription job completed", "chunks", res.ChunkCount, "windows", res.WindowCount, "elapsed_ms", res.Elapsed.Milliseconds())
	return nil
}

// finalizeTimeout bounds the bookkeeping done after the task context is gone.
const finalizeTimeout = 15 * time.Second

// fail records the failure. A final failure also notifies the callback and returns
// an ErrPermanent error so the queue stops retrying. It runs on a context detached
// from the task's, which may already be cancelled.
func (s *Service) fail(ctx context.Context, job *models.TranscriptionJob, f Failure, final bool, cause error) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalizeTimeout)
	defer cancel()

	if err := s.store.Fail(ctx, job.ID, f, final); err != nil {
		slog.Error("failed to record job failure", "job_id", job.ID, "error", err)
	}
	if !final {
		slog.Warn("transcription job attempt failed, will retry", "job_id", job.ID, "kind", f.Kind, "error", cause)
		return cause
	}

	slog.Error("transcription job failed", "job_id", job.ID, "kind", f.Kind, "retryable", f.Retryable, "error", cause)
	s.removeObject(ctx, job.StoragePath)

	job.Status = models.JobStatusFailed
	job.ErrorKind, job.ErrorMessage, job.Retryable = f.Kind, f.Message, f.Retryable
	s.notify(ctx, job, models.EventTranscriptionFailed)
	s.metrics.ObserveJob(models.JobStatusFailed)

	return fmt.Errorf("%w: %w", ErrPermanent, cause)
}

// Event is the body POSTed to a job's callback URL.
type Event struct {
	ID            string      `json:"id"`
	Event         string      `json:"event"`
	JobID         string      `json:"job_id"`
	Status        string      `json:"status"`
	FileName      string      `json:"file_name"`
	Transcription string      `json:"transcription,omitempty"`
	Minutes       string      `json:"minutes,omitempty"`
	MinutesPath   string      `json:"minutes_path,omitempty"`
	Error         *EventError `json:"error,omitempty"`
	Timestamp     time.Time   `json:"timestamp"`
}

type EventError struct {
	Kind      string `json:"kind"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

func (s *Service) notify(ctx context.Context, job *models.TranscriptionJob, event string) {
	if job.CallbackURL == "" {
		return
	}

	evt := Event{
		ID:            uuid.NewString(),
		Event:         event,
		JobID:         job.ID.String(),
		Status:        job.Status,
		FileName:      job.FileName,
		Transcription: job.Transcription,
		Minutes:       job.Minutes,
		MinutesPath:   job.MinutesPath,
		Timestamp:     time.Now().UTC(),
	}
	if event == models.EventTranscriptionFailed {
		evt.Error = &EventError{Kind: job.ErrorKind, Message: job.ErrorMessage, Retryable: job.Retryable}
	}

	data, err := json.Marshal(evt)
	if err != nil {
		slog.Error("failed to encode webhook event", "job_id", job.ID, "error", err)
		return
	}
	err = s.queue.EnqueueWebhookDeliver(ctx, queue.WebhookDeliverPayload{
		DeliveryID: evt.ID,
		JobID:      evt.JobID,
		URL:        job.CallbackURL,
		Event:      event,
		Payload:    string(data),
	})
	if err != nil {
		slog.Error("failed to enqueue webhook", "job_id", job.ID, "event", event, "error", err)
	}
}

func (s *Service) removeObject(ctx context.Context, objectPath string) {
	if err := s.storage.Delete(ctx, s.bucket, objectPath); err != nil {
		slog.Warn("failed to delete stored object", "path", objectPath, "error", err)
	}
}

// objectName keeps the base name of a client filename, restricted to characters
// that are safe in an object key.
func objectName(filename string) string {
	base := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	var b strings.Builder
	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	name := strings.Trim(b.String(), ".")
	if name == "" {
		return "upload"
	}
	return name
}
