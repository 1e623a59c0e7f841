package workers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/nikhilbhutani/minutesai/internal/queue"
	"github.com/nikhilbhutani/minutesai/internal/transcription"
)

type JobProcessor interface {
	Process(ctx context.Context, jobID string, attempt transcription.Attempt) error
}

type TranscriptionWorker struct {
	jobs JobProcessor
}

func NewTranscriptionWorker(jobs JobProcessor) *TranscriptionWorker {
	return &TranscriptionWorker{jobs: jobs}
}

func (w *TranscriptionWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload queue.TranscriptionProcessPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w: %w", err, asynq.SkipRetry)
	}

	retried, _ := asynq.GetRetryCount(ctx)
	maxRetry, _ := asynq.GetMaxRetry(ctx)

	err := w.jobs.Process(ctx, payload.JobID, transcription.Attempt{Retried: retried, MaxRetry: maxRetry})
	if errors.Is(err, transcription.ErrPermanent) {
		return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
	}
	return err
}
