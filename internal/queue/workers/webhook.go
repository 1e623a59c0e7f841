package workers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/nikhilbhutani/minutesai/internal/queue"
	"github.com/nikhilbhutani/minutesai/internal/webhook"
)

type Deliverer interface {
	Deliver(ctx context.Context, req webhook.DeliveryRequest) error
}

type WebhookWorker struct {
	dispatcher Deliverer
}

func NewWebhookWorker(d Deliverer) *WebhookWorker {
	return &WebhookWorker{dispatcher: d}
}

func (w *WebhookWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload queue.WebhookDeliverPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w: %w", err, asynq.SkipRetry)
	}

	err := w.dispatcher.Deliver(ctx, webhook.DeliveryRequest{
		ID:      payload.DeliveryID,
		URL:     payload.URL,
		Event:   payload.Event,
		Payload: []byte(payload.Payload),
	})
	if err == nil {
		slog.Info("webhook delivered", "job_id", payload.JobID, "event", payload.Event)
		return nil
	}

	var se *webhook.StatusError
	if errors.As(err, &se) && !se.Retryable() {
		slog.Warn("webhook rejected by receiver", "job_id", payload.JobID, "status", se.StatusCode)
		return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
	}
	slog.Warn("webhook delivery failed", "job_id", payload.JobID, "event", payload.Event, "error", err)
	return err
}
