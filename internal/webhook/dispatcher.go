package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const (
	HeaderEvent     = "X-Webhook-Event"
	HeaderSignature = "X-Webhook-Signature"
	HeaderID        = "X-Webhook-ID"
)

// Dispatcher POSTs signed event payloads to callback URLs. Retries are left to the
// caller (the webhook:deliver task).
type Dispatcher struct {
	secret     string
	httpClient *http.Client
}

type DeliveryRequest struct {
	ID      string
	URL     string
	Event   string
	Payload []byte
}

// StatusError is a non-2xx answer from the receiver.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("webhook receiver answered %d", e.StatusCode)
}

// Retryable is false for 4xx other than 408 and 429: the receiver rejected the event.
func (e *StatusError) Retryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests || e.StatusCode == http.StatusRequestTimeout
}

func NewDispatcher(secret string, timeout time.Duration) *Dispatcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Dispatcher{
		secret:     secret,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (d *Dispatcher) Deliver(ctx context.Context, req DeliveryRequest) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, req.URL, bytes.NewReader(req.Payload))
	if err != nil {
		return fmt.Errorf("create webhook request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set(HeaderEvent, req.Event)
	httpReq.Header.Set(HeaderID, req.ID)
	if d.secret != "" {
		httpReq.Header.Set(HeaderSignature, Sign(req.Payload, d.secret))
	}

	resp, err := d.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("deliver webhook: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode >= 300 {
		slog.Warn("webhook received non-success response", "status", resp.StatusCode, "delivery_id", req.ID, "event", req.Event)
		return &StatusError{StatusCode: resp.StatusCode}
	}

	slog.Info("webhook delivered", "delivery_id", req.ID, "event", req.Event, "status", resp.StatusCode)
	return nil
}

// Sign returns "sha256=<hex HMAC-SHA256 of payload>".
func Sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return fmt.Sprintf("sha256=%s", hex.EncodeToString(mac.Sum(nil)))
}

// Verify checks a signature header in constant time.
func Verify(payload []byte, secret, signature string) bool {
	return hmac.Equal([]byte(Sign(payload, secret)), []byte(signature))
}
