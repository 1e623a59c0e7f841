package stt

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/nikhilbhutani/minutesai/internal/config"
)

// TranscriptionRequest holds the parameters for audio transcription.
type TranscriptionRequest struct {
	FilePath string `json:"file_path"`
	Language string `json:"language,omitempty"`
	Prompt   string `json:"prompt,omitempty"`
}

// TranscriptionResponse holds the transcription result.
type TranscriptionResponse struct {
	Text     string  `json:"text"`
	Language string  `json:"language"`
	Duration float64 `json:"duration"`
}

// STTProvider is the interface for speech-to-text backends.
type STTProvider interface {
	Transcribe(ctx context.Context, req TranscriptionRequest) (*TranscriptionResponse, error)
	Name() string
}

// StatusError is a non-2xx answer from a speech-to-text backend.
type StatusError struct {
	Backend    string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: transcription failed (status %d): %s", e.Backend, e.StatusCode, e.Body)
}

func (e *StatusError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests ||
		e.StatusCode == http.StatusRequestTimeout ||
		e.StatusCode >= 500
}

// New builds the backend selected by cfg.Backend.
func New(cfg config.STTConfig) (STTProvider, error) {
	switch strings.ToLower(cfg.Backend) {
	case "", "openai":
		return NewOpenAISTT(OpenAISTTConfig{
			APIKey:  cfg.OpenAIKey,
			BaseURL: cfg.OpenAIBaseURL,
			Model:   cfg.OpenAIModel,
		}), nil
	case "local":
		return NewLocalSTT(LocalSTTConfig{BaseURL: cfg.LocalBaseURL}), nil
	default:
		return nil, fmt.Errorf("unknown stt backend %q", cfg.Backend)
	}
}

// Transcriber adapts an STTProvider to the path-in, text-out shape the pipeline uses.
type Transcriber struct {
	provider STTProvider
	language string
}

func NewTranscriber(p STTProvider, language string) *Transcriber {
	return &Transcriber{provider: p, language: language}
}

// Transcribe returns the text of one audio file. Silence yields an empty string,
// not an error.
func (t *Transcriber) Transcribe(ctx context.Context, path string) (string, error) {
	resp, err := t.provider.Transcribe(ctx, TranscriptionRequest{FilePath: path, Language: t.language})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Text), nil
}
