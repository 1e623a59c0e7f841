package llm

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/nikhilbhutani/minutesai/internal/config"
	"github.com/nikhilbhutani/minutesai/pkg/tokenizer"
)

// ErrEmptyCompletion is returned when a provider answers with no text.
var ErrEmptyCompletion = errors.New("empty completion")

// Generator produces minutes text with one fixed generation budget: every call uses
// the same provider, model, token limit and temperature.
type Generator struct {
	gateway     Gateway
	provider    string
	model       string
	maxTokens   int
	temperature float64
}

func NewGenerator(gw Gateway, cfg config.MinutesConfig) *Generator {
	return &Generator{
		gateway:     gw,
		provider:    cfg.Provider,
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
	}
}

// Complete sends one system instruction and one user message and returns the reply.
func (g *Generator) Complete(ctx context.Context, system, user string) (string, error) {
	resp, err := g.gateway.Chat(ctx, ChatRequest{
		Provider: g.provider,
		Model:    g.model,
		Messages: []Message{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature: g.temperature,
		MaxTokens:   g.maxTokens,
	})
	if err != nil {
		return "", err
	}

	estimated := false
	if resp.InputTokens == 0 && resp.OutputTokens == 0 {
		resp.InputTokens = tokenizer.CountMessages(system, user)
		resp.OutputTokens = tokenizer.CountTokens(resp.Content)
		estimated = true
	}
	slog.Debug("completion finished",
		"provider", resp.Provider,
		"model", resp.Model,
		"input_tokens", resp.InputTokens,
		"output_tokens", resp.OutputTokens,
		"tokens_estimated", estimated,
		"cost_usd", resp.CostUSD,
		"latency_ms", resp.LatencyMs,
	)

	text := strings.TrimSpace(resp.Content)
	if text == "" {
		return "", ErrEmptyCompletion
	}
	return text, nil
}
