package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/minutesai/internal/config"
)

type scriptedProvider struct {
	name  string
	errs  []error
	calls int
	reqs  []ChatRequest
}

func (p *scriptedProvider) Name() string     { return p.name }
func (p *scriptedProvider) Models() []string { return []string{p.name + "-model"} }

func (p *scriptedProvider) ChatCompletion(_ context.Context, req ChatRequest) (*ChatResponse, error) {
	p.calls++
	p.reqs = append(p.reqs, req)
	if len(p.errs) > 0 {
		err := p.errs[0]
		p.errs = p.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	return &ChatResponse{Provider: p.name, Model: req.Model, Content: p.name + " says hi"}, nil
}

func testGateway(cfg config.LLMConfig, providers ...Provider) *gateway {
	g := newGateway(cfg, providers...)
	g.backoff = func(int) time.Duration { return 0 }
	return g
}

func TestGateway_RetriesTransientFailures(t *testing.T) {
	primary := &scriptedProvider{name: "openai", errs: []error{
		&ProviderError{Provider: "openai", StatusCode: http.StatusTooManyRequests, Err: errors.New("slow down")},
		&ProviderError{Provider: "openai", StatusCode: http.StatusBadGateway, Err: errors.New("bad gateway")},
	}}
	g := testGateway(config.LLMConfig{DefaultProvider: "openai", MaxRetries: 2}, primary)

	resp, err := g.Chat(context.Background(), ChatRequest{Model: "gpt-4o"})
	require.NoError(t, err)
	assert.Equal(t, "openai says hi", resp.Content)
	assert.Equal(t, 3, primary.calls)
}

func TestGateway_DoesNotRetryClientErrors(t *testing.T) {
	primary := &scriptedProvider{name: "openai", errs: []error{
		&ProviderError{Provider: "openai", StatusCode: http.StatusBadRequest, Err: errors.New("context length exceeded")},
	}}
	g := testGateway(config.LLMConfig{DefaultProvider: "openai", MaxRetries: 3}, primary)

	_, err := g.Chat(context.Background(), ChatRequest{Model: "gpt-4o"})
	require.Error(t, err)
	assert.Equal(t, 1, primary.calls)

	var pe *ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, http.StatusBadRequest, pe.StatusCode)
}

func TestGateway_NoRetriesByDefault(t *testing.T) {
	primary := &scriptedProvider{name: "openai", errs: []error{errors.New("connection reset by peer")}}
	g := testGateway(config.LLMConfig{DefaultProvider: "openai"}, primary)

	_, err := g.Chat(context.Background(), ChatRequest{})
	require.Error(t, err)
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, "connection reset by peer", err.Error())
}

func TestGateway_FallsBackToSecondaryProvider(t *testing.T) {
	primary := &scriptedProvider{name: "openai", errs: []error{
		&ProviderError{Provider: "openai", StatusCode: http.StatusServiceUnavailable, Err: errors.New("down")},
	}}
	secondary := &scriptedProvider{name: "anthropic"}
	g := testGateway(config.LLMConfig{DefaultProvider: "openai", FallbackProvider: "anthropic"}, primary, secondary)

	resp, err := g.Chat(context.Background(), ChatRequest{Model: "m"})
	require.NoError(t, err)
	assert.Equal(t, "anthropic", resp.Provider)
	assert.Equal(t, 1, secondary.calls)
}

func TestGateway_NoFallbackAfterCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	primary := &scriptedProvider{name: "openai", errs: []error{context.Canceled}}
	secondary := &scriptedProvider{name: "anthropic"}
	g := testGateway(config.LLMConfig{DefaultProvider: "openai", FallbackProvider: "anthropic", MaxRetries: 2}, primary, secondary)

	_, err := g.Chat(ctx, ChatRequest{})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, primary.calls)
	assert.Zero(t, secondary.calls)
}

func TestGateway_RequestedProviderWins(t *testing.T) {
	openaiP := &scriptedProvider{name: "openai"}
	ollamaP := &scriptedProvider{name: "ollama"}
	g := testGateway(config.LLMConfig{DefaultProvider: "openai"}, openaiP, ollamaP)

	resp, err := g.Chat(context.Background(), ChatRequest{Provider: "ollama"})
	require.NoError(t, err)
	assert.Equal(t, "ollama", resp.Provider)

	_, err = g.Chat(context.Background(), ChatRequest{Provider: "mistral"})
	assert.EqualError(t, err, `provider "mistral" not configured`)
}

func TestGateway_ListModelsIsSorted(t *testing.T) {
	g := testGateway(config.LLMConfig{}, &scriptedProvider{name: "openai"}, &scriptedProvider{name: "anthropic"})
	assert.Equal(t, []ModelInfo{
		{Provider: "anthropic", Model: "anthropic-model"},
		{Provider: "openai", Model: "openai-model"},
	}, g.ListModels())
}

func TestProviderError_Retryable(t *testing.T) {
	tests := []struct {
		status int
		want   bool
	}{
		{0, true},
		{http.StatusTooManyRequests, true},
		{http.StatusRequestTimeout, true},
		{http.StatusInternalServerError, true},
		{529, true},
		{http.StatusBadRequest, false},
		{http.StatusUnauthorized, false},
		{http.StatusNotFound, false},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.status), func(t *testing.T) {
			assert.Equal(t, tt.want, (&ProviderError{StatusCode: tt.status}).Retryable())
		})
	}
}

func TestWrapError_ReadsOpenAIStatus(t *testing.T) {
	err := wrapError("openai", fmt.Errorf("call: %w", &openai.APIError{HTTPStatusCode: 429, Message: "Rate limit reached"}))

	var pe *ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, 429, pe.StatusCode)
	assert.True(t, pe.Retryable())

	var apiErr *openai.APIError
	assert.ErrorAs(t, err, &apiErr)
	assert.Nil(t, wrapError("openai", nil))
}
