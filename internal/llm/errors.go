package llm

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/anthropics/anthropic-sdk-go"
	openai "github.com/sashabaranov/go-openai"
)

// ProviderError carries the HTTP status a provider answered with, when there was one.
type ProviderError struct {
	Provider   string
	StatusCode int
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: status %d: %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Retryable is true for throttling and server-side failures. Without a status the
// failure happened before a response arrived and is treated as transient.
func (e *ProviderError) Retryable() bool {
	switch {
	case e.StatusCode == 0:
		return true
	case e.StatusCode == http.StatusTooManyRequests, e.StatusCode == http.StatusRequestTimeout:
		return true
	case e.StatusCode >= 500:
		return true
	}
	return false
}

// wrapError attaches the provider name and, when the SDK exposes one, the status code.
func wrapError(provider string, err error) error {
	if err == nil {
		return nil
	}
	pe := &ProviderError{Provider: provider, Err: err}

	var oaAPI *openai.APIError
	var oaReq *openai.RequestError
	var anthErr *anthropic.Error
	switch {
	case errors.As(err, &oaAPI):
		pe.StatusCode = oaAPI.HTTPStatusCode
	case errors.As(err, &oaReq):
		pe.StatusCode = oaReq.HTTPStatusCode
	case errors.As(err, &anthErr):
		pe.StatusCode = anthErr.StatusCode
	}
	return pe
}
