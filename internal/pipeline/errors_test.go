package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
)

type statusError struct{ retryable bool }

func (e statusError) Error() string   { return "provider error" }
func (e statusError) Retryable() bool { return e.retryable }

type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

var _ net.Error = timeoutError{}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "canceled", err: context.Canceled, want: false},
		{name: "wrapped canceled with timeout text", err: fmt.Errorf("request timed out: %w", context.Canceled), want: false},
		{name: "deadline", err: fmt.Errorf("call: %w", context.DeadlineExceeded), want: true},
		{name: "provider says retry", err: fmt.Errorf("stt: %w", statusError{retryable: true}), want: true},
		{name: "provider says no", err: statusError{retryable: false}, want: false},
		{name: "network timeout", err: &net.OpError{Op: "dial", Err: timeoutError{}}, want: true},
		{name: "rate limit text", err: errors.New("429 Too Many Requests"), want: true},
		{name: "overloaded text", err: errors.New("Overloaded"), want: true},
		{name: "bad input", err: errors.New("invalid file format"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestError_ExposesKindAndCause(t *testing.T) {
	cause := errors.New("503 service unavailable")
	err := error(newError(KindTranscriptionFailed, StageTranscribe, "req-1", cause))

	assert.ErrorIs(t, err, ErrTranscriptionFailed)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrConversionFailed)
	assert.Equal(t, "transcribe: transcription failed: 503 service unavailable", err.Error())

	wrapped := fmt.Errorf("job 7: %w", err)
	pe, ok := AsError(wrapped)
	assert.True(t, ok)
	assert.Equal(t, "req-1", pe.RequestID)
	assert.True(t, pe.Retryable)
	assert.Equal(t, KindTranscriptionFailed, KindOf(wrapped))
}

func TestError_NoFileIsNeverRetryable(t *testing.T) {
	err := newError(KindNoFileProvided, "", "req", context.DeadlineExceeded)
	assert.False(t, err.Retryable)
	assert.Equal(t, "no file provided: context deadline exceeded", err.Error())
}

func TestKindOf_ForeignError(t *testing.T) {
	assert.Equal(t, Kind(""), KindOf(errors.New("boom")))
	assert.Equal(t, Kind(""), KindOf(nil))
}

func TestDescribe(t *testing.T) {
	assert.Equal(t, "No file was provided", Describe(newError(KindNoFileProvided, "", "", nil)))
	assert.Equal(t,
		"Error converting the file to a supported audio format: exit status 1",
		Describe(newError(KindConversionFailed, StageNormalize, "", errors.New("exit status 1"))),
	)
	assert.Equal(t, "internal error: disk full", Describe(errors.New("disk full")))
	assert.Equal(t, "No file was provided", Describe(fmt.Errorf("submit: %w", ErrNoFileProvided)))
	assert.Equal(t, ErrMinutesGenerationFailed, KindMinutesGenerationFailed.Err())
}
