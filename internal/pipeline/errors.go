package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// Kind classifies a pipeline failure by the stage that produced it.
type Kind string

const (
	KindNoFileProvided          Kind = "no_file_provided"
	KindConversionFailed        Kind = "conversion_failed"
	KindChunkExtractionFailed   Kind = "chunk_extraction_failed"
	KindTranscriptionFailed     Kind = "transcription_failed"
	KindMinutesGenerationFailed Kind = "minutes_generation_failed"
	// KindInternal covers local failures before any stage runs, such as the
	// working directory or the spooled upload.
	KindInternal Kind = "internal"
)

var (
	ErrNoFileProvided          = errors.New("no file provided")
	ErrConversionFailed        = errors.New("audio conversion failed")
	ErrChunkExtractionFailed   = errors.New("chunk extraction failed")
	ErrTranscriptionFailed     = errors.New("transcription failed")
	ErrMinutesGenerationFailed = errors.New("minutes generation failed")
	ErrInternal                = errors.New("internal error")
)

var sentinels = map[Kind]error{
	KindNoFileProvided:          ErrNoFileProvided,
	KindConversionFailed:        ErrConversionFailed,
	KindChunkExtractionFailed:   ErrChunkExtractionFailed,
	KindTranscriptionFailed:     ErrTranscriptionFailed,
	KindMinutesGenerationFailed: ErrMinutesGenerationFailed,
	KindInternal:                ErrInternal,
}

// Error is the single error type returned by Pipeline.Run. Both the kind sentinel and
// the underlying cause are reachable with errors.Is / errors.As.
type Error struct {
	Kind      Kind
	Stage     string
	RequestID string
	Retryable bool
	Cause     error
}

func (e *Error) Error() string {
	msg := sentinels[e.Kind].Error()
	if e.Stage != "" {
		msg = e.Stage + ": " + msg
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() []error {
	errs := []error{sentinels[e.Kind]}
	if e.Cause != nil {
		errs = append(errs, e.Cause)
	}
	return errs
}

func newError(kind Kind, stage, requestID string, cause error) *Error {
	return &Error{
		Kind:      kind,
		Stage:     stage,
		RequestID: requestID,
		Retryable: kind != KindNoFileProvided && IsRetryable(cause),
		Cause:     cause,
	}
}

// AsError extracts the *Error from err's chain.
func AsError(err error) (*Error, bool) {
	var pe *Error
	ok := errors.As(err, &pe)
	return pe, ok
}

// KindOf returns the failure kind of err, or "" when err did not come from the pipeline.
func KindOf(err error) Kind {
	if pe, ok := AsError(err); ok {
		return pe.Kind
	}
	return ""
}

var descriptions = map[Kind]string{
	KindNoFileProvided:          "No file was provided",
	KindConversionFailed:        "Error converting the file to a supported audio format",
	KindChunkExtractionFailed:   "Error splitting the audio into chunks",
	KindTranscriptionFailed:     "Error transcribing the audio",
	KindMinutesGenerationFailed: "Error generating meeting minutes",
	KindInternal:                "Internal error while handling the upload",
}

// Err returns the sentinel for k.
func (k Kind) Err() error {
	return sentinels[k]
}

// Describe is the caller-facing message: a generic description followed by the
// collaborator's own message.
func Describe(err error) string {
	pe, ok := AsError(err)
	if !ok {
		for kind, sentinel := range sentinels {
			if errors.Is(err, sentinel) {
				return descriptions[kind]
			}
		}
		return "internal error: " + err.Error()
	}
	generic := descriptions[pe.Kind]
	if pe.Cause == nil {
		return generic
	}
	return fmt.Sprintf("%s: %s", generic, pe.Cause.Error())
}

// retryableError is implemented by provider errors that know their HTTP status.
type retryableError interface {
	Retryable() bool
}

var retryablePatterns = []string{
	"rate limit",
	"too many requests",
	"timeout",
	"timed out",
	"temporarily unavailable",
	"service unavailable",
	"bad gateway",
	"connection reset",
	"connection refused",
	"overloaded",
}

// IsRetryable reports whether err looks transient: deadlines, network timeouts,
// provider 429/5xx responses. Cancellation is never retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var re retryableError
	if errors.As(err, &re) {
		return re.Retryable()
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	lower := strings.ToLower(err.Error())
	for _, p := range retryablePatterns {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}
