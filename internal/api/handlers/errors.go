package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/nikhilbhutani/minutesai/internal/pipeline"
	"github.com/nikhilbhutani/minutesai/internal/transcription"
)

// ErrorResponse is the body of every failed API call.
type ErrorResponse struct {
	Error     string `json:"error"`
	Detail    string `json:"detail,omitempty"`
	Kind      string `json:"kind,omitempty"`
	Retryable bool   `json:"retryable"`
	RequestID string `json:"request_id,omitempty"`
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	resp := ErrorResponse{
		Error:     "internal error",
		Detail:    pipeline.Describe(err),
		RequestID: chimiddleware.GetReqID(r.Context()),
	}
	status := http.StatusInternalServerError

	if pe, ok := pipeline.AsError(err); ok {
		resp.Error = pe.Kind.Err().Error()
		resp.Kind = string(pe.Kind)
		resp.Retryable = pe.Retryable
		if pe.RequestID != "" {
			resp.RequestID = pe.RequestID
		}
	}

	var maxBytes *http.MaxBytesError
	switch {
	case errors.Is(err, pipeline.ErrNoFileProvided):
		status = http.StatusBadRequest
		resp.Error = pipeline.ErrNoFileProvided.Error()
		resp.Kind = string(pipeline.KindNoFileProvided)
	case errors.As(err, &maxBytes):
		status = http.StatusRequestEntityTooLarge
		resp.Error = "upload too large"
		resp.Detail = err.Error()
	case errors.Is(err, transcription.ErrJobNotFound):
		status = http.StatusNotFound
		resp.Error = "job not found"
		resp.Detail = ""
	case errors.Is(err, transcription.ErrAsyncUnavailable):
		status = http.StatusServiceUnavailable
		resp.Error = err.Error()
		resp.Detail = ""
	}

	if status >= http.StatusInternalServerError {
		slog.Error("request failed", "request_id", resp.RequestID, "kind", resp.Kind, "error", err)
	}
	writeJSON(w, status, resp)
}

func badRequest(w http.ResponseWriter, r *http.Request, msg string) {
	writeJSON(w, http.StatusBadRequest, ErrorResponse{
		Error:     msg,
		RequestID: chimiddleware.GetReqID(r.Context()),
	})
}
