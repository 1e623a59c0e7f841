package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/nikhilbhutani/minutesai/internal/models"
	"github.com/nikhilbhutani/minutesai/internal/pipeline"
	"github.com/nikhilbhutani/minutesai/internal/transcription"
)

// multipartMemory is how much of a form is held in memory before parts spill to disk.
const multipartMemory = 32 << 20

type TranscriptionService interface {
	Transcribe(ctx context.Context, up transcription.Upload) (*pipeline.Result, error)
	Submit(ctx context.Context, up transcription.Upload) (*models.TranscriptionJob, error)
	Get(ctx context.Context, id string) (*models.TranscriptionJob, error)
}

type TranscriptionHandler struct {
	svc            TranscriptionService
	maxUploadBytes int64
}

func NewTranscriptionHandler(svc TranscriptionService, maxUploadBytes int64) *TranscriptionHandler {
	return &TranscriptionHandler{svc: svc, maxUploadBytes: maxUploadBytes}
}

// Transcribe runs the pipeline within the request and returns the transcript and minutes.
func (h *TranscriptionHandler) Transcribe(w http.ResponseWriter, r *http.Request) {
	up, cleanup, err := h.readUpload(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer cleanup()

	res, err := h.svc.Transcribe(r.Context(), up)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// SubmitJob stores the upload and returns 202 with the pending job.
func (h *TranscriptionHandler) SubmitJob(w http.ResponseWriter, r *http.Request) {
	up, cleanup, err := h.readUpload(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer cleanup()

	if up.CallbackURL != "" {
		if u, err := url.Parse(up.CallbackURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			badRequest(w, r, "callback_url must be an absolute http(s) URL")
			return
		}
	}

	job, err := h.svc.Submit(r.Context(), up)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/v1/jobs/"+job.ID.String())
	writeJSON(w, http.StatusAccepted, job)
}

func (h *TranscriptionHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	job, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// readUpload parses the multipart form. A request without a usable "file" part
// yields ErrNoFileProvided.
func (h *TranscriptionHandler) readUpload(w http.ResponseWriter, r *http.Request) (transcription.Upload, func(), error) {
	noop := func() {}
	if h.maxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			return transcription.Upload{}, noop, err
		}
		return transcription.Upload{}, noop, pipeline.ErrNoFileProvided
	}
	cleanup := func() { r.MultipartForm.RemoveAll() }

	file, header, err := r.FormFile("file")
	if err != nil {
		return transcription.Upload{}, cleanup, pipeline.ErrNoFileProvided
	}
	if header.Size == 0 {
		file.Close()
		return transcription.Upload{}, cleanup, pipeline.ErrNoFileProvided
	}

	up := transcription.Upload{
		Filename:       header.Filename,
		MIMEType:       header.Header.Get("Content-Type"),
		Body:           file,
		SizeBytes:      header.Size,
		FormatTemplate: strings.TrimSpace(r.FormValue("format_template")),
		CallbackURL:    strings.TrimSpace(r.FormValue("callback_url")),
		RequestID:      chimiddleware.GetReqID(r.Context()),
	}
	return up, func() {
		file.Close()
		cleanup()
	}, nil
}
