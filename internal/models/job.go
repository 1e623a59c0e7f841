package models

import (
	"time"

	"github.com/google/uuid"
)

// TranscriptionJob is an asynchronously processed transcription request.
type TranscriptionJob struct {
	ID             uuid.UUID  `json:"id" db:"id"`
	Status         string     `json:"status" db:"status"`
	FileName       string     `json:"file_name" db:"file_name"`
	MIMEType       string     `json:"mime_type,omitempty" db:"mime_type"`
	SizeBytes      int64      `json:"size_bytes" db:"size_bytes"`
	StoragePath    string     `json:"-" db:"storage_path"`
	FormatTemplate string     `json:"format_template,omitempty" db:"format_template"`
	CallbackURL    string     `json:"callback_url,omitempty" db:"callback_url"`
	Transcription  string     `json:"transcription,omitempty" db:"transcription"`
	Minutes        string     `json:"minutes,omitempty" db:"minutes"`
	MinutesPath    string     `json:"minutes_path,omitempty" db:"minutes_path"`
	ChunkCount     int        `json:"chunk_count,omitempty" db:"chunk_count"`
	WindowCount    int        `json:"window_count,omitempty" db:"window_count"`
	ErrorKind      string     `json:"error_kind,omitempty" db:"error_kind"`
	ErrorMessage   string     `json:"error_message,omitempty" db:"error_message"`
	Retryable      bool       `json:"retryable,omitempty" db:"retryable"`
	Attempts       int        `json:"attempts" db:"attempts"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at" db:"updated_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty" db:"completed_at"`
}

const (
	JobStatusPending    = "pending"
	JobStatusProcessing = "processing"
	JobStatusCompleted  = "completed"
	JobStatusFailed     = "failed"
)

// Terminal reports whether the job will not change state again.
func (j *TranscriptionJob) Terminal() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}

const (
	EventTranscriptionCompleted = "transcription.completed"
	EventTranscriptionFailed    = "transcription.failed"
)
