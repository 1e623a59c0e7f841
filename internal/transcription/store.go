package transcription

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nikhilbhutani/minutesai/internal/models"
)

var ErrJobNotFound = errors.New("job not found")

// JobStore persists asynchronous transcription jobs.
type JobStore interface {
	Create(ctx context.Context, job *models.TranscriptionJob) error
	Get(ctx context.Context, id uuid.UUID) (*models.TranscriptionJob, error)
	MarkProcessing(ctx context.Context, id uuid.UUID) error
	Complete(ctx context.Context, id uuid.UUID, out Outcome) error
	Fail(ctx context.Context, id uuid.UUID, f Failure, final bool) error
}

// Outcome is what a successful job stores.
type Outcome struct {
	Transcription string
	Minutes       string
	MinutesPath   string
	ChunkCount    int
	WindowCount   int
}

// Failure is recorded on every failed attempt; only a final one moves the job to failed.
type Failure struct {
	Kind      string
	Message   string
	Retryable bool
}

type PgStore struct {
	db *pgxpool.Pool
}

func NewPgStore(db *pgxpool.Pool) *PgStore {
	return &PgStore{db: db}
}

const jobColumns = `id, status, file_name, mime_type, size_bytes, storage_path, format_template,
	callback_url, transcription, minutes, minutes_path, chunk_count, window_count,
	error_kind, error_message, retryable, attempts, created_at, updated_at, completed_at`

func (s *PgStore) Create(ctx context.Context, job *models.TranscriptionJob) error {
	err := s.db.QueryRow(ctx,
		`INSERT INTO transcription_jobs (id, status, file_name, mime_type, size_bytes, storage_path, format_template, callback_url)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING created_at, updated_at`,
		job.ID, job.Status, job.FileName, job.MIMEType, job.SizeBytes, job.StoragePath, job.FormatTemplate, job.CallbackURL,
	).Scan(&job.CreatedAt, &job.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

func (s *PgStore) Get(ctx context.Context, id uuid.UUID) (*models.TranscriptionJob, error) {
	var j models.TranscriptionJob
	err := s.db.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM transcription_jobs WHERE id = $1`, id,
	).Scan(
		&j.ID, &j.Status, &j.FileName, &j.MIMEType, &j.SizeBytes, &j.StoragePath, &j.FormatTemplate,
		&j.CallbackURL, &j.Transcription, &j.Minutes, &j.MinutesPath, &j.ChunkCount, &j.WindowCount,
		&j.ErrorKind, &j.ErrorMessage, &j.Retryable, &j.Attempts, &j.CreatedAt, &j.UpdatedAt, &j.CompletedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return &j, nil
}

func (s *PgStore) MarkProcessing(ctx context.Context, id uuid.UUID) error {
	return s.exec(ctx,
		`UPDATE transcription_jobs
		 SET status = 'processing', attempts = attempts + 1, updated_at = now()
		 WHERE id = $1 AND status IN ('pending', 'processing')`,
		id,
	)
}

func (s *PgStore) Complete(ctx context.Context, id uuid.UUID, out Outcome) error {
	return s.exec(ctx,
		`UPDATE transcription_jobs
		 SET status = 'completed', transcription = $2, minutes = $3, minutes_path = $4,
		     chunk_count = $5, window_count = $6, error_kind = '', error_message = '', retryable = false,
		     updated_at = now(), completed_at = now()
		 WHERE id = $1`,
		id, out.Transcription, out.Minutes, out.MinutesPath, out.ChunkCount, out.WindowCount,
	)
}

func (s *PgStore) Fail(ctx context.Context, id uuid.UUID, f Failure, final bool) error {
	status := models.JobStatusProcessing
	var completedAt *time.Time
	if final {
		status = models.JobStatusFailed
		now := time.Now()
		completedAt = &now
	}
	return s.exec(ctx,
		`UPDATE transcription_jobs
		 SET status = $2, error_kind = $3, error_message = $4, retryable = $5,
		     updated_at = now(), completed_at = $6
		 WHERE id = $1`,
		id, status, f.Kind, f.Message, f.Retryable, completedAt,
	)
}

func (s *PgStore) exec(ctx context.Context, sql string, args ...any) error {
	tag, err := s.db.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrJobNotFound
	}
	return nil
}
