package pipeline

import (
	"context"

	"github.com/nikhilbhutani/minutesai/internal/models"
)

// Transcoder produces canonical-container audio files.
type Transcoder interface {
	Convert(ctx context.Context, inputPath string) (string, error)
	ExtractSegment(ctx context.Context, inputPath string, startSeconds, durationSeconds float64) (string, error)
}

// MediaProbe reports duration and size. DurationSeconds is nil when unknown.
type MediaProbe interface {
	Probe(ctx context.Context, path string) (models.ProbeResult, error)
}

type SpeechToText interface {
	Transcribe(ctx context.Context, audioPath string) (string, error)
}

type TextGenerator interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// TemplateResolver maps a caller's format template to the system instruction.
type TemplateResolver interface {
	Resolve(formatTemplate string) string
}
