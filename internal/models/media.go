package models

// UploadedMedia is one user-submitted file spooled into a request's working directory.
type UploadedMedia struct {
	Path              string `json:"path"`
	SizeBytes         int64  `json:"size_bytes"`
	DeclaredExtension string `json:"declared_extension,omitempty"`
	DeclaredMIMEType  string `json:"declared_mime_type,omitempty"`
}

// NormalizedMedia is the canonical-container version of an upload. When no conversion
// was needed it points at the uploaded file itself.
type NormalizedMedia struct {
	Path      string `json:"path"`
	SizeBytes int64  `json:"size_bytes"`
	Converted bool   `json:"converted"`
}

// ProbeResult is what the media probe reports. DurationSeconds is nil when the
// duration could not be determined.
type ProbeResult struct {
	DurationSeconds *float64 `json:"duration_seconds"`
	SizeBytes       int64    `json:"size_bytes"`
}

type ChunkPlan struct {
	TotalDurationSeconds float64 `json:"total_duration_seconds"`
	ChunkDurationSeconds float64 `json:"chunk_duration_seconds"`
	ChunkCount           int     `json:"chunk_count"`
	DurationFallback     bool    `json:"duration_fallback,omitempty"`
}

// Degenerate reports whether the whole file is transcribed as a single unit.
func (p ChunkPlan) Degenerate() bool {
	return p.ChunkCount == 1 && p.ChunkDurationSeconds == 0
}

// AudioChunk is one unit of transcription work. Extracted is false for the degenerate
// chunk, which is the normalized file rather than a slice of it.
type AudioChunk struct {
	Path            string  `json:"path"`
	Ordinal         int     `json:"ordinal"`
	StartSeconds    float64 `json:"start_seconds"`
	DurationSeconds float64 `json:"duration_seconds"`
	Extracted       bool    `json:"extracted"`
}

type TranscriptionResult struct {
	Ordinal int    `json:"ordinal"`
	Text    string `json:"text"`
}

type Transcript struct {
	Text string `json:"text"`
}

type TextWindow struct {
	Ordinal int    `json:"ordinal"`
	Text    string `json:"text"`
}

type MinutesDocument struct {
	Text        string `json:"text"`
	WindowCount int    `json:"window_count"`
}
