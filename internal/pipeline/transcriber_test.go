package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/minutesai/internal/models"
)

func makeChunks(t *testing.T, n int, extracted bool) []models.AudioChunk {
	t.Helper()
	dir := t.TempDir()
	chunks := make([]models.AudioChunk, n)
	for i := range chunks {
		path := filepath.Join(dir, fmt.Sprintf("chunk-%02d.mp3", i))
		require.NoError(t, os.WriteFile(path, []byte("x"), 0o600))
		chunks[i] = models.AudioChunk{Path: path, Ordinal: i, Extracted: extracted}
	}
	return chunks
}

func textByChunkName(path string) (string, error) {
	n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(filepath.Base(path), "chunk-"), ".mp3"))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("t%d", n), nil
}

func TestTranscribeAll_OrderIndependentOfLatency(t *testing.T) {
	pipe, _ := testConfig(t)
	pipe.MaxConcurrency = 8

	want := make([]string, 20)
	for i := range want {
		want[i] = fmt.Sprintf("t%d", i)
	}

	for run := 0; run < 5; run++ {
		stt := &fakeSTT{text: textByChunkName, maxDelay: 15 * time.Millisecond}
		transcript, err := NewTranscriber(stt, pipe, nil).TranscribeAll(context.Background(), makeChunks(t, 20, true))
		require.NoError(t, err)
		assert.Equal(t, strings.Join(want, " "), transcript.Text)
	}
}

func TestTranscribeAll_RemovesExtractedChunks(t *testing.T) {
	pipe, _ := testConfig(t)
	chunks := makeChunks(t, 3, true)
	stt := &fakeSTT{text: func(string) (string, error) { return "x", nil }}

	_, err := NewTranscriber(stt, pipe, nil).TranscribeAll(context.Background(), chunks)
	require.NoError(t, err)

	for _, c := range chunks {
		assert.NoFileExists(t, c.Path)
	}
}

func TestTranscribeAll_KeepsWholeFileChunk(t *testing.T) {
	pipe, _ := testConfig(t)
	chunks := makeChunks(t, 1, false)
	stt := &fakeSTT{text: func(string) (string, error) { return "  hello world ", nil }}

	transcript, err := NewTranscriber(stt, pipe, nil).TranscribeAll(context.Background(), chunks)
	require.NoError(t, err)

	assert.Equal(t, "hello world", transcript.Text)
	assert.FileExists(t, chunks[0].Path)
}

func TestTranscribeAll_OneFailureFailsAll(t *testing.T) {
	pipe, _ := testConfig(t)
	chunks := makeChunks(t, 5, true)
	stt := &fakeSTT{
		maxDelay: 5 * time.Millisecond,
		text: func(path string) (string, error) {
			if strings.HasSuffix(path, "chunk-03.mp3") {
				return "", errors.New("429 rate limit reached")
			}
			return "ok", nil
		},
	}

	transcript, err := NewTranscriber(stt, pipe, nil).TranscribeAll(context.Background(), chunks)
	require.Error(t, err)
	assert.Empty(t, transcript.Text)
	assert.Contains(t, err.Error(), "chunk 3")

	// failed and cancelled chunks are cleaned up too
	assert.NoFileExists(t, chunks[3].Path)
}

func TestTranscribeAll_RespectsConcurrencyLimit(t *testing.T) {
	pipe, _ := testConfig(t)
	pipe.MaxConcurrency = 2

	var mu sync.Mutex
	inFlight, peak := 0, 0
	stt := &fakeSTT{text: func(string) (string, error) {
		mu.Lock()
		inFlight++
		peak = max(peak, inFlight)
		mu.Unlock()

		time.Sleep(5 * time.Millisecond)

		mu.Lock()
		inFlight--
		mu.Unlock()
		return "x", nil
	}}

	_, err := NewTranscriber(stt, pipe, nil).TranscribeAll(context.Background(), makeChunks(t, 8, false))
	require.NoError(t, err)
	assert.LessOrEqual(t, peak, 2)
}

func TestAssemble(t *testing.T) {
	tests := []struct {
		name    string
		results []models.TranscriptionResult
		want    string
	}{
		{name: "shuffled", results: []models.TranscriptionResult{{Ordinal: 2, Text: "c"}, {Ordinal: 0, Text: "a"}, {Ordinal: 1, Text: "b"}}, want: "a b c"},
		{name: "trims ends", results: []models.TranscriptionResult{{Ordinal: 0, Text: " hello"}, {Ordinal: 1, Text: "world\n"}}, want: "hello world"},
		{name: "empty pieces keep separators", results: []models.TranscriptionResult{{Ordinal: 0, Text: "a"}, {Ordinal: 1, Text: ""}, {Ordinal: 2, Text: "c"}}, want: "a  c"},
		{name: "nothing", results: nil, want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Assemble(tt.results).Text)
		})
	}
}
