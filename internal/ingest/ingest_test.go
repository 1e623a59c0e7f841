package ingest

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcher_Accepts(t *testing.T) {
	w, err := NewWatcher(t.TempDir(), func(context.Context, string) error { return nil }, Options{})
	require.NoError(t, err)
	defer w.Stop()

	tests := map[string]bool{
		"/in/standup.mp3":     true,
		"/in/Board.M4A":       true,
		"/in/call.webm":       true,
		"/in/notes.txt":       false,
		"/in/.hidden.mp3":     false,
		"/in/upload.mp3.part": false,
		"/in/no-extension":    false,
	}
	for path, want := range tests {
		assert.Equal(t, want, w.Accepts(path), path)
	}
}

func TestWatcher_HandlesNewFiles(t *testing.T) {
	dir := t.TempDir()

	var mu sync.Mutex
	var handled []string
	done := make(chan struct{}, 4)
	w, err := NewWatcher(dir, func(_ context.Context, path string) error {
		mu.Lock()
		handled = append(handled, filepath.Base(path))
		mu.Unlock()
		done <- struct{}{}
		return nil
	}, Options{MaxConcurrent: 1, SettleInterval: 20 * time.Millisecond})
	require.NoError(t, err)
	defer w.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan error, 1)
	go func() { stopped <- w.Start(ctx) }()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "ignored.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "meeting.mp3"), []byte("audio"), 0o644))

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("file was not handled")
	}

	cancel()
	assert.ErrorIs(t, <-stopped, context.Canceled)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"meeting.mp3"}, handled)
}

func TestNewWatcher_MissingDir(t *testing.T) {
	_, err := NewWatcher(filepath.Join(t.TempDir(), "missing"), nil, Options{})
	assert.Error(t, err)
}

func TestWriteOutputs(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")

	out, err := WriteOutputs(dir, "/in/weekly.sync.m4a", "hello world", "# Minutes")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "weekly.sync.transcript.txt"), out.TranscriptPath)
	assert.Equal(t, filepath.Join(dir, "weekly.sync.minutes.md"), out.MinutesPath)

	b, err := os.ReadFile(out.MinutesPath)
	require.NoError(t, err)
	assert.Equal(t, "# Minutes\n", string(b))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2, "no temporary files are left behind")
}
