package media

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/minutesai/internal/config"
)

type call struct {
	name string
	args []string
}

type fakeExecutor struct {
	mu     sync.Mutex
	calls  []call
	stdout string
	err    error
}

func (f *fakeExecutor) Execute(_ context.Context, name string, args ...string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{name: name, args: args})
	return f.stdout, f.err
}

func TestFFmpeg_Convert(t *testing.T) {
	ex := &fakeExecutor{}
	ff := NewFFmpeg(ex, config.MediaConfig{FFmpegPath: "/usr/bin/ffmpeg", AudioBitrate: "96k"}, ".mp3")

	out, err := ff.Convert(context.Background(), "/work/req/meeting.m4a")
	require.NoError(t, err)

	assert.Equal(t, "/work/req/meeting.normalized.mp3", out)
	require.Len(t, ex.calls, 1)
	assert.Equal(t, "/usr/bin/ffmpeg", ex.calls[0].name)
	assert.Contains(t, ex.calls[0].args, "libmp3lame")
	assert.Contains(t, ex.calls[0].args, "96k")
	assert.Equal(t, out, ex.calls[0].args[len(ex.calls[0].args)-1])
}

func TestFFmpeg_ConvertError(t *testing.T) {
	ex := &fakeExecutor{err: errors.New("Invalid data found when processing input")}
	ff := NewFFmpeg(ex, config.MediaConfig{}, ".mp3")

	_, err := ff.Convert(context.Background(), "/work/req/broken.webm")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken.webm")
	assert.Contains(t, err.Error(), "Invalid data")
}

func TestFFmpeg_ExtractSegment(t *testing.T) {
	ex := &fakeExecutor{}
	ff := NewFFmpeg(ex, config.MediaConfig{}, ".mp3")

	first, err := ff.ExtractSegment(context.Background(), "/work/req/upload.mp3", 0, 50)
	require.NoError(t, err)
	second, err := ff.ExtractSegment(context.Background(), "/work/req/upload.mp3", 50, 50)
	require.NoError(t, err)

	assert.Equal(t, "/work/req/upload.seg-000000000.mp3", first)
	assert.Equal(t, "/work/req/upload.seg-000050000.mp3", second)

	args := ex.calls[1].args
	assert.Equal(t, "ffmpeg", ex.calls[1].name)
	assert.Contains(t, args, "50.000")
	assert.Contains(t, args, "copy")
}

func TestFFprobe_Probe(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.mp3")
	require.NoError(t, os.WriteFile(path, make([]byte, 1234), 0o600))

	tests := []struct {
		name     string
		stdout   string
		err      error
		duration *float64
	}{
		{name: "duration", stdout: "120.500000\n", duration: ptr(120.5)},
		{name: "not available", stdout: "N/A\n"},
		{name: "garbage", stdout: "abc"},
		{name: "zero", stdout: "0.000000"},
		{name: "probe failure", err: errors.New("exit status 1")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			probe := NewFFprobe(&fakeExecutor{stdout: tt.stdout, err: tt.err}, config.MediaConfig{})
			res, err := probe.Probe(context.Background(), path)
			require.NoError(t, err)
			assert.Equal(t, int64(1234), res.SizeBytes)
			if tt.duration == nil {
				assert.Nil(t, res.DurationSeconds)
				return
			}
			require.NotNil(t, res.DurationSeconds)
			assert.InDelta(t, *tt.duration, *res.DurationSeconds, 1e-9)
		})
	}
}

func TestFFprobe_MissingFile(t *testing.T) {
	probe := NewFFprobe(&fakeExecutor{}, config.MediaConfig{})
	_, err := probe.Probe(context.Background(), filepath.Join(t.TempDir(), "missing.mp3"))
	assert.Error(t, err)
}

func TestLastLines(t *testing.T) {
	assert.Equal(t, "c | d", lastLines("a\nb\nc\nd\n", 2))
	assert.Equal(t, "", lastLines("  \n", 3))
}

func ptr(f float64) *float64 { return &f }
