package app

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/minutesai/internal/config"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"info":    slog.LevelInfo,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func testConfig(t *testing.T) *config.Config {
	pc, mc := config.Defaults()
	pc.WorkDir = t.TempDir()
	return &config.Config{
		STT:      config.STTConfig{Backend: "local", LocalBaseURL: "http://127.0.0.1:1"},
		LLM:      config.LLMConfig{OllamaURL: "http://127.0.0.1:1", DefaultProvider: "ollama"},
		Media:    config.MediaConfig{FFmpegPath: "ffmpeg", FFprobePath: "ffprobe", AudioBitrate: "128k"},
		Pipeline: pc,
		Minutes:  mc,
	}
}

func TestNewCore(t *testing.T) {
	cfg := testConfig(t)
	tmpl := filepath.Join(t.TempDir(), "templates.yaml")
	require.NoError(t, os.WriteFile(tmpl, []byte("templates:\n  standup:\n    instruction: Yesterday, today, blockers.\n"), 0o644))
	cfg.Minutes.TemplatesFile = tmpl

	core, err := NewCore(cfg, prometheus.NewRegistry())
	require.NoError(t, err)
	assert.NotNil(t, core.Pipeline)
	assert.Equal(t, "Yesterday, today, blockers.", core.Templates.Resolve("standup"))
}

func TestNewCore_Errors(t *testing.T) {
	cfg := testConfig(t)
	cfg.STT.Backend = "carrier-pigeon"
	_, err := NewCore(cfg, nil)
	assert.ErrorContains(t, err, "carrier-pigeon")

	cfg = testConfig(t)
	cfg.Minutes.TemplatesFile = filepath.Join(t.TempDir(), "missing.yaml")
	_, err = NewCore(cfg, nil)
	assert.Error(t, err)
}
