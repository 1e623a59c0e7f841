package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, int64(5*MiB), cfg.Pipeline.SizeThresholdBytes)
	assert.Equal(t, 5.0, cfg.Pipeline.MinChunkSeconds)
	assert.Equal(t, 60.0, cfg.Pipeline.FallbackDurationSeconds)
	assert.Equal(t, 600*time.Second, cfg.Pipeline.CallTimeout)
	assert.Equal(t, ".mp3", cfg.Pipeline.CanonicalExtension)
	assert.Equal(t, []string{"video/mp4"}, cfg.Pipeline.AmbiguousMIMETypes)
	assert.Equal(t, 10000, cfg.Minutes.CharThreshold)
	assert.Equal(t, DefaultInstruction, cfg.Minutes.DefaultInstruction)
	assert.Equal(t, DefaultCombineInstruction, cfg.Minutes.CombineInstruction)
	assert.Equal(t, "0.0.0.0:8080", cfg.Addr())
}

func TestLoad_Overrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("CHUNK_SIZE_THRESHOLD_BYTES", "1048576")
	t.Setenv("COLLABORATOR_CALL_TIMEOUT", "30s")
	t.Setenv("CANONICAL_EXTENSION", ".WAV")
	t.Setenv("AMBIGUOUS_MIME_TYPES", "video/mp4, audio/x-m4a ,")
	t.Setenv("API_KEYS", "k1,k2")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, int64(1048576), cfg.Pipeline.SizeThresholdBytes)
	assert.Equal(t, 30*time.Second, cfg.Pipeline.CallTimeout)
	assert.Equal(t, ".wav", cfg.Pipeline.CanonicalExtension)
	assert.Equal(t, []string{"video/mp4", "audio/x-m4a"}, cfg.Pipeline.AmbiguousMIMETypes)
	assert.Equal(t, []string{"k1", "k2"}, cfg.Auth.APIKeys)
}

func TestLoad_InvalidValuesAreReported(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("SERVER_PORT", "eighty")
	t.Setenv("MIN_CHUNK_SECONDS", "five")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SERVER_PORT")
	assert.Contains(t, err.Error(), "MIN_CHUNK_SECONDS")
}

func TestValidate(t *testing.T) {
	pipe, minutes := Defaults()
	base := Config{
		STT:      STTConfig{Backend: "openai", OpenAIKey: "sk"},
		LLM:      LLMConfig{OpenAIKey: "sk"},
		Pipeline: pipe,
		Minutes:  minutes,
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "missing stt key", mutate: func(c *Config) { c.STT.OpenAIKey = "" }, wantErr: "STT_BACKEND=openai"},
		{name: "unknown stt backend", mutate: func(c *Config) { c.STT.Backend = "carrier-pigeon" }, wantErr: "unknown STT_BACKEND"},
		{name: "no llm provider", mutate: func(c *Config) { c.LLM.OpenAIKey = "" }, wantErr: "OLLAMA_URL"},
		{name: "zero concurrency", mutate: func(c *Config) { c.Pipeline.MaxConcurrency = 0 }, wantErr: "PIPELINE_MAX_CONCURRENCY"},
		{name: "extension without dot", mutate: func(c *Config) { c.Pipeline.CanonicalExtension = "mp3" }, wantErr: "CANONICAL_EXTENSION"},
		{name: "zero char threshold", mutate: func(c *Config) { c.Minutes.CharThreshold = 0 }, wantErr: "MINUTES_CHAR_THRESHOLD"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
