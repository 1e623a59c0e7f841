package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const MiB = 1 << 20

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Auth     AuthConfig
	LLM      LLMConfig
	Storage  StorageConfig
	STT      STTConfig
	Media    MediaConfig
	Pipeline PipelineConfig
	Minutes  MinutesConfig
	Queue    QueueConfig
	Webhook  WebhookConfig
	Ingest   IngestConfig
	LogLevel string
}

type ServerConfig struct {
	Host           string
	Port           int
	RateLimitRPS   float64
	RateLimitBurst int
	CORSOrigins    []string
	MaxUploadBytes int64
}

type DatabaseConfig struct {
	URL            string
	MaxConns       int
	MinConns       int
	MigrationsPath string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	CacheTTL time.Duration
}

type AuthConfig struct {
	APIKeys      []string
	APIKeyHeader string
}

type LLMConfig struct {
	OpenAIKey        string
	AnthropicKey     string
	OllamaURL        string
	DefaultProvider  string
	FallbackProvider string
	MaxRetries       int
}

type StorageConfig struct {
	SupabaseURL string
	SupabaseKey string
	Bucket      string
}

type STTConfig struct {
	Backend       string // "openai" or "local"
	OpenAIKey     string
	OpenAIBaseURL string
	OpenAIModel   string
	Language      string
	LocalBaseURL  string // default: "http://localhost:8178"
}

type MediaConfig struct {
	FFmpegPath   string
	FFprobePath  string
	AudioBitrate string
}

// PipelineConfig carries the sizing and concurrency knobs of the transcription pipeline.
type PipelineConfig struct {
	SizeThresholdBytes      int64
	MinChunkSeconds         float64
	FallbackDurationSeconds float64
	CallTimeout             time.Duration
	MaxConcurrency          int
	CanonicalExtension      string
	AmbiguousMIMETypes      []string
	WorkDir                 string
}

// MinutesConfig is the fixed generation budget used for every minutes call.
type MinutesConfig struct {
	Provider           string
	Model              string
	MaxTokens          int
	Temperature        float64
	CharThreshold      int
	DefaultInstruction string
	CombineInstruction string
	TemplatesFile      string
	WindowStrategy     string // "fixed" or "sentence"
}

type QueueConfig struct {
	Concurrency int
	MaxRetry    int
	Timeout     time.Duration
	MetricsAddr string // worker /metrics listener; empty disables it
}

type WebhookConfig struct {
	Secret  string
	Timeout time.Duration
}

type IngestConfig struct {
	InputDir      string
	OutputDir     string
	MaxConcurrent int
}

const DefaultInstruction = "You are a helpful meeting assistant. Turn the transcript you are given into clear, " +
	"well-structured meeting minutes: a title, the attendees when they are mentioned, a short summary, " +
	"the key discussion points, decisions taken and action items with owners."

const DefaultCombineInstruction = "You are given several partial meeting minutes produced from consecutive parts of one meeting. " +
	"Merge them into a single coherent minutes document. Remove duplicated headers and sections " +
	"(for example a repeated meeting title), keep the section order consistent, " +
	"and preserve every number, date, amount and other quantitative figure mentioned in any part."

// Load reads configuration from the environment. A .env file in the working directory
// is loaded first when present; real environment variables take precedence.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	var errs []error
	intVar := func(key string, fallback int) int {
		v, err := getEnvInt(key, fallback)
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid %s: %w", key, err))
		}
		return v
	}
	int64Var := func(key string, fallback int64) int64 {
		v, err := getEnvInt64(key, fallback)
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid %s: %w", key, err))
		}
		return v
	}
	floatVar := func(key string, fallback float64) float64 {
		v, err := getEnvFloat(key, fallback)
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid %s: %w", key, err))
		}
		return v
	}
	durVar := func(key string, fallback time.Duration) time.Duration {
		v, err := getEnvDuration(key, fallback)
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid %s: %w", key, err))
		}
		return v
	}

	cfg := &Config{
		Server: ServerConfig{
			Host:           getEnv("SERVER_HOST", "0.0.0.0"),
			Port:           intVar("SERVER_PORT", 8080),
			RateLimitRPS:   floatVar("RATE_LIMIT_RPS", 5),
			RateLimitBurst: intVar("RATE_LIMIT_BURST", 10),
			CORSOrigins:    getEnvList("CORS_ORIGINS", []string{"*"}),
			MaxUploadBytes: int64Var("MAX_UPLOAD_BYTES", 512*MiB),
		},
		Database: DatabaseConfig{
			URL:            getEnv("DATABASE_URL", ""),
			MaxConns:       intVar("DB_MAX_CONNS", 20),
			MinConns:       intVar("DB_MIN_CONNS", 2),
			MigrationsPath: getEnv("MIGRATIONS_PATH", ""),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       intVar("REDIS_DB", 0),
			CacheTTL: durVar("RESULT_CACHE_TTL", 24*time.Hour),
		},
		Auth: AuthConfig{
			APIKeys:      getEnvList("API_KEYS", nil),
			APIKeyHeader: getEnv("API_KEY_HEADER", "X-API-Key"),
		},
		LLM: LLMConfig{
			OpenAIKey:        getEnv("OPENAI_API_KEY", ""),
			AnthropicKey:     getEnv("ANTHROPIC_API_KEY", ""),
			OllamaURL:        getEnv("OLLAMA_URL", ""),
			DefaultProvider:  getEnv("LLM_DEFAULT_PROVIDER", "openai"),
			FallbackProvider: getEnv("LLM_FALLBACK_PROVIDER", ""),
			MaxRetries:       intVar("LLM_MAX_RETRIES", 0),
		},
		Storage: StorageConfig{
			SupabaseURL: getEnv("SUPABASE_URL", ""),
			SupabaseKey: getEnv("SUPABASE_SERVICE_KEY", ""),
			Bucket:      getEnv("STORAGE_BUCKET", "meetings"),
		},
		STT: STTConfig{
			Backend:       getEnv("STT_BACKEND", "openai"),
			OpenAIKey:     getEnv("OPENAI_API_KEY", ""),
			OpenAIBaseURL: getEnv("STT_OPENAI_BASE_URL", ""),
			OpenAIModel:   getEnv("STT_OPENAI_MODEL", "whisper-1"),
			Language:      getEnv("STT_LANGUAGE", ""),
			LocalBaseURL:  getEnv("STT_LOCAL_BASE_URL", "http://localhost:8178"),
		},
		Media: MediaConfig{
			FFmpegPath:   getEnv("FFMPEG_PATH", "ffmpeg"),
			FFprobePath:  getEnv("FFPROBE_PATH", "ffprobe"),
			AudioBitrate: getEnv("AUDIO_BITRATE", "128k"),
		},
		Pipeline: PipelineConfig{
			SizeThresholdBytes:      int64Var("CHUNK_SIZE_THRESHOLD_BYTES", 5*MiB),
			MinChunkSeconds:         floatVar("MIN_CHUNK_SECONDS", 5),
			FallbackDurationSeconds: floatVar("FALLBACK_DURATION_SECONDS", 60),
			CallTimeout:             durVar("COLLABORATOR_CALL_TIMEOUT", 600*time.Second),
			MaxConcurrency:          intVar("PIPELINE_MAX_CONCURRENCY", 4),
			CanonicalExtension:      strings.ToLower(getEnv("CANONICAL_EXTENSION", ".mp3")),
			AmbiguousMIMETypes:      getEnvList("AMBIGUOUS_MIME_TYPES", []string{"video/mp4"}),
			WorkDir:                 getEnv("PIPELINE_WORK_DIR", os.TempDir()),
		},
		Minutes: MinutesConfig{
			Provider:           getEnv("MINUTES_PROVIDER", ""),
			Model:              getEnv("MINUTES_MODEL", "gpt-4o"),
			MaxTokens:          intVar("MINUTES_MAX_TOKENS", 2048),
			Temperature:        floatVar("MINUTES_TEMPERATURE", 0.3),
			CharThreshold:      intVar("MINUTES_CHAR_THRESHOLD", 10000),
			DefaultInstruction: getEnv("MINUTES_DEFAULT_INSTRUCTION", DefaultInstruction),
			CombineInstruction: getEnv("MINUTES_COMBINE_INSTRUCTION", DefaultCombineInstruction),
			TemplatesFile:      getEnv("MINUTES_TEMPLATES_FILE", ""),
			WindowStrategy:     getEnv("MINUTES_WINDOW_STRATEGY", "fixed"),
		},
		Queue: QueueConfig{
			Concurrency: intVar("WORKER_CONCURRENCY", 4),
			MaxRetry:    intVar("JOB_MAX_RETRY", 3),
			Timeout:     durVar("JOB_TIMEOUT", 2*time.Hour),
			MetricsAddr: getEnv("WORKER_METRICS_ADDR", ":9091"),
		},
		Webhook: WebhookConfig{
			Secret:  getEnv("WEBHOOK_SECRET", ""),
			Timeout: durVar("WEBHOOK_TIMEOUT", 10*time.Second),
		},
		Ingest: IngestConfig{
			InputDir:      getEnv("INGEST_INPUT_DIR", ""),
			OutputDir:     getEnv("INGEST_OUTPUT_DIR", ""),
			MaxConcurrent: intVar("INGEST_MAX_CONCURRENT", 2),
		},
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return cfg, nil
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// Validate checks the settings the pipeline cannot run without.
func (c *Config) Validate() error {
	var problems []string
	if c.STT.Backend == "openai" && c.STT.OpenAIKey == "" {
		problems = append(problems, "OPENAI_API_KEY is required for STT_BACKEND=openai")
	}
	if c.STT.Backend != "openai" && c.STT.Backend != "local" {
		problems = append(problems, fmt.Sprintf("unknown STT_BACKEND %q", c.STT.Backend))
	}
	if c.LLM.OpenAIKey == "" && c.LLM.AnthropicKey == "" && c.LLM.OllamaURL == "" {
		problems = append(problems, "one of OPENAI_API_KEY, ANTHROPIC_API_KEY or OLLAMA_URL is required")
	}
	if err := c.Pipeline.Validate(); err != nil {
		problems = append(problems, err.Error())
	}
	if err := c.Minutes.Validate(); err != nil {
		problems = append(problems, err.Error())
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

func (p PipelineConfig) Validate() error {
	switch {
	case p.SizeThresholdBytes <= 0:
		return errors.New("CHUNK_SIZE_THRESHOLD_BYTES must be positive")
	case p.MinChunkSeconds <= 0:
		return errors.New("MIN_CHUNK_SECONDS must be positive")
	case p.FallbackDurationSeconds <= 0:
		return errors.New("FALLBACK_DURATION_SECONDS must be positive")
	case p.CallTimeout <= 0:
		return errors.New("COLLABORATOR_CALL_TIMEOUT must be positive")
	case p.MaxConcurrency <= 0:
		return errors.New("PIPELINE_MAX_CONCURRENCY must be positive")
	case !strings.HasPrefix(p.CanonicalExtension, "."):
		return errors.New("CANONICAL_EXTENSION must start with a dot")
	}
	return nil
}

func (m MinutesConfig) Validate() error {
	if m.CharThreshold <= 0 {
		return errors.New("MINUTES_CHAR_THRESHOLD must be positive")
	}
	if m.Model == "" {
		return errors.New("MINUTES_MODEL is required")
	}
	if m.WindowStrategy != "" && m.WindowStrategy != "fixed" && m.WindowStrategy != "sentence" {
		return fmt.Errorf("unknown MINUTES_WINDOW_STRATEGY %q", m.WindowStrategy)
	}
	return nil
}

// Defaults returns the pipeline and minutes settings used when nothing is configured.
func Defaults() (PipelineConfig, MinutesConfig) {
	return PipelineConfig{
			SizeThresholdBytes:      5 * MiB,
			MinChunkSeconds:         5,
			FallbackDurationSeconds: 60,
			CallTimeout:             600 * time.Second,
			MaxConcurrency:          4,
			CanonicalExtension:      ".mp3",
			AmbiguousMIMETypes:      []string{"video/mp4"},
			WorkDir:                 os.TempDir(),
		}, MinutesConfig{
			Model:              "gpt-4o",
			MaxTokens:          2048,
			Temperature:        0.3,
			CharThreshold:      10000,
			DefaultInstruction: DefaultInstruction,
			CombineInstruction: DefaultCombineInstruction,
			WindowStrategy:     "fixed",
		}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.Atoi(v)
}

func getEnvInt64(key string, fallback int64) (int64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.ParseInt(v, 10, 64)
}

func getEnvFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.ParseFloat(v, 64)
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return time.ParseDuration(v)
}

func getEnvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
