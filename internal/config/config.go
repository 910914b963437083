// Package config reads service settings from the environment. A .env file in the
// working directory is loaded first when present.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultPort               = "8080"
	defaultDBPath             = "data/analyses.db"
	defaultUploadDir          = "uploads"
	defaultMaxUploadBytes     = 500 << 20
	defaultAllowedExtensions  = "mp4,avi,mov,mkv,webm"
	defaultStageTimeout       = 600 * time.Second
	defaultHTTPTimeout        = 12 * time.Second
	defaultPipelineWorkers    = 3
	defaultMinTranscriptChars = 50
	defaultDispatchWorkers    = 2
	defaultDispatchQueueSize  = 64
	defaultLLMModel           = "llama3.1:8b"
)

// Config holds every tunable the services read at startup.
type Config struct {
	Environment string
	Port        string

	DBPath            string
	UploadDir         string
	MaxUploadBytes    int64
	AllowedExtensions []string

	// Pipeline
	StageTimeout       time.Duration
	PipelineWorkers    int
	MinTranscriptChars int
	DispatchWorkers    int
	DispatchQueueSize  int

	// Remote capabilities
	TranscribeURL     string
	AudioAnalyzerURL  string
	VisualAnalyzerURL string
	LLMGatewayURL     string
	LLMAPIKey         string
	LLMModel          string
	HTTPTimeout       time.Duration

	UseMockTranscribe bool
	UseMockAnalyzers  bool
	UseMockLLM        bool
}

// Load reads .env (if any) and the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv builds a Config from the current environment only.
func FromEnv() (*Config, error) {
	var errs []error
	cfg := &Config{
		Environment:       envOr("ENVIRONMENT", "local"),
		Port:              envOr("PORT", defaultPort),
		DBPath:            envOr("DB_PATH", defaultDBPath),
		UploadDir:         envOr("UPLOAD_DIR", defaultUploadDir),
		AllowedExtensions: splitList(envOr("ALLOWED_EXTENSIONS", defaultAllowedExtensions)),
		TranscribeURL:     os.Getenv("TRANSCRIBE_URL"),
		AudioAnalyzerURL:  os.Getenv("AUDIO_ANALYZER_URL"),
		VisualAnalyzerURL: os.Getenv("VISUAL_ANALYZER_URL"),
		LLMGatewayURL:     os.Getenv("LLM_GATEWAY_URL"),
		LLMAPIKey:         os.Getenv("LLM_API_KEY"),
		LLMModel:          envOr("LLM_MODEL", defaultLLMModel),
		UseMockTranscribe: os.Getenv("USE_MOCK_TRANSCRIBE") == "true",
		UseMockAnalyzers:  os.Getenv("USE_MOCK_ANALYZERS") == "true",
		UseMockLLM:        os.Getenv("USE_MOCK_LLM") == "true",
	}

	cfg.MaxUploadBytes = int64(intEnv("MAX_UPLOAD_BYTES", defaultMaxUploadBytes, &errs))
	cfg.StageTimeout = secondsEnv("STAGE_TIMEOUT_SEC", defaultStageTimeout, &errs)
	cfg.HTTPTimeout = secondsEnv("HTTP_TIMEOUT_SEC", defaultHTTPTimeout, &errs)
	cfg.PipelineWorkers = intEnv("PIPELINE_WORKERS", defaultPipelineWorkers, &errs)
	cfg.MinTranscriptChars = intEnv("MIN_TRANSCRIPT_CHARS", defaultMinTranscriptChars, &errs)
	cfg.DispatchWorkers = intEnv("DISPATCH_WORKERS", defaultDispatchWorkers, &errs)
	cfg.DispatchQueueSize = intEnv("DISPATCH_QUEUE_SIZE", defaultDispatchQueueSize, &errs)

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges. The pipeline needs at least one worker per
// independent stage so the three stages genuinely overlap.
func (c *Config) Validate() error {
	if c.PipelineWorkers < 3 {
		return fmt.Errorf("config error: PIPELINE_WORKERS must be at least 3, got %d", c.PipelineWorkers)
	}
	if c.StageTimeout <= 0 {
		return fmt.Errorf("config error: STAGE_TIMEOUT_SEC must be positive")
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("config error: HTTP_TIMEOUT_SEC must be positive")
	}
	if c.MinTranscriptChars < 0 {
		return fmt.Errorf("config error: MIN_TRANSCRIPT_CHARS must be non-negative")
	}
	if c.DispatchWorkers < 1 {
		return fmt.Errorf("config error: DISPATCH_WORKERS must be at least 1")
	}
	if c.DispatchQueueSize < 1 {
		return fmt.Errorf("config error: DISPATCH_QUEUE_SIZE must be at least 1")
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("config error: MAX_UPLOAD_BYTES must be positive")
	}
	if len(c.AllowedExtensions) == 0 {
		return fmt.Errorf("config error: ALLOWED_EXTENSIONS is empty")
	}
	return nil
}

// EnsureDirectories creates the database and upload directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{filepath.Dir(c.DBPath), filepath.Join(c.UploadDir, "videos")} {
		if dir == "" || dir == "." {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return nil
}

func envOr(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

func intEnv(k string, def int, errs *[]error) int {
	raw := strings.TrimSpace(os.Getenv(k))
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("config error: %s: %w", k, err))
		return def
	}
	return v
}

func secondsEnv(k string, def time.Duration, errs *[]error) time.Duration {
	raw := strings.TrimSpace(os.Getenv(k))
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("config error: %s: %w", k, err))
		return def
	}
	return time.Duration(v) * time.Second
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(part), "."))
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
