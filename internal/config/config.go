package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contains all runtime settings for the paper tutor service.
type Config struct {
	BindAddr                 string
	ShutdownTimeout          time.Duration
	SessionInactivityTimeout time.Duration
	MetricsNamespace         string

	AllowAnyOrigin bool

	LogLevel slog.Level
	LogFile  string

	LLMProvider     string
	LLMModel        string
	LLMTemperature  float64
	LLMStreaming    bool
	OpenAIAPIKey    string
	OpenAIBaseURL   string
	AnthropicAPIKey string
	OllamaHost      string

	UploadMaxBytes int
	PaperMaxChars  int
	PaperWarnChars int

	DatabaseURL      string
	ArchiveRedactPII bool
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:         envOrDefault("APP_BIND_ADDR", ":8080"),
		MetricsNamespace: envOrDefault("APP_METRICS_NAMESPACE", "papertutor"),
		AllowAnyOrigin:   false,
		LogFile:          stringsTrimSpace("APP_LOG_FILE"),
		LLMProvider:      strings.ToLower(envOrDefault("LLM_PROVIDER", "openai")),
		// Cheap, fast default that follows multi-rule prompts well enough for tutoring.
		LLMModel:        envOrDefault("LLM_MODEL", "gpt-4o-mini"),
		LLMTemperature:  0.4,
		LLMStreaming:    true,
		OpenAIAPIKey:    stringsTrimSpace("OPENAI_API_KEY"),
		OpenAIBaseURL:   stringsTrimSpace("OPENAI_BASE_URL"),
		AnthropicAPIKey: stringsTrimSpace("ANTHROPIC_API_KEY"),
		OllamaHost:      stringsTrimSpace("OLLAMA_HOST"),
		UploadMaxBytes:  32 << 20,
		PaperMaxChars:   100000,
		PaperWarnChars:  80000,
		DatabaseURL:     stringsTrimSpace("DATABASE_URL"),

		ArchiveRedactPII:         true,
		ShutdownTimeout:          15 * time.Second,
		SessionInactivityTimeout: 30 * time.Minute,
	}
	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.SessionInactivityTimeout, err = durationFromEnv("APP_SESSION_INACTIVITY_TIMEOUT", cfg.SessionInactivityTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.AllowAnyOrigin, err = boolFromEnv("APP_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin)
	if err != nil {
		return Config{}, err
	}
	cfg.LogLevel, err = levelFromEnv("APP_LOG_LEVEL", slog.LevelInfo)
	if err != nil {
		return Config{}, err
	}
	cfg.LLMTemperature, err = floatFromEnv("LLM_TEMPERATURE", cfg.LLMTemperature)
	if err != nil {
		return Config{}, err
	}
	cfg.LLMStreaming, err = boolFromEnv("LLM_STREAMING", cfg.LLMStreaming)
	if err != nil {
		return Config{}, err
	}
	cfg.UploadMaxBytes, err = intFromEnv("UPLOAD_MAX_BYTES", cfg.UploadMaxBytes)
	if err != nil {
		return Config{}, err
	}
	cfg.PaperMaxChars, err = intFromEnv("PAPER_MAX_CHARS", cfg.PaperMaxChars)
	if err != nil {
		return Config{}, err
	}
	cfg.PaperWarnChars, err = intFromEnv("PAPER_WARN_CHARS", cfg.PaperWarnChars)
	if err != nil {
		return Config{}, err
	}
	cfg.ArchiveRedactPII, err = boolFromEnv("ARCHIVE_REDACT_PII", cfg.ArchiveRedactPII)
	if err != nil {
		return Config{}, err
	}

	if cfg.SessionInactivityTimeout < time.Minute {
		return Config{}, fmt.Errorf("APP_SESSION_INACTIVITY_TIMEOUT must be at least 1m")
	}
	if cfg.LLMTemperature < 0 || cfg.LLMTemperature > 2 {
		return Config{}, fmt.Errorf("LLM_TEMPERATURE must be within [0, 2]")
	}
	if cfg.UploadMaxBytes <= 0 {
		return Config{}, fmt.Errorf("UPLOAD_MAX_BYTES must be positive")
	}
	if cfg.PaperMaxChars <= 0 {
		return Config{}, fmt.Errorf("PAPER_MAX_CHARS must be positive")
	}
	if cfg.PaperWarnChars < 0 {
		return Config{}, fmt.Errorf("PAPER_WARN_CHARS must be >= 0")
	}

	switch cfg.LLMProvider {
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			return Config{}, fmt.Errorf("OPENAI_API_KEY is required when LLM_PROVIDER=openai")
		}
	case "anthropic":
		if cfg.AnthropicAPIKey == "" {
			return Config{}, fmt.Errorf("ANTHROPIC_API_KEY is required when LLM_PROVIDER=anthropic")
		}
	case "ollama", "mock":
	default:
		return Config{}, fmt.Errorf("LLM_PROVIDER %q is not supported (openai|anthropic|ollama|mock)", cfg.LLMProvider)
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func stringsTrimSpace(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func floatFromEnv(key string, fallback float64) (float64, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return f, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(stringsTrimSpace(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}

func levelFromEnv(key string, fallback slog.Level) (slog.Level, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(v)); err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return level, nil
}
