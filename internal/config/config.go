package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"golang.org/x/text/language"

	"github.com/docuglot/chapter-translator/pkg/log"
)

// Config holds all application configuration. Values come from environment
// variables with sensible defaults; a .env file is loaded in main.
//
// Environment Variables:
//
// Server:
// - LISTEN_ADDR: HTTP listen address (default: :8080)
// - MAX_UPLOAD_MB: maximum upload size in megabytes (default: 40)
//
// Engine:
// - ENGINE_WORKERS: concurrent translation jobs (default: 2)
// - CHAPTER_CONCURRENCY: chapters translated in parallel per job (default: 3)
//
// LLM (optional; without an API key a passthrough translator is used):
// - LLM_API_KEY, LLM_API_URL, LLM_MODEL, LLM_MAX_TOKENS, LLM_TEMPERATURE, LLM_TIMEOUT
//
// Translation:
// - TARGET_LANGUAGE: default target language code (default: de)
//
// Storage:
// - DB_PATH: SQLite database path (default: data/docuglot.db)
//
// Cleanup:
// - CLEANUP_CRON: purge schedule (default: */30 * * * *)
// - SESSION_TTL_HOURS: expiry for uploaded documents and terminal jobs (default: 24)
//
// Client:
// - SERVER_URL: base URL the CLI client talks to (default: http://localhost:8080)
// - POLL_INTERVAL_SECONDS: job status polling cadence (default: 2)
//
// System:
// - LOG_LEVEL: debug|info|warn|error (default: info)
type Config struct {
	Server    ServerConfig    `json:"server"`
	Engine    EngineConfig    `json:"engine"`
	LLM       LLMConfig       `json:"llm"`
	Translate TranslateConfig `json:"translate"`
	Storage   StorageConfig   `json:"storage"`
	Cleanup   CleanupConfig   `json:"cleanup"`
	Client    ClientConfig    `json:"client"`
	LogLevel  string          `json:"log_level"`
}

type ServerConfig struct {
	Addr        string `json:"addr"`
	MaxUploadMB int64  `json:"max_upload_mb"`
}

type EngineConfig struct {
	Workers            int `json:"workers"`
	ChapterConcurrency int `json:"chapter_concurrency"`
}

type LLMConfig struct {
	APIKey      string  `json:"api_key"`
	APIURL      string  `json:"api_url"`
	Model       string  `json:"model"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
	Timeout     int     `json:"timeout"`
}

type TranslateConfig struct {
	TargetLanguage language.Tag `json:"target_language"`
}

type StorageConfig struct {
	DBPath string `json:"db_path"`
}

type CleanupConfig struct {
	CronExpr string        `json:"cron_expr"`
	TTL      time.Duration `json:"ttl"`
}

type ClientConfig struct {
	ServerURL    string        `json:"server_url"`
	PollInterval time.Duration `json:"poll_interval"`
}

// Option is a function type for configuring Config
type Option func(*Config)

// NewFromEnv creates a new Config instance with values from environment
// variables and options.
func NewFromEnv(opts ...Option) (*Config, error) {
	targetLanguage, err := language.Parse(getEnvString("TARGET_LANGUAGE", "de"))
	if err != nil {
		return nil, fmt.Errorf("invalid TARGET_LANGUAGE: %w", err)
	}

	config := &Config{
		Server: ServerConfig{
			Addr:        getEnvString("LISTEN_ADDR", ":8080"),
			MaxUploadMB: int64(getEnvInt("MAX_UPLOAD_MB", 40)),
		},
		Engine: EngineConfig{
			Workers:            getEnvInt("ENGINE_WORKERS", 2),
			ChapterConcurrency: getEnvInt("CHAPTER_CONCURRENCY", 3),
		},
		LLM: LLMConfig{
			APIKey:      getEnvString("LLM_API_KEY", ""),
			APIURL:      getEnvString("LLM_API_URL", "https://openrouter.ai/api/v1"),
			Model:       getEnvString("LLM_MODEL", "openai/gpt-4o-mini"),
			MaxTokens:   getEnvInt("LLM_MAX_TOKENS", 8000),
			Temperature: getEnvFloat("LLM_TEMPERATURE", 0.3),
			Timeout:     getEnvInt("LLM_TIMEOUT", 120),
		},
		Translate: TranslateConfig{
			TargetLanguage: targetLanguage,
		},
		Storage: StorageConfig{
			DBPath: getEnvString("DB_PATH", "data/docuglot.db"),
		},
		Cleanup: CleanupConfig{
			CronExpr: getEnvString("CLEANUP_CRON", "*/30 * * * *"),
			TTL:      time.Duration(getEnvInt("SESSION_TTL_HOURS", 24)) * time.Hour,
		},
		Client: ClientConfig{
			ServerURL:    getEnvString("SERVER_URL", "http://localhost:8080"),
			PollInterval: time.Duration(getEnvInt("POLL_INTERVAL_SECONDS", 2)) * time.Second,
		},
		LogLevel: getEnvString("LOG_LEVEL", "info"),
	}

	for _, opt := range opts {
		opt(config)
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	log.Debug("Config loaded: %+v", config)
	return config, nil
}

func (c *Config) validate() error {
	if c.Engine.Workers <= 0 {
		return fmt.Errorf("ENGINE_WORKERS must be positive")
	}
	if c.Engine.ChapterConcurrency <= 0 {
		return fmt.Errorf("CHAPTER_CONCURRENCY must be positive")
	}
	if c.Client.PollInterval <= 0 {
		return fmt.Errorf("POLL_INTERVAL_SECONDS must be positive")
	}
	return nil
}

// getEnvString gets a string value from environment variables with default
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer value from environment variables with default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvFloat gets a float value from environment variables with default
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
