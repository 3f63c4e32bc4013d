package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
)

func TestNewFromEnv_Defaults(t *testing.T) {
	cfg, err := NewFromEnv()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, int64(40), cfg.Server.MaxUploadMB)
	assert.Equal(t, 2, cfg.Engine.Workers)
	assert.Equal(t, 3, cfg.Engine.ChapterConcurrency)
	assert.Equal(t, language.German, cfg.Translate.TargetLanguage)
	assert.Equal(t, "data/docuglot.db", cfg.Storage.DBPath)
	assert.Equal(t, "*/30 * * * *", cfg.Cleanup.CronExpr)
	assert.Equal(t, 24*time.Hour, cfg.Cleanup.TTL)
	assert.Equal(t, "http://localhost:8080", cfg.Client.ServerURL)
	assert.Equal(t, 2*time.Second, cfg.Client.PollInterval)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestNewFromEnv_ReadsEnvironment(t *testing.T) {
	t.Setenv("LISTEN_ADDR", ":9090")
	t.Setenv("ENGINE_WORKERS", "4")
	t.Setenv("TARGET_LANGUAGE", "fr")
	t.Setenv("POLL_INTERVAL_SECONDS", "5")
	t.Setenv("SESSION_TTL_HOURS", "1")
	t.Setenv("LLM_TEMPERATURE", "0.7")

	cfg, err := NewFromEnv()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, 4, cfg.Engine.Workers)
	assert.Equal(t, language.French, cfg.Translate.TargetLanguage)
	assert.Equal(t, 5*time.Second, cfg.Client.PollInterval)
	assert.Equal(t, time.Hour, cfg.Cleanup.TTL)
	assert.InDelta(t, 0.7, cfg.LLM.Temperature, 0.001)
}

func TestNewFromEnv_InvalidIntFallsBackToDefault(t *testing.T) {
	t.Setenv("ENGINE_WORKERS", "not-a-number")

	cfg, err := NewFromEnv()
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Engine.Workers)
}

func TestNewFromEnv_InvalidTargetLanguage(t *testing.T) {
	t.Setenv("TARGET_LANGUAGE", "!!!")

	_, err := NewFromEnv()
	require.Error(t, err)
}

func TestNewFromEnv_ValidationRejectsNonPositiveValues(t *testing.T) {
	t.Setenv("ENGINE_WORKERS", "0")
	_, err := NewFromEnv()
	require.Error(t, err)

	t.Setenv("ENGINE_WORKERS", "2")
	t.Setenv("POLL_INTERVAL_SECONDS", "-1")
	_, err = NewFromEnv()
	require.Error(t, err)
}

func TestNewFromEnv_Options(t *testing.T) {
	cfg, err := NewFromEnv(func(c *Config) {
		c.Server.Addr = ":7070"
	})
	require.NoError(t, err)
	assert.Equal(t, ":7070", cfg.Server.Addr)
}
