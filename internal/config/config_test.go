package config

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"STORE_BACKEND", "CACHE_BACKEND", "LLM_PROVIDER", "RETRIEVAL_TOP_K", "LLM_TIMEOUT", "CACHE_TTL_SECONDS"} {
		t.Setenv(k, "")
	}

	cfg := Load()
	assert.Equal(t, StoreMemory, cfg.StoreBackend)
	assert.Equal(t, "lru", cfg.CacheBackend)
	assert.Equal(t, 8, cfg.RetrievalTopK)
	assert.Equal(t, 6, cfg.ChunkSizeLines)
	assert.Equal(t, 10*time.Minute, cfg.CacheTTL)
	assert.Equal(t, 30*time.Second, cfg.LLMTimeout)
	assert.False(t, cfg.LLMEnabled())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("STORE_BACKEND", "SQLite")
	t.Setenv("LLM_PROVIDER", "openai")
	t.Setenv("RETRIEVAL_TOP_K", "3")
	t.Setenv("LLM_TIMEOUT", "45")
	t.Setenv("SPOILERGUARD_LOG_LEVEL", "debug")

	cfg := Load()
	assert.Equal(t, StoreSQLite, cfg.StoreBackend)
	assert.True(t, cfg.LLMEnabled())
	assert.Equal(t, 3, cfg.RetrievalTopK)
	assert.Equal(t, 45*time.Second, cfg.LLMTimeout)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
}

func TestGetEnvFallbacks(t *testing.T) {
	t.Setenv("X_INT", "nope")
	assert.Equal(t, 7, getEnvInt("X_INT", 7))

	t.Setenv("X_DUR", "1m30s")
	assert.Equal(t, 90*time.Second, getEnvDuration("X_DUR", time.Second))

	t.Setenv("X_DUR", "garbage")
	assert.Equal(t, time.Second, getEnvDuration("X_DUR", time.Second))
}

func TestParseLogLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"DEBUG":   slog.LevelDebug,
		"warning": slog.LevelWarn,
		"ERROR":   slog.LevelError,
		"":        slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, parseLogLevel(in), in)
	}
}

func TestSetupLoggerWithWriters(t *testing.T) {
	var stderr, file bytes.Buffer
	logger := SetupLoggerWithWriters(&stderr, &file, slog.LevelInfo)

	logger.Debug("hidden")
	logger.Info("retrieval done", "episode_id", "e1")

	assert.Contains(t, stderr.String(), "episode_id=e1")
	assert.NotContains(t, stderr.String(), "hidden")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(file.Bytes(), &entry))
	assert.Equal(t, "retrieval done", entry["msg"])
}
