package logger_test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EgehanKilicarslan/shopmetrics/backend-go/internal/config"
	"github.com/EgehanKilicarslan/shopmetrics/backend-go/internal/logger"
)

func TestNewLogger_Development(t *testing.T) {
	cfg := &config.Config{
		AppEnv:   "development",
		LogLevel: slog.LevelDebug,
	}

	var buf bytes.Buffer
	log := logger.NewWithWriter(cfg, &buf)

	log.Debug("test message", "user_id", "u-1")

	output := buf.String()
	assert.Contains(t, output, "msg=\"test message\"")
	assert.Contains(t, output, "user_id=u-1")
}

func TestNewLogger_Production(t *testing.T) {
	cfg := &config.Config{
		AppEnv:   "production",
		LogLevel: slog.LevelInfo,
	}

	var buf bytes.Buffer
	log := logger.NewWithWriter(cfg, &buf)

	log.Info("test message", slog.String("key", "value"))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "test message", entry["msg"])
	assert.Equal(t, "value", entry["key"])
}

func TestNewLogger_LevelFiltering(t *testing.T) {
	cfg := &config.Config{
		AppEnv:   "production",
		LogLevel: slog.LevelInfo,
	}

	var buf bytes.Buffer
	log := logger.NewWithWriter(cfg, &buf)

	log.Debug("debug message")
	log.Info("info message")
	log.Warn("warn message")

	output := buf.String()
	assert.NotContains(t, output, "debug message")
	assert.Contains(t, output, "info message")
	assert.Contains(t, output, "warn message")
}

func TestNewLogger_SetsDefault(t *testing.T) {
	cfg := &config.Config{LogLevel: slog.LevelWarn}

	log := logger.New(cfg)

	assert.NotNil(t, log)
	assert.Same(t, log, slog.Default())
}
