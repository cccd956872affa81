package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Run("console only", func(t *testing.T) {
		var buf bytes.Buffer
		l, err := New(Config{Level: "debug", Console: true, Output: &buf})
		require.NoError(t, err)
		defer l.Close()

		zl := l.Zerolog()
		zl.Debug().Str("session_id", "abc").Msg("opened")
		assert.Contains(t, buf.String(), `"session_id":"abc"`)
		assert.Equal(t, zerolog.DebugLevel, l.Zerolog().GetLevel())
	})

	t.Run("invalid level falls back to info", func(t *testing.T) {
		var buf bytes.Buffer
		l, err := New(Config{Level: "loud", Console: true, Output: &buf})
		require.NoError(t, err)
		defer l.Close()

		assert.Equal(t, zerolog.InfoLevel, l.Zerolog().GetLevel())
		zl := l.Zerolog()
		zl.Debug().Msg("hidden")
		assert.Empty(t, buf.String())
	})

	t.Run("file with rotation", func(t *testing.T) {
		logFile := filepath.Join(t.TempDir(), "logs", "xlsession.log")
		l, err := New(Config{Level: "info", File: logFile, MaxSize: 1})
		require.NoError(t, err)

		zl := l.Zerolog()
		zl.Info().Msg("to file")
		require.NoError(t, l.Close())

		content, err := os.ReadFile(logFile)
		require.NoError(t, err)
		assert.Contains(t, string(content), "to file")
	})

	t.Run("sets global logger", func(t *testing.T) {
		var buf bytes.Buffer
		l, err := New(Config{Level: "info", Console: true, Output: &buf})
		require.NoError(t, err)
		defer l.Close()

		log.Info().Msg("global")
		assert.Contains(t, buf.String(), "global")
	})
}

func TestNew_RedactsSecrets(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(Config{Level: "info", Console: true, Output: &buf, Secrets: []string{"s3cr3t-value"}})
	require.NoError(t, err)
	defer l.Close()

	zl := l.Zerolog()
	zl.Info().Str("auth", "s3cr3t-value").Msg("client connected")
	assert.NotContains(t, buf.String(), "s3cr3t-value")
	assert.Contains(t, buf.String(), "[REDACTED]")
}

func TestComponent(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(Config{Level: "info", Console: true, Output: &buf})
	require.NoError(t, err)
	defer l.Close()

	c := l.Component("gateway")
	c.Info().Msg("started")
	assert.Contains(t, buf.String(), `"component":"gateway"`)
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "info", cfg.Level)
	assert.True(t, cfg.Console)
	assert.Equal(t, 100, cfg.MaxSize)
	assert.Equal(t, 7, cfg.MaxAge)
}
