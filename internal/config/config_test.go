package config

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 600, cfg.Session.TTLSeconds)
	assert.Equal(t, 8, cfg.Session.MaxLiveSessions)
	assert.Equal(t, 10, cfg.Session.MaxExpiredHistory)
	assert.Equal(t, 30, cfg.Session.JanitorIntervalSeconds)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, 8765, cfg.Gateway.Port)
	assert.Empty(t, cfg.Application.Command)
	assert.False(t, cfg.Tracing.Enabled)
	assert.Equal(t, 1.0, cfg.Tracing.SampleRatio)

	require.NoError(t, cfg.Validate())
}

func TestSessionDurations(t *testing.T) {
	s := SessionConfig{TTLSeconds: 90, JanitorIntervalSeconds: 5, WatchDebounceMs: 250}

	assert.Equal(t, 90*time.Second, s.TTL())
	assert.Equal(t, 5*time.Second, s.JanitorInterval())
	assert.Equal(t, 250*time.Millisecond, s.WatchDebounce())
	assert.Equal(t, 3*time.Second, ApplicationConfig{QuitTimeoutSeconds: 3}.QuitTimeout())
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "defaults",
			mutate: func(c *Config) {},
		},
		{
			name:    "zero ttl",
			mutate:  func(c *Config) { c.Session.TTLSeconds = 0 },
			wantErr: "ttl_seconds",
		},
		{
			name:    "no live sessions",
			mutate:  func(c *Config) { c.Session.MaxLiveSessions = 0 },
			wantErr: "max_live_sessions",
		},
		{
			name:    "negative history",
			mutate:  func(c *Config) { c.Session.MaxExpiredHistory = -1 },
			wantErr: "max_expired_history",
		},
		{
			name:    "sub-second janitor",
			mutate:  func(c *Config) { c.Session.JanitorIntervalSeconds = 0 },
			wantErr: "janitor_interval_seconds",
		},
		{
			name:    "missing application binary",
			mutate:  func(c *Config) { c.Application.Command = []string{"xlsession-no-such-binary"} },
			wantErr: "application.command",
		},
		{
			name:    "bad gateway port",
			mutate:  func(c *Config) { c.Gateway.Port = 70000 },
			wantErr: "invalid port",
		},
		{
			name: "gateway port ignored when disabled",
			mutate: func(c *Config) {
				c.Gateway.Enabled = false
				c.Gateway.Port = 0
			},
		},
		{
			name: "sample ratio above one",
			mutate: func(c *Config) {
				c.Tracing.Enabled = true
				c.Tracing.SampleRatio = 1.5
			},
			wantErr: "tracing.sample_ratio",
		},
		{
			name: "sample ratio ignored when tracing disabled",
			mutate: func(c *Config) {
				c.Tracing.Enabled = false
				c.Tracing.SampleRatio = -1
			},
		},
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.Logging.Level = "verbose" },
			wantErr: "invalid log level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)

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

func TestConfigString(t *testing.T) {
	cfg := DefaultConfig()

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(cfg.String()), &decoded))
	assert.Contains(t, decoded, "session")
	assert.Contains(t, decoded, "gateway")
}
