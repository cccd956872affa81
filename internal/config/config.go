package config

import (
	"encoding/json"
	"errors"
	"time"
)

// Config represents the main xlsession configuration
type Config struct {
	// Session store limits
	Session SessionConfig `json:"session" mapstructure:"session"`

	// Spreadsheet application launched per session
	Application ApplicationConfig `json:"application" mapstructure:"application"`

	// Logging
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`

	// Gateway configuration
	Gateway GatewayConfig `json:"gateway" mapstructure:"gateway"`

	// Tracing configuration
	Tracing TracingConfig `json:"tracing" mapstructure:"tracing"`

	// Data directory
	DataDir string `json:"data_dir" mapstructure:"data_dir"`
}

// SessionConfig holds the session store limits
type SessionConfig struct {
	TTLSeconds             int  `json:"ttl_seconds" mapstructure:"ttl_seconds"`
	MaxLiveSessions        int  `json:"max_live_sessions" mapstructure:"max_live_sessions"`
	MaxExpiredHistory      int  `json:"max_expired_history" mapstructure:"max_expired_history"`
	JanitorIntervalSeconds int  `json:"janitor_interval_seconds" mapstructure:"janitor_interval_seconds"`
	WatchFiles             bool `json:"watch_files" mapstructure:"watch_files"`
	WatchDebounceMs        int  `json:"watch_debounce_ms" mapstructure:"watch_debounce_ms"`
	TeardownConcurrency    int  `json:"teardown_concurrency" mapstructure:"teardown_concurrency"`
}

// TTL returns the idle timeout as a duration
func (s SessionConfig) TTL() time.Duration {
	return time.Duration(s.TTLSeconds) * time.Second
}

// JanitorInterval returns the sweep interval as a duration
func (s SessionConfig) JanitorInterval() time.Duration {
	return time.Duration(s.JanitorIntervalSeconds) * time.Second
}

// WatchDebounce returns the file watcher debounce as a duration
func (s SessionConfig) WatchDebounce() time.Duration {
	return time.Duration(s.WatchDebounceMs) * time.Millisecond
}

// ApplicationConfig describes the external application process. An empty
// command runs documents in-process without a companion application.
type ApplicationConfig struct {
	Command            []string `json:"command" mapstructure:"command"`
	HeadlessArgs       []string `json:"headless_args" mapstructure:"headless_args"`
	QuitTimeoutSeconds int      `json:"quit_timeout_seconds" mapstructure:"quit_timeout_seconds"`
}

// QuitTimeout returns how long a quitting application may take before it is killed
func (a ApplicationConfig) QuitTimeout() time.Duration {
	return time.Duration(a.QuitTimeoutSeconds) * time.Second
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level    string `json:"level" mapstructure:"level"`
	File     string `json:"file" mapstructure:"file"`
	Console  bool   `json:"console" mapstructure:"console"`
	Pretty   bool   `json:"pretty" mapstructure:"pretty"`
	MaxSize  int    `json:"max_size" mapstructure:"max_size"` // MB
	MaxAge   int    `json:"max_age" mapstructure:"max_age"`   // days
	Compress bool   `json:"compress" mapstructure:"compress"`
	// AuditFile receives one JSON line per session open/close and auth
	// decision made through the gateway. Empty disables the audit trail.
	AuditFile string `json:"audit_file" mapstructure:"audit_file"`
}

// GatewayConfig holds gateway server configuration
type GatewayConfig struct {
	Enabled                bool   `json:"enabled" mapstructure:"enabled"`
	Port                   int    `json:"port" mapstructure:"port"`
	Host                   string `json:"host" mapstructure:"host"`
	SharedSecret           string `json:"shared_secret" mapstructure:"shared_secret"`
	ShutdownTimeoutSeconds int    `json:"shutdown_timeout_seconds" mapstructure:"shutdown_timeout_seconds"`
}

// TracingConfig holds OpenTelemetry configuration
type TracingConfig struct {
	Enabled     bool    `json:"enabled" mapstructure:"enabled"`
	ServiceName string  `json:"service_name" mapstructure:"service_name"`
	SampleRatio float64 `json:"sample_ratio" mapstructure:"sample_ratio"`
}

// DefaultConfig returns a config with default values
func DefaultConfig() *Config {
	return &Config{
		Session: SessionConfig{
			TTLSeconds:             600,
			MaxLiveSessions:        8,
			MaxExpiredHistory:      10,
			JanitorIntervalSeconds: 30,
			WatchFiles:             true,
			WatchDebounceMs:        250,
			TeardownConcurrency:    4,
		},
		Application: ApplicationConfig{
			Command:            []string{},
			HeadlessArgs:       []string{},
			QuitTimeoutSeconds: 10,
		},
		Logging: LoggingConfig{
			Level:    "info",
			Console:  true,
			MaxSize:  100,
			MaxAge:   7,
			Compress: true,
		},
		Gateway: GatewayConfig{
			Enabled:                true,
			Port:                   8765,
			Host:                   "127.0.0.1",
			ShutdownTimeoutSeconds: 10,
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "xlsession",
			SampleRatio: 1.0,
		},
		DataDir: "",
	}
}

// String returns a JSON representation of the config
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	return errors.Join(NewValidator().ValidateConfig(c)...)
}
