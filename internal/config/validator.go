package config

import (
	"fmt"
	"os/exec"
	"strings"
)

// Validator validates configuration values
type Validator struct{}

// NewValidator creates a new validator
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateTTL validates the session idle timeout
func (v *Validator) ValidateTTL(seconds int) error {
	if seconds <= 0 {
		return fmt.Errorf("session.ttl_seconds must be positive, got %d", seconds)
	}
	return nil
}

// ValidateMaxLiveSessions validates the live session limit
func (v *Validator) ValidateMaxLiveSessions(n int) error {
	if n < 1 {
		return fmt.Errorf("session.max_live_sessions must be at least 1, got %d", n)
	}
	return nil
}

// ValidateMaxExpiredHistory validates the expired history bound
func (v *Validator) ValidateMaxExpiredHistory(n int) error {
	if n < 0 {
		return fmt.Errorf("session.max_expired_history must be >= 0, got %d", n)
	}
	return nil
}

// ValidateJanitorInterval validates the sweep interval. The scheduler has one
// second resolution.
func (v *Validator) ValidateJanitorInterval(seconds int) error {
	if seconds < 1 {
		return fmt.Errorf("session.janitor_interval_seconds must be at least 1, got %d", seconds)
	}
	return nil
}

// ValidateCommand checks that the application binary can be found
func (v *Validator) ValidateCommand(command []string) error {
	if len(command) == 0 {
		return nil
	}
	if strings.TrimSpace(command[0]) == "" {
		return fmt.Errorf("application.command: executable cannot be empty")
	}
	if _, err := exec.LookPath(command[0]); err != nil {
		return fmt.Errorf("application.command: %w", err)
	}
	return nil
}

// ValidatePort validates a TCP port
func (v *Validator) ValidatePort(port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("invalid port %d (must be 1-65535)", port)
	}
	return nil
}

// ValidateLogLevel validates a log level
func (v *Validator) ValidateLogLevel(level string) error {
	validLevels := []string{"debug", "info", "warn", "error"}
	for _, valid := range validLevels {
		if level == valid {
			return nil
		}
	}
	return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", level)
}

// ValidateConfig validates the entire configuration
func (v *Validator) ValidateConfig(cfg *Config) []error {
	var errors []error

	// Session limits
	if err := v.ValidateTTL(cfg.Session.TTLSeconds); err != nil {
		errors = append(errors, err)
	}
	if err := v.ValidateMaxLiveSessions(cfg.Session.MaxLiveSessions); err != nil {
		errors = append(errors, err)
	}
	if err := v.ValidateMaxExpiredHistory(cfg.Session.MaxExpiredHistory); err != nil {
		errors = append(errors, err)
	}
	if err := v.ValidateJanitorInterval(cfg.Session.JanitorIntervalSeconds); err != nil {
		errors = append(errors, err)
	}
	if cfg.Session.WatchDebounceMs < 0 {
		errors = append(errors, fmt.Errorf("session.watch_debounce_ms must be >= 0"))
	}
	if cfg.Session.TeardownConcurrency < 0 {
		errors = append(errors, fmt.Errorf("session.teardown_concurrency must be >= 0"))
	}

	// Application
	if err := v.ValidateCommand(cfg.Application.Command); err != nil {
		errors = append(errors, err)
	}
	if cfg.Application.QuitTimeoutSeconds < 0 {
		errors = append(errors, fmt.Errorf("application.quit_timeout_seconds must be >= 0"))
	}

	// Gateway
	if cfg.Gateway.Enabled {
		if err := v.ValidatePort(cfg.Gateway.Port); err != nil {
			errors = append(errors, fmt.Errorf("gateway: %w", err))
		}
		if strings.TrimSpace(cfg.Gateway.Host) == "" {
			errors = append(errors, fmt.Errorf("gateway.host cannot be empty"))
		}
	}

	// Tracing
	if cfg.Tracing.Enabled {
		if cfg.Tracing.SampleRatio < 0 || cfg.Tracing.SampleRatio > 1 {
			errors = append(errors, fmt.Errorf("tracing.sample_ratio must be within [0, 1], got %g", cfg.Tracing.SampleRatio))
		}
		if strings.TrimSpace(cfg.Tracing.ServiceName) == "" {
			errors = append(errors, fmt.Errorf("tracing.service_name cannot be empty"))
		}
	}

	// Logging
	if err := v.ValidateLogLevel(cfg.Logging.Level); err != nil {
		errors = append(errors, err)
	}

	return errors
}
