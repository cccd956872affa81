package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Wizard provides an interactive configuration wizard
type Wizard struct {
	reader *bufio.Reader
	out    io.Writer
}

// NewWizard creates a new configuration wizard reading from stdin
func NewWizard() *Wizard {
	return NewWizardWithIO(os.Stdin, os.Stdout)
}

// NewWizardWithIO creates a wizard over the given streams
func NewWizardWithIO(in io.Reader, out io.Writer) *Wizard {
	return &Wizard{
		reader: bufio.NewReader(in),
		out:    out,
	}
}

// Run runs the interactive configuration wizard
func (w *Wizard) Run() (*Config, error) {
	fmt.Fprintln(w.out, "=== xlsession Configuration Wizard ===")
	fmt.Fprintln(w.out)

	cfg := DefaultConfig()
	validator := NewValidator()

	fmt.Fprintln(w.out, "Sessions:")
	var err error
	if cfg.Session.TTLSeconds, err = w.askInt("Idle timeout in seconds", cfg.Session.TTLSeconds, validator.ValidateTTL); err != nil {
		return nil, err
	}
	if cfg.Session.MaxLiveSessions, err = w.askInt("Maximum open workbooks", cfg.Session.MaxLiveSessions, validator.ValidateMaxLiveSessions); err != nil {
		return nil, err
	}
	if cfg.Session.MaxExpiredHistory, err = w.askInt("Expired sessions kept for recovery", cfg.Session.MaxExpiredHistory, validator.ValidateMaxExpiredHistory); err != nil {
		return nil, err
	}
	fmt.Fprintln(w.out)

	// Application
	fmt.Fprintln(w.out, "Application:")
	fmt.Fprint(w.out, "Command to launch per session (empty for in-process documents): ")
	command, err := w.readLine()
	if err != nil {
		return nil, err
	}
	if command != "" {
		fields := strings.Fields(command)
		if err := validator.ValidateCommand(fields); err != nil {
			fmt.Fprintf(w.out, "Warning: %v\n", err)
		}
		cfg.Application.Command = fields
	}
	fmt.Fprintln(w.out)

	// Gateway
	fmt.Fprintln(w.out, "Gateway:")
	if cfg.Gateway.Port, err = w.askInt("Port", cfg.Gateway.Port, validator.ValidatePort); err != nil {
		return nil, err
	}
	fmt.Fprintln(w.out)

	// Log Level
	fmt.Fprintln(w.out, "Logging:")
	fmt.Fprintf(w.out, "Log level (debug/info/warn/error) [%s]: ", cfg.Logging.Level)
	level, err := w.readLine()
	if err != nil {
		return nil, err
	}

	if level != "" {
		if err := validator.ValidateLogLevel(level); err != nil {
			fmt.Fprintf(w.out, "Warning: %v, using default (info)\n", err)
		} else {
			cfg.Logging.Level = level
		}
	}

	fmt.Fprintln(w.out)
	fmt.Fprintln(w.out, "Configuration complete!")

	return cfg, nil
}

// askInt prompts until the answer is empty (keeping def) or a valid integer
func (w *Wizard) askInt(prompt string, def int, validate func(int) error) (int, error) {
	for {
		fmt.Fprintf(w.out, "%s [%d]: ", prompt, def)
		answer, err := w.readLine()
		if err != nil {
			return 0, err
		}
		if answer == "" {
			return def, nil
		}

		n, err := strconv.Atoi(answer)
		if err != nil {
			fmt.Fprintf(w.out, "Error: %q is not a number\n", answer)
			continue
		}
		if err := validate(n); err != nil {
			fmt.Fprintf(w.out, "Error: %v\n", err)
			continue
		}
		return n, nil
	}
}

func (w *Wizard) readLine() (string, error) {
	line, err := w.reader.ReadString('\n')
	if err != nil {
		if err == io.EOF && line != "" {
			return strings.TrimSpace(line), nil
		}
		return "", err
	}
	return strings.TrimSpace(line), nil
}
