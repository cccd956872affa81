package config

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWizardRun_Defaults(t *testing.T) {
	var out bytes.Buffer
	w := NewWizardWithIO(strings.NewReader("\n\n\n\n\n\n"), &out)

	cfg, err := w.Run()
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Session, cfg.Session)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Contains(t, out.String(), "Configuration complete!")
}

func TestWizardRun_CustomValues(t *testing.T) {
	input := strings.Join([]string{
		"abc", // rejected, asked again
		"120",
		"0", // rejected by validator
		"3",
		"25",
		"sh -c true",
		"9001",
		"debug",
	}, "\n") + "\n"

	var out bytes.Buffer
	cfg, err := NewWizardWithIO(strings.NewReader(input), &out).Run()
	require.NoError(t, err)

	assert.Equal(t, 120, cfg.Session.TTLSeconds)
	assert.Equal(t, 3, cfg.Session.MaxLiveSessions)
	assert.Equal(t, 25, cfg.Session.MaxExpiredHistory)
	assert.Equal(t, []string{"sh", "-c", "true"}, cfg.Application.Command)
	assert.Equal(t, 9001, cfg.Gateway.Port)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Contains(t, out.String(), "is not a number")
}

func TestWizardRun_EOF(t *testing.T) {
	_, err := NewWizardWithIO(strings.NewReader(""), &bytes.Buffer{}).Run()
	assert.Error(t, err)
}
