package cli

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/harun/xlsession/internal/config"
)

// runCommand executes the root command with args and returns its output
func runCommand(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()

	cmd := GetRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	t.Cleanup(func() {
		cmd.SetArgs(nil)
		cfgFile, logLevel = "", ""
		for _, name := range []string{"help", "version"} {
			if f := cmd.Flags().Lookup(name); f != nil {
				_ = f.Value.Set("false")
				f.Changed = false
			}
		}
	})

	err := cmd.Execute()
	return buf.String(), err
}

// writeTestConfig saves a config with the gateway disabled into a temp dir
// and returns its path
func writeTestConfig(t *testing.T) (path string, cfg *config.Config) {
	t.Helper()

	dir := t.TempDir()
	cfg = config.DefaultConfig()
	cfg.DataDir = dir
	cfg.Gateway.Enabled = false
	path = filepath.Join(dir, "xlsession.json")
	require.NoError(t, config.NewLoader(path).Save(cfg))
	return path, cfg
}
