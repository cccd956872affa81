package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckCommand(t *testing.T) {
	dir := t.TempDir()

	t.Run("missing file", func(t *testing.T) {
		out, err := runCommand(t, "", "check", filepath.Join(dir, "missing.xlsx"))
		require.NoError(t, err)
		assert.Contains(t, out, "Exists: no")
	})

	t.Run("unlocked file", func(t *testing.T) {
		path := filepath.Join(dir, "report.xlsx")
		require.NoError(t, os.WriteFile(path, []byte("data"), 0644))

		out, err := runCommand(t, "", "check", path)
		require.NoError(t, err)
		assert.Contains(t, out, "Exists: yes")
		assert.Contains(t, out, "Size: 4 bytes")
		assert.Contains(t, out, "Locked: no")
	})

	t.Run("owner file marks lock", func(t *testing.T) {
		path := filepath.Join(dir, "budget.xlsx")
		require.NoError(t, os.WriteFile(path, []byte("data"), 0644))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "~$budget.xlsx"), nil, 0644))

		out, err := runCommand(t, "", "check", path)
		require.NoError(t, err)
		assert.Contains(t, out, "Locked: yes")
	})

	t.Run("requires path", func(t *testing.T) {
		_, err := runCommand(t, "", "check")
		assert.Error(t, err)
	})
}
