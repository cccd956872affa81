package cli

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/harun/xlsession/pkg/filestate"
)

var checkCmd = &cobra.Command{
	Use:   "check <path>",
	Short: "Report whether a workbook exists and is locked",
	Long: `Report whether a workbook exists, when it last changed, and whether
another application currently holds it open. A locked file cannot be
opened read-write by the daemon.`,
	Args: cobra.ExactArgs(1),
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	path, err := filepath.Abs(args[0])
	if err != nil {
		return fmt.Errorf("invalid path: %w", err)
	}
	out := cmd.OutOrStdout()

	checker := filestate.NewOSChecker()
	state, err := checker.Stat(path)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Path: %s\n", path)
	if !state.Exists {
		fmt.Fprintln(out, "Exists: no (opening it creates an empty workbook)")
		return nil
	}
	fmt.Fprintln(out, "Exists: yes")
	fmt.Fprintf(out, "Size: %d bytes\n", state.Size)
	fmt.Fprintf(out, "Modified: %s\n", state.ModTime.Format(time.RFC3339))

	locked, err := checker.IsLocked(path)
	if err != nil {
		return fmt.Errorf("failed to check lock: %w", err)
	}
	if locked {
		fmt.Fprintln(out, "Locked: yes")
	} else {
		fmt.Fprintln(out, "Locked: no")
	}
	return nil
}
