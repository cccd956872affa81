package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harun/xlsession/internal/daemon"
	"github.com/harun/xlsession/internal/logger"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the session daemon in the foreground",
	Long: `Run the session store and its JSON-RPC gateway until interrupted.
On SIGINT or SIGTERM the gateway stops accepting requests and every open
workbook is closed.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	pidFile := daemon.PIDFile(cfg.DataDir)
	if pid, err := daemon.ReadPID(pidFile); err == nil && daemon.ProcessAlive(pid) {
		return fmt.Errorf("daemon is already running (pid %d, PID file: %s)", pid, pidFile)
	}

	var secrets []string
	if cfg.Gateway.SharedSecret != "" {
		secrets = append(secrets, cfg.Gateway.SharedSecret)
	}
	log, err := logger.New(logger.Config{
		Level:    cfg.Logging.Level,
		File:     cfg.Logging.File,
		Console:  cfg.Logging.Console,
		Pretty:   cfg.Logging.Pretty,
		MaxSize:  cfg.Logging.MaxSize,
		MaxAge:   cfg.Logging.MaxAge,
		Compress: cfg.Logging.Compress,
		Secrets:  secrets,
		Output:   cmd.ErrOrStderr(),
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer log.Close()

	d, err := daemon.New(cfg, log)
	if err != nil {
		return err
	}
	if err := d.Start(); err != nil {
		return err
	}

	d.Wait()
	return nil
}
