package cli

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/harun/xlsession/internal/config"
	"github.com/harun/xlsession/internal/daemon"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon status",
	Long:  `Show whether the daemon is running and, when its gateway answers, how many sessions it holds.`,
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	pidFile := daemon.PIDFile(cfg.DataDir)
	pid, err := daemon.ReadPID(pidFile)
	if err != nil || !daemon.ProcessAlive(pid) {
		fmt.Fprintln(out, "Status: stopped")
		return nil
	}

	fmt.Fprintln(out, "Status: running")
	fmt.Fprintf(out, "PID: %d\n", pid)
	if info, err := os.Stat(pidFile); err == nil {
		fmt.Fprintf(out, "Uptime: %s\n", formatDuration(time.Since(info.ModTime())))
	}

	if cfg.Gateway.Enabled {
		if health, err := fetchHealth(cfg.Gateway); err == nil {
			fmt.Fprintf(out, "Sessions: %d live, %d expired\n", health.Live, health.History)
			fmt.Fprintf(out, "Clients: %d\n", health.Clients)
		} else {
			fmt.Fprintf(out, "Gateway: unreachable (%v)\n", err)
		}
	}
	return nil
}

type healthReport struct {
	Status  string `json:"status"`
	Live    int    `json:"live"`
	History int    `json:"history"`
	Clients int    `json:"clients"`
}

func fetchHealth(gw config.GatewayConfig) (*healthReport, error) {
	client := &http.Client{Timeout: 2 * time.Second}
	url := "http://" + net.JoinHostPort(gw.Host, strconv.Itoa(gw.Port)) + "/healthz"

	resp, err := client.Get(url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var report healthReport
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		return nil, fmt.Errorf("invalid health response: %w", err)
	}
	return &report, nil
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh%dm%ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm%ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
