package daemon

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harun/xlsession/internal/config"
	"github.com/harun/xlsession/internal/logger"
	"github.com/harun/xlsession/pkg/gateway"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.DataDir = t.TempDir()
	cfg.Session.WatchFiles = false
	cfg.Gateway.Port = 0
	return cfg
}

func createTestDaemon(t *testing.T, cfg *config.Config) *Daemon {
	t.Helper()

	log, err := logger.New(logger.Config{Level: "error", Output: io.Discard})
	require.NoError(t, err)
	t.Cleanup(func() { log.Close() })

	d, err := New(cfg, log)
	require.NoError(t, err)
	t.Cleanup(func() { d.Store().CloseAll(context.Background()) })
	return d
}

func rpc(t *testing.T, d *Daemon, body string) gateway.RPCResponse {
	t.Helper()

	resp, err := http.Post("http://"+d.Gateway().Addr()+"/rpc", "application/json", bytes.NewBufferString(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	var out gateway.RPCResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestNew(t *testing.T) {
	d := createTestDaemon(t, testConfig(t))

	assert.NotNil(t, d.Store())
	assert.NotNil(t, d.Gateway())
	assert.NotNil(t, d.Metrics())
	assert.NotNil(t, d.eventLoop)
	assert.NotNil(t, d.lifecycle)
	assert.Equal(t, 8, d.Store().Config().MaxLiveSessions)
}

func TestNew_GatewayDisabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.Gateway.Enabled = false
	d := createTestDaemon(t, cfg)

	assert.Nil(t, d.Gateway())
	require.NoError(t, d.Start())
	require.NoError(t, d.Stop())
}

func TestStoreConfig(t *testing.T) {
	sc := config.DefaultConfig().Session
	sc.TTLSeconds = 5
	sc.JanitorIntervalSeconds = 2
	sc.WatchDebounceMs = 100

	got := StoreConfig(sc)
	assert.Equal(t, 5*time.Second, got.TTL)
	assert.Equal(t, 2*time.Second, got.JanitorInterval)
	assert.Equal(t, 100*time.Millisecond, got.WatchDebounce)
	assert.Equal(t, sc.MaxLiveSessions, got.MaxLiveSessions)
	assert.Equal(t, sc.MaxExpiredHistory, got.MaxExpiredHistory)
	assert.NoError(t, got.Validate())

	app := AppConfig(config.ApplicationConfig{Command: []string{"soffice"}, QuitTimeoutSeconds: 3})
	assert.Equal(t, []string{"soffice"}, app.Command)
	assert.Equal(t, 3*time.Second, app.QuitTimeout)
}

func TestDaemonStartStop(t *testing.T) {
	cfg := testConfig(t)
	d := createTestDaemon(t, cfg)

	require.NoError(t, d.Start())
	assert.Error(t, d.Start())

	status := d.Status()
	assert.True(t, status.Running)
	assert.False(t, status.StartTime.IsZero())

	pid, err := ReadPID(PIDFile(cfg.DataDir))
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)

	require.NoError(t, d.Stop())
	assert.Error(t, d.Stop())

	status = d.Status()
	assert.False(t, status.Running)
	assert.True(t, status.Sessions.Closed)

	_, err = os.Stat(PIDFile(cfg.DataDir))
	assert.True(t, os.IsNotExist(err))
}

func TestDaemonServesSessions(t *testing.T) {
	d := createTestDaemon(t, testConfig(t))
	require.NoError(t, d.Start())
	defer d.Stop()

	path := filepath.Join(t.TempDir(), "reports", "q1.xlsx")

	resp := rpc(t, d, `{"id":"1","method":"session.open","params":{"path":"`+path+`"}}`)
	require.Nil(t, resp.Error)
	id := resp.Result.(map[string]interface{})["session_id"].(string)
	assert.NotEmpty(t, id)
	assert.FileExists(t, path)

	resp = rpc(t, d, `{"id":"2","method":"session.acquire","params":{"session_id":"`+id+`"}}`)
	require.Nil(t, resp.Error)
	result := resp.Result.(map[string]interface{})
	assert.Equal(t, "found", result["outcome"])

	resp = rpc(t, d, `{"id":"3","method":"session.close","params":{"session_id":"`+id+`"}}`)
	require.Nil(t, resp.Error)

	resp = rpc(t, d, `{"id":"4","method":"session.acquire","params":{"session_id":"`+id+`"}}`)
	require.NotNil(t, resp.Error)
	assert.Equal(t, gateway.SessionNotFound, resp.Error.Code)

	assert.Equal(t, 0, d.Status().Sessions.Live)
}

func TestDaemonWritesAuditLog(t *testing.T) {
	cfg := testConfig(t)
	cfg.Logging.AuditFile = filepath.Join(cfg.DataDir, "audit.log")
	d := createTestDaemon(t, cfg)
	require.NoError(t, d.Start())

	path := filepath.Join(t.TempDir(), "audit.xlsx")
	resp := rpc(t, d, `{"id":"1","method":"session.open","params":{"path":"`+path+`"}}`)
	require.Nil(t, resp.Error)
	require.NoError(t, d.Stop())

	data, err := os.ReadFile(cfg.Logging.AuditFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"action":"session.open"`)
	assert.Contains(t, string(data), `"status":"success"`)
}
