package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetrics(t *testing.T) {
	m := NewMetrics()
	require.NotNil(t, m)
	require.NotNil(t, m.Registry())

	assert.NotNil(t, m.SessionsLive)
	assert.NotNil(t, m.SessionsOpened)
	assert.NotNil(t, m.SessionsExpired)
	assert.NotNil(t, m.HistorySize)
	assert.NotNil(t, m.RecoveriesTotal)
	assert.NotNil(t, m.RPCRequestsTotal)
}

func TestMetricsHandler(t *testing.T) {
	m := NewMetrics()

	m.SessionsLive.Set(3)
	m.SessionsOpened.WithLabelValues("open").Inc()
	m.SessionsExpired.WithLabelValues("janitor").Inc()
	m.RecoveriesTotal.WithLabelValues("success").Inc()
	m.RPCRequestsTotal.WithLabelValues("session.open", "ok").Inc()

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	for _, name := range []string{
		"xlsession_sessions_live",
		"xlsession_sessions_opened_total",
		"xlsession_sessions_expired_total",
		"xlsession_recoveries_total",
		"xlsession_rpc_requests_total",
	} {
		assert.True(t, strings.Contains(body, name), "missing %s", name)
	}
}

func TestMetricsAreIsolatedPerInstance(t *testing.T) {
	a := NewMetrics()
	b := NewMetrics()

	a.SessionsEvicted.Inc()
	a.SessionsEvicted.Inc()

	assert.Equal(t, 2.0, testutil.ToFloat64(a.SessionsEvicted))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.SessionsEvicted))
}
