package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the session service
type Metrics struct {
	registry *prometheus.Registry

	// Session metrics
	SessionsLive       prometheus.Gauge
	SessionsOpened     *prometheus.CounterVec
	SessionsEvicted    prometheus.Counter
	SessionsExpired    *prometheus.CounterVec
	SessionsClosed     prometheus.Counter
	HistorySize        prometheus.Gauge
	RedirectsActive    prometheus.Gauge
	OpenDuration       prometheus.Histogram
	OpenFailuresTotal  *prometheus.CounterVec
	TeardownErrorTotal *prometheus.CounterVec

	// Recovery metrics
	RecoveriesTotal *prometheus.CounterVec

	// Gateway metrics
	RPCRequestsTotal   *prometheus.CounterVec
	RPCRequestDuration *prometheus.HistogramVec
	WSClients          prometheus.Gauge
}

// NewMetrics creates and registers all metrics
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,

		SessionsLive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "xlsession_sessions_live",
				Help: "Number of live workbook sessions",
			},
		),
		SessionsOpened: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "xlsession_sessions_opened_total",
				Help: "Total number of workbook sessions opened",
			},
			[]string{"mode"},
		),
		SessionsEvicted: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "xlsession_sessions_evicted_total",
				Help: "Total number of sessions evicted to make room",
			},
		),
		SessionsExpired: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "xlsession_sessions_expired_total",
				Help: "Total number of sessions expired after idling past the TTL",
			},
			[]string{"trigger"},
		),
		SessionsClosed: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "xlsession_sessions_closed_total",
				Help: "Total number of sessions closed explicitly",
			},
		),
		HistorySize: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "xlsession_expired_history_size",
				Help: "Number of expired sessions eligible for recovery",
			},
		),
		RedirectsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "xlsession_redirects_active",
				Help: "Number of stale session ids redirected to a recovered session",
			},
		),
		OpenDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "xlsession_open_duration_seconds",
				Help:    "Time spent launching an application and opening a document",
				Buckets: prometheus.DefBuckets,
			},
		),
		OpenFailuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "xlsession_open_failures_total",
				Help: "Total number of failed session opens",
			},
			[]string{"reason"},
		),
		TeardownErrorTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "xlsession_teardown_errors_total",
				Help: "Total number of errors while saving or quitting a session handle",
			},
			[]string{"cause"},
		),

		RecoveriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "xlsession_recoveries_total",
				Help: "Total number of recovery attempts for expired sessions",
			},
			[]string{"status"},
		),

		RPCRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "xlsession_rpc_requests_total",
				Help: "Total number of gateway RPC requests",
			},
			[]string{"method", "status"},
		),
		RPCRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "xlsession_rpc_request_duration_seconds",
				Help:    "Duration of gateway RPC requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method"},
		),
		WSClients: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "xlsession_ws_clients",
				Help: "Number of connected event stream clients",
			},
		),
	}

	m.registerMetrics()

	return m
}

func (m *Metrics) registerMetrics() {
	m.registry.MustRegister(
		m.SessionsLive,
		m.SessionsOpened,
		m.SessionsEvicted,
		m.SessionsExpired,
		m.SessionsClosed,
		m.HistorySize,
		m.RedirectsActive,
		m.OpenDuration,
		m.OpenFailuresTotal,
		m.TeardownErrorTotal,
		m.RecoveriesTotal,
		m.RPCRequestsTotal,
		m.RPCRequestDuration,
		m.WSClients,
	)
}

// Handler returns an HTTP handler for the /metrics endpoint
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Registry returns the Prometheus registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
