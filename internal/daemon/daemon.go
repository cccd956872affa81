package daemon

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/harun/xlsession/internal/config"
	"github.com/harun/xlsession/internal/logger"
	"github.com/harun/xlsession/internal/metrics"
	"github.com/harun/xlsession/internal/observability"
	"github.com/harun/xlsession/internal/tracing"
	"github.com/harun/xlsession/pkg/gateway"
	"github.com/harun/xlsession/pkg/session"
	"github.com/harun/xlsession/pkg/workbook"
)

// Daemon owns the process-wide session store and the gateway in front of it
type Daemon struct {
	config  *config.Config
	logger  *logger.Logger
	metrics *metrics.Metrics

	store         *session.Store
	gatewayServer *gateway.Server
	eventSink     atomic.Pointer[gateway.Server]
	audit         *observability.AuditLogger

	eventLoop *EventLoop
	lifecycle *LifecycleManager

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	startTime time.Time
	running   bool
	mu        sync.RWMutex

	tracer         *tracing.Provider
}

// Status describes a running daemon
type Status struct {
	Running   bool
	Uptime    time.Duration
	StartTime time.Time
	Sessions  session.Stats
}

// New builds the store and gateway described by cfg. extra options are
// applied to the session store after the ones derived from cfg.
func New(cfg *config.Config, log *logger.Logger, extra ...session.Option) (*Daemon, error) {
	ctx, cancel := context.WithCancel(context.Background())

	d := &Daemon{
		config:  cfg,
		logger:  log,
		metrics: metrics.NewMetrics(),
		ctx:     ctx,
		cancel:  cancel,
	}

	if cfg.Tracing.Enabled {
		tp, err := tracing.Setup(tracing.Config{
			ServiceName: cfg.Tracing.ServiceName,
			InstanceID:  instanceID(),
			SampleRatio: cfg.Tracing.SampleRatio,
		})
		if err != nil {
			zl := log.Zerolog()
			zl.Warn().Err(err).Msg("Failed to initialize tracing, continuing without it")
		} else {
			d.tracer = tp
			zl := log.Zerolog()
			zl.Info().
				Str("service", cfg.Tracing.ServiceName).
				Float64("sample_ratio", cfg.Tracing.SampleRatio).
				Msg("Tracing initialized")
		}
	}

	if err := d.initialize(extra); err != nil {
		cancel()
		d.shutdownTracing(d.log())
		return nil, err
	}

	d.eventLoop = NewEventLoop(d)
	d.lifecycle = NewLifecycleManager(d)

	return d, nil
}

func (d *Daemon) initialize(extra []session.Option) error {
	var publish func(session.Event)

	if d.config.Gateway.Enabled {
		// The gateway needs the store and the store needs the gateway's event
		// sink, so events are routed through a late-bound closure
		publish = func(ev session.Event) {
			if srv := d.eventSink.Load(); srv != nil {
				srv.PublishSessionEvent(ev)
			}
		}
	}

	opts := []session.Option{
		session.WithLauncher(workbook.NewExcelLauncher(AppConfig(d.config.Application))),
		session.WithLogger(d.logger.Component("session")),
		session.WithMetrics(d.metrics),
	}
	if publish != nil {
		opts = append(opts, session.WithEventHandler(publish))
	}
	opts = append(opts, extra...)

	store, err := session.New(StoreConfig(d.config.Session), opts...)
	if err != nil {
		return fmt.Errorf("failed to create session store: %w", err)
	}
	d.store = store
	logger := d.log()
	logger.Info().
		Dur("ttl", d.config.Session.TTL()).
		Int("max_live_sessions", d.config.Session.MaxLiveSessions).
		Int("max_expired_history", d.config.Session.MaxExpiredHistory).
		Msg("Session store initialized")

	if !d.config.Gateway.Enabled {
		return nil
	}

	if path := d.config.Logging.AuditFile; path != "" {
		audit, err := observability.OpenAuditLog(path)
		if err != nil {
			store.CloseAll(context.Background())
			return err
		}
		d.audit = audit
	}

	srv, err := gateway.NewServer(gateway.Config{
		Host:            d.config.Gateway.Host,
		Port:            d.config.Gateway.Port,
		SharedSecret:    d.config.Gateway.SharedSecret,
		ShutdownTimeout: time.Duration(d.config.Gateway.ShutdownTimeoutSeconds) * time.Second,
		Store:           store,
		Metrics:         d.metrics,
		Audit:           d.audit,
		Logger:          d.logger.Zerolog(),
	})
	if err != nil {
		store.CloseAll(context.Background())
		_ = d.audit.Close()
		return fmt.Errorf("failed to create gateway server: %w", err)
	}
	d.gatewayServer = srv
	d.eventSink.Store(srv)
	return nil
}

// StoreConfig converts the session section of the config file
func StoreConfig(c config.SessionConfig) session.Config {
	return session.Config{
		TTL:                 c.TTL(),
		MaxLiveSessions:     c.MaxLiveSessions,
		MaxExpiredHistory:   c.MaxExpiredHistory,
		JanitorInterval:     c.JanitorInterval(),
		WatchFiles:          c.WatchFiles,
		WatchDebounce:       c.WatchDebounce(),
		TeardownConcurrency: c.TeardownConcurrency,
	}
}

// AppConfig converts the application section of the config file
func AppConfig(c config.ApplicationConfig) workbook.AppConfig {
	return workbook.AppConfig{
		Command:      c.Command,
		HeadlessArgs: c.HeadlessArgs,
		QuitTimeout:  c.QuitTimeout(),
	}
}

// Start writes the PID file, starts the gateway and the event loop
func (d *Daemon) Start() error {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return fmt.Errorf("daemon is already running")
	}
	d.running = true
	d.startTime = time.Now()
	d.mu.Unlock()

	logger := d.log().With().Str("trace_id", tracing.NewTraceID()).Logger()
	logger.Info().Msg("Starting xlsession daemon")

	if err := d.lifecycle.Start(); err != nil {
		d.setStopped()
		return fmt.Errorf("failed to start lifecycle manager: %w", err)
	}

	if d.gatewayServer != nil {
		if err := d.gatewayServer.Start(); err != nil {
			_ = d.lifecycle.Stop()
			d.setStopped()
			return fmt.Errorf("failed to start gateway server: %w", err)
		}
		logger.Info().Str("addr", d.gatewayServer.Addr()).Msg("Gateway server started")
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.eventLoop.Run(d.ctx)
	}()

	logger.Info().Msg("Daemon started")
	return nil
}

// Stop stops the gateway first so no new sessions arrive, then drains the
// store
func (d *Daemon) Stop() error {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return fmt.Errorf("daemon is not running")
	}
	d.running = false
	d.mu.Unlock()

	logger := d.log().With().Str("trace_id", tracing.NewTraceID()).Logger()
	logger.Info().Msg("Stopping xlsession daemon")

	if d.gatewayServer != nil {
		if err := d.gatewayServer.Stop(context.Background()); err != nil {
			logger.Error().Err(err).Msg("Failed to stop gateway server")
		}
	}

	d.cancel()
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		logger.Warn().Msg("Timeout waiting for goroutines to stop")
	}

	d.store.CloseAll(context.Background())

	if err := d.lifecycle.Stop(); err != nil {
		logger.Error().Err(err).Msg("Failed to stop lifecycle manager")
	}

	if err := d.audit.Close(); err != nil {
		logger.Error().Err(err).Msg("Failed to close audit log")
	}

	d.shutdownTracing(logger)

	logger.Info().Msg("Daemon stopped")
	return nil
}

func (d *Daemon) setStopped() {
	d.mu.Lock()
	d.running = false
	d.mu.Unlock()
}

func (d *Daemon) shutdownTracing(logger zerolog.Logger) {
	if d.tracer == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := d.tracer.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("Failed to shutdown tracing")
	}
	d.tracer = nil
}

func instanceID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "localhost"
	}
	return fmt.Sprintf("%s-%d", host, os.Getpid())
}

// Status returns the daemon state and store occupancy
func (d *Daemon) Status() Status {
	d.mu.RLock()
	defer d.mu.RUnlock()

	status := Status{
		Running:  d.running,
		Sessions: d.store.Stats(),
	}
	if d.running {
		status.Uptime = time.Since(d.startTime)
		status.StartTime = d.startTime
	}
	return status
}

// Wait blocks until SIGINT or SIGTERM, then stops the daemon
func (d *Daemon) Wait() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	sig := <-sigChan
	logger := d.log()
	logger.Info().Str("signal", sig.String()).Msg("Received signal")

	if err := d.Stop(); err != nil {
		logger.Error().Err(err).Msg("Failed to stop daemon")
	}
}

// Config returns the daemon configuration
func (d *Daemon) Config() *config.Config {
	return d.config
}

// Store returns the session store
func (d *Daemon) Store() *session.Store {
	return d.store
}

// Gateway returns the gateway server, nil when disabled
func (d *Daemon) Gateway() *gateway.Server {
	return d.gatewayServer
}

// Metrics returns the daemon's metric registry
func (d *Daemon) Metrics() *metrics.Metrics {
	return d.metrics
}

func (d *Daemon) log() zerolog.Logger {
	return d.logger.Component("daemon")
}
