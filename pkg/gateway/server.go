package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"

	"github.com/harun/xlsession/internal/metrics"
	"github.com/harun/xlsession/internal/observability"
	"github.com/harun/xlsession/internal/tracing"
	"github.com/harun/xlsession/pkg/session"
)

const (
	maxRequestBytes        = 1 << 20
	defaultShutdownTimeout = 30 * time.Second
)

// SessionStore is the part of session.Store the gateway exposes
type SessionStore interface {
	Open(ctx context.Context, path string, visible, readOnly bool) (string, error)
	Acquire(ctx context.Context, id string) (*session.Acquired, error)
	Close(ctx context.Context, id string, save bool) error
	List() []session.Info
	Stats() session.Stats
	History() []session.HistoryEntry
}

// Server exposes a session store over JSON-RPC (HTTP and WebSocket) and
// streams store lifecycle events to WebSocket clients
type Server struct {
	addr            string
	shutdownTimeout time.Duration
	server          *http.Server
	listener        net.Listener
	upgrader        websocket.Upgrader
	clients         *ClientRegistry
	router          *RPCRouter
	auth            *AuthHandler
	broadcaster     *EventBroadcaster
	store           SessionStore
	metrics         *metrics.Metrics
	audit           *observability.AuditLogger
	logger          zerolog.Logger

	shutdownMu     sync.RWMutex
	isShuttingDown bool
	inFlightReqs   sync.WaitGroup

	baseCtx    context.Context
	cancelBase context.CancelFunc
	pumpDone   chan struct{}
}

// Config holds server configuration
type Config struct {
	Host            string
	Port            int // 0 picks a free port
	SharedSecret    string
	ShutdownTimeout time.Duration
	Store           SessionStore
	Metrics         *metrics.Metrics
	Audit           *observability.AuditLogger // nil disables the audit trail
	Logger          zerolog.Logger
}

// NewServer creates a new gateway server
func NewServer(cfg Config) (*Server, error) {
	if cfg.Port < 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("invalid port: %d", cfg.Port)
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("session store is required")
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = defaultShutdownTimeout
	}

	logger := cfg.Logger.With().Str("component", "gateway").Logger()
	clients := NewClientRegistry()
	baseCtx, cancel := context.WithCancel(context.Background())

	s := &Server{
		addr:            net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		shutdownTimeout: cfg.ShutdownTimeout,
		clients:         clients,
		router:          NewRPCRouter(),
		auth:            NewAuthHandler(cfg.SharedSecret),
		broadcaster:     NewEventBroadcaster(clients, logger),
		store:           cfg.Store,
		metrics:         cfg.Metrics,
		audit:           cfg.Audit,
		logger:          logger,
		baseCtx:         baseCtx,
		cancelBase:      cancel,
		upgrader: websocket.Upgrader{
			// Same-host tools connect without an Origin; the shared secret gates access
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}

	if err := s.registerSessionMethods(); err != nil {
		cancel()
		return nil, err
	}

	return s, nil
}

// Handler returns the HTTP routes served by the gateway
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/rpc", s.handleRPC)
	if s.metrics != nil {
		mux.Handle("/metrics", s.metrics.Handler())
	}
	mux.HandleFunc("/healthz", s.handleHealth)
	return mux
}

// Start binds the listener and serves in the background
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}

	s.listener = listener
	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.pumpDone = make(chan struct{})
	go func() {
		defer close(s.pumpDone)
		s.broadcaster.Run(s.baseCtx)
	}()

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("Gateway server error")
		}
	}()

	s.logger.Info().Str("addr", listener.Addr().String()).Msg("Gateway listening")
	return nil
}

// Addr returns the bound address once started
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.addr
	}
	return s.listener.Addr().String()
}

// Stop refuses new requests, waits for in-flight ones, disconnects clients
// and shuts the HTTP server down
func (s *Server) Stop(ctx context.Context) error {
	s.shutdownMu.Lock()
	if s.isShuttingDown {
		s.shutdownMu.Unlock()
		return nil
	}
	s.isShuttingDown = true
	s.shutdownMu.Unlock()

	s.logger.Info().Msg("Shutting down gateway")

	s.broadcaster.Broadcast("server.shutdown", map[string]interface{}{
		"message": "Server is shutting down",
	})

	done := make(chan struct{})
	go func() {
		s.inFlightReqs.Wait()
		close(done)
	}()

	timer := time.NewTimer(s.shutdownTimeout)
	defer timer.Stop()
	select {
	case <-done:
	case <-timer.C:
		s.logger.Warn().Dur("timeout", s.shutdownTimeout).Msg("Shutdown timeout reached, forcing close")
	case <-ctx.Done():
		s.logger.Warn().Err(ctx.Err()).Msg("Shutdown cancelled, forcing close")
	}

	s.cancelBase()
	if s.pumpDone != nil {
		<-s.pumpDone
	}

	for _, client := range s.clients.All() {
		client.Conn.Close()
	}

	if s.server == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	s.logger.Info().Msg("Gateway stopped")
	return nil
}

// PublishSessionEvent forwards a store event to WebSocket clients
func (s *Server) PublishSessionEvent(ev session.Event) {
	s.broadcaster.PublishSessionEvent(ev)
}

// Broadcast sends an event to all authenticated clients
func (s *Server) Broadcast(event string, data interface{}) {
	s.broadcaster.Broadcast(event, data)
}

// RegisterMethod registers an additional RPC method
func (s *Server) RegisterMethod(name string, schema map[string]interface{}, handler RequestHandler) error {
	return s.router.RegisterMethod(name, schema, handler)
}

// ConnectedClients describes every WebSocket client
func (s *Server) ConnectedClients() []ClientInfo {
	return s.clients.Infos(time.Now())
}

// admit registers a request with the shutdown barrier
func (s *Server) admit() bool {
	s.shutdownMu.RLock()
	defer s.shutdownMu.RUnlock()

	if s.isShuttingDown {
		return false
	}
	s.inFlightReqs.Add(1)
	return true
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	stats := s.store.Stats()
	status, code := "ok", http.StatusOK
	if stats.Closed {
		status, code = "closed", http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  status,
		"live":    stats.Live,
		"history": stats.History,
		"clients": s.clients.Count(),
	})
}

// handleRPC handles single-shot HTTP JSON-RPC requests
func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if !s.auth.AuthorizeRequest(r) {
		s.audit.RecordSecurity(r.Context(), "auth", httpActor(r), "failure", map[string]interface{}{
			"transport": "http",
		})
		writeJSON(w, http.StatusUnauthorized, errorResponse("", &RPCError{
			Code:    AuthenticationRequired,
			Message: "Authentication required",
		}))
		return
	}

	if !s.admit() {
		http.Error(w, "server is shutting down", http.StatusServiceUnavailable)
		return
	}
	defer s.inFlightReqs.Done()

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse("", &RPCError{
			Code:    InvalidRequest,
			Message: "failed to read request body",
			Data:    err.Error(),
		}))
		return
	}

	req, err := s.router.ParseRequest(body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse("", toRPCError(err)))
		return
	}

	ctx := tracing.WithClientID(tracing.WithRequestID(r.Context(), req.ID), httpActor(r))
	if traceID := r.Header.Get("X-Trace-Id"); traceID != "" {
		ctx = tracing.WithTraceID(ctx, traceID)
	} else {
		ctx = tracing.WithTraceID(ctx, tracing.NewTraceID())
	}

	writeJSON(w, http.StatusOK, s.dispatch(ctx, req))
}

// dispatch routes req and records its outcome
func (s *Server) dispatch(ctx context.Context, req *RPCRequest) *RPCResponse {
	logger := tracing.LoggerFromContext(ctx, s.logger)
	start := time.Now()

	resp := s.router.RouteRequest(ctx, req)
	elapsed := time.Since(start)

	label := req.Method
	if !s.router.HasMethod(label) {
		label = "unknown"
	}
	status := "ok"
	if resp.Error != nil {
		status = "error"
	}
	if s.metrics != nil {
		s.metrics.RPCRequestsTotal.WithLabelValues(label, status).Inc()
		s.metrics.RPCRequestDuration.WithLabelValues(label).Observe(elapsed.Seconds())
	}

	event := logger.Debug()
	if resp.Error != nil {
		event = logger.Warn().Int("code", resp.Error.Code).Str("error", resp.Error.Message)
	}
	event.Str("method", req.Method).Dur("duration", elapsed).Msg("RPC request handled")

	s.auditRequest(ctx, req, resp)
	return resp
}

// auditedMethods change the session pool and are written to the audit trail
var auditedMethods = map[string]bool{
	"session.open":  true,
	"session.close": true,
}

func (s *Server) auditRequest(ctx context.Context, req *RPCRequest, resp *RPCResponse) {
	if s.audit == nil || !auditedMethods[req.Method] {
		return
	}

	metadata := make(map[string]interface{})
	for _, key := range []string{"path", "session_id", "read_only", "save"} {
		if v, ok := req.Params[key]; ok {
			metadata[key] = v
		}
	}
	if resp.Error == nil {
		if result, ok := resp.Result.(map[string]interface{}); ok {
			if id, ok := result["session_id"]; ok {
				metadata["session_id"] = id
			}
		}
	}

	var err error
	if resp.Error != nil {
		err = resp.Error
	}
	s.audit.RecordSession(ctx, req.Method, tracing.GetClientID(ctx), err, metadata)
}

func httpActor(r *http.Request) string {
	return "http:" + r.RemoteAddr
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// handleWebSocket upgrades a connection and starts its read loop
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	s.shutdownMu.RLock()
	shuttingDown := s.isShuttingDown
	s.shutdownMu.RUnlock()
	if shuttingDown {
		http.Error(w, "server is shutting down", http.StatusServiceUnavailable)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to upgrade connection")
		return
	}

	now := time.Now()
	client := &Client{
		ID:           gonanoid.Must(),
		Conn:         conn,
		ConnectedAt:  now,
		LastActivity: now,
		IPAddress:    r.RemoteAddr,
		Limiter:      NewClientRateLimiter(),
		State:        StateConnecting,
	}
	s.clients.Add(client)
	if s.metrics != nil {
		s.metrics.WSClients.Inc()
	}

	s.logger.Info().
		Str("client_id", client.ID).
		Str("ip", r.RemoteAddr).
		Msg("Client connected")

	if err := s.greet(client); err != nil {
		s.logger.Error().Err(err).Str("client_id", client.ID).Msg("Failed to greet client")
		s.disconnect(client)
		return
	}

	go s.handleClient(client)
}

// greet sends the auth challenge, or admits the client outright when no
// shared secret is configured
func (s *Server) greet(client *Client) error {
	if !s.auth.Enabled() {
		client.markAuthenticated()
		return client.WriteJSON(AuthResult{Event: "auth.success", Success: true})
	}

	challenge, err := s.auth.GenerateChallenge()
	if err != nil {
		return err
	}
	client.Challenge = challenge
	client.State = StateAuthenticating

	return client.WriteJSON(AuthChallenge{
		Event:     "auth.challenge",
		Challenge: challenge,
	})
}

func (s *Server) disconnect(client *Client) {
	client.Conn.Close()
	client.State = StateDisconnected
	if s.clients.Remove(client.ID) && s.metrics != nil {
		s.metrics.WSClients.Dec()
	}
}

// handleClient reads frames from a client until it disconnects
func (s *Server) handleClient(client *Client) {
	defer func() {
		s.disconnect(client)
		s.logger.Info().Str("client_id", client.ID).Msg("Client disconnected")
	}()

	for {
		_, message, err := client.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn().Err(err).Str("client_id", client.ID).Msg("WebSocket error")
			}
			return
		}

		s.clients.Touch(client.ID, time.Now())
		if !s.handleMessage(client, message) {
			return
		}
	}
}

// handleMessage handles one frame and reports whether to keep reading
func (s *Server) handleMessage(client *Client, message []byte) bool {
	var authResp AuthResponse
	if err := json.Unmarshal(message, &authResp); err == nil && authResp.Method == "auth.response" {
		return s.handleAuthMessage(client, authResp)
	}

	if !client.Authenticated() {
		s.sendError(client, "", AuthenticationRequired, "Authentication required")
		return true
	}

	req, err := s.router.ParseRequest(message)
	if err != nil {
		rpcErr := toRPCError(err)
		s.sendError(client, "", rpcErr.Code, rpcErr.Message)
		return true
	}

	if ok, code, reason := client.Limiter.Begin(time.Now()); !ok {
		s.sendError(client, req.ID, code, reason)
		return true
	}
	if !s.admit() {
		client.Limiter.End()
		s.sendError(client, req.ID, InternalError, "server is shutting down")
		return true
	}

	ctx := tracing.WithClientID(s.baseCtx, client.ID)
	ctx = tracing.NewRequestContext(ctx, req.ID)

	go func() {
		defer s.inFlightReqs.Done()
		defer client.Limiter.End()

		response := s.dispatch(ctx, req)
		if err := client.WriteJSON(response); err != nil {
			s.logger.Warn().
				Err(err).
				Str("client_id", client.ID).
				Str("request_id", req.ID).
				Msg("Failed to send response")
		}
	}()
	return true
}

// handleAuthMessage verifies a challenge response, closing the connection
// after too many failures
func (s *Server) handleAuthMessage(client *Client, authResp AuthResponse) bool {
	result := s.auth.HandleAuthResponse(client, authResp.Signature)

	if err := client.WriteJSON(result); err != nil {
		s.logger.Warn().Err(err).Str("client_id", client.ID).Msg("Failed to send auth result")
		return false
	}

	status := "failure"
	if result.Success {
		status = "success"
	}
	s.audit.RecordSecurity(s.baseCtx, "auth", client.ID, status, map[string]interface{}{
		"transport": "websocket",
		"ip":        client.IPAddress,
		"attempts":  client.AuthAttempts,
	})

	if result.Success {
		s.logger.Info().Str("client_id", client.ID).Msg("Client authenticated")
		return true
	}

	s.logger.Warn().
		Str("client_id", client.ID).
		Str("reason", result.Message).
		Msg("Authentication failed")
	return client.AuthAttempts < maxAuthAttempts
}

// sendError sends an error response to a client
func (s *Server) sendError(client *Client, requestID string, code int, message string) {
	if err := client.WriteJSON(errorResponse(requestID, &RPCError{Code: code, Message: message})); err != nil {
		s.logger.Warn().
			Err(err).
			Str("client_id", client.ID).
			Msg("Failed to send error response")
	}
}
