package session

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/pool"
	"go.opentelemetry.io/otel/attribute"

	"github.com/harun/xlsession/internal/metrics"
	"github.com/harun/xlsession/internal/tracing"
	"github.com/harun/xlsession/pkg/filestate"
	"github.com/harun/xlsession/pkg/workbook"
)

const (
	DefaultTTL                 = 600 * time.Second
	DefaultMaxLiveSessions     = 8
	DefaultMaxExpiredHistory   = 10
	DefaultTeardownConcurrency = 4

	tracerName = "github.com/harun/xlsession/pkg/session"

	triggerLazy    = "lazy"
	triggerJanitor = "janitor"
)

// Config holds the store limits
type Config struct {
	TTL                 time.Duration
	MaxLiveSessions     int
	MaxExpiredHistory   int
	JanitorInterval     time.Duration
	DisableJanitor      bool
	WatchFiles          bool
	WatchDebounce       time.Duration
	TeardownConcurrency int
}

// DefaultConfig returns the default store configuration
func DefaultConfig() Config {
	return Config{
		TTL:                 DefaultTTL,
		MaxLiveSessions:     DefaultMaxLiveSessions,
		MaxExpiredHistory:   DefaultMaxExpiredHistory,
		JanitorInterval:     DefaultJanitorInterval,
		TeardownConcurrency: DefaultTeardownConcurrency,
	}
}

// Validate checks the limits
func (c Config) Validate() error {
	if c.TTL <= 0 {
		return fmt.Errorf("ttl must be positive, got %s", c.TTL)
	}
	if c.MaxLiveSessions < 1 {
		return fmt.Errorf("max live sessions must be at least 1, got %d", c.MaxLiveSessions)
	}
	if c.MaxExpiredHistory < 0 {
		return fmt.Errorf("max expired history cannot be negative, got %d", c.MaxExpiredHistory)
	}
	if c.JanitorInterval < 0 {
		return fmt.Errorf("janitor interval cannot be negative, got %s", c.JanitorInterval)
	}
	return nil
}

// Outcome tells how Acquire produced its session
type Outcome string

const (
	OutcomeFound     Outcome = "found"
	OutcomeRecovered Outcome = "recovered"
)

// Acquired is the result of a successful Acquire
type Acquired struct {
	Session     *Session
	Outcome     Outcome
	RequestedID string
	FileChanged bool
}

// Stats is a snapshot of store occupancy
type Stats struct {
	Live              int           `json:"live"`
	Opening           int           `json:"opening"`
	History           int           `json:"history"`
	Redirects         int           `json:"redirects"`
	MaxLiveSessions   int           `json:"max_live_sessions"`
	MaxExpiredHistory int           `json:"max_expired_history"`
	TTL               time.Duration `json:"ttl"`
	Closed            bool          `json:"closed"`
}

// Store owns every live session plus the expired history and redirect table.
// All structural state is guarded by a single mutex; application handles are
// only touched after it is released.
type Store struct {
	config   Config
	launcher workbook.Launcher
	checker  filestate.Checker
	policy   EvictionPolicy
	logger   zerolog.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
	newID    func() string
	onEvent  func(Event)

	mu        sync.Mutex
	live      map[string]*Session
	opening   int
	history   *History
	redirects *Redirects
	closed    bool

	teardowns sync.WaitGroup
	closeOnce sync.Once

	recoverer *Recoverer
	janitor   *Janitor
	watcher   *filestate.Watcher
}

// New creates a store and starts its janitor
func New(config Config, opts ...Option) (*Store, error) {
	if config.TeardownConcurrency <= 0 {
		config.TeardownConcurrency = DefaultTeardownConcurrency
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid session config: %w", err)
	}

	s := &Store{
		config:    config,
		checker:   filestate.NewOSChecker(),
		policy:    LRUPolicy{},
		logger:    log.Logger,
		now:       time.Now,
		newID:     defaultIDGenerator,
		live:      make(map[string]*Session),
		history:   NewHistory(config.MaxExpiredHistory),
		redirects: NewRedirects(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.launcher == nil {
		s.launcher = workbook.NewExcelLauncher(workbook.AppConfig{})
	}
	s.logger = s.logger.With().Str("component", "session_store").Logger()
	s.recoverer = newRecoverer(s, s.logger)
	s.janitor = newJanitor(s, config.JanitorInterval, s.logger)

	if config.WatchFiles {
		w, err := filestate.NewWatcher(filestate.WatcherConfig{
			StabilityThreshold: config.WatchDebounce,
			OnEvent:            s.handleFileEvent,
			Logger:             &s.logger,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create file watcher: %w", err)
		}
		w.Start()
		s.watcher = w
	}

	if !config.DisableJanitor {
		if err := s.janitor.Start(); err != nil {
			return nil, err
		}
	}

	s.logger.Info().
		Dur("ttl", config.TTL).
		Int("max_live_sessions", config.MaxLiveSessions).
		Int("max_expired_history", config.MaxExpiredHistory).
		Msg("Session store initialized")

	return s, nil
}

// Open launches an application handle for path and registers it as a new
// session. A missing file is created. When the store is full the least
// recently used session is evicted first.
func (s *Store) Open(ctx context.Context, path string, visible, readOnly bool) (string, error) {
	ctx, span := tracing.StartSpan(ctx, tracerName, "session.open",
		attribute.String("session.path", path),
		attribute.Bool("session.visible", visible),
		attribute.Bool("session.read_only", readOnly),
	)

	sess, err := s.open(ctx, path, visible, readOnly, "open")
	if err != nil {
		tracing.EndSpan(span, err)
		return "", err
	}

	span.SetAttributes(attribute.String("session.id", sess.id))
	tracing.EndSpan(span, nil)
	return sess.id, nil
}

func (s *Store) open(ctx context.Context, path string, visible, readOnly bool, mode string) (*Session, error) {
	logger := tracing.LoggerFromContext(ctx, s.logger)

	fail := func(p string, err error) (*Session, error) {
		s.observeOpenFailure(err)
		return nil, opError("open", "", p, err)
	}

	if path == "" {
		return fail(path, ioError(errors.New("empty file path")))
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return fail(path, ioError(err))
	}

	victims, err := s.reserve()
	if err != nil {
		return fail(abs, err)
	}
	reserved := true
	defer func() {
		if reserved {
			s.mu.Lock()
			s.opening--
			s.mu.Unlock()
		}
	}()

	s.evict(ctx, victims)

	state, err := s.checker.Stat(abs)
	if err != nil {
		return fail(abs, ioError(err))
	}
	if state.Exists && !readOnly {
		locked, err := s.checker.IsLocked(abs)
		if err != nil {
			return fail(abs, ioError(err))
		}
		if locked {
			logger.Warn().Str("path", abs).Msg("Refusing to open a document held by another process")
			return fail(abs, ErrResourceLocked)
		}
	}

	start := time.Now()
	handle, err := s.launcher.Launch(ctx, workbook.Options{Visible: visible})
	if err != nil {
		return fail(abs, ioError(err))
	}
	if state.Exists {
		err = handle.Open(ctx, abs, readOnly)
	} else {
		err = handle.Create(ctx, abs)
	}
	if err != nil {
		if qerr := handle.Quit(context.WithoutCancel(ctx)); qerr != nil {
			logger.Warn().Err(qerr).Str("path", abs).Msg("Failed to quit application after open failure")
		}
		return fail(abs, ioError(err))
	}
	s.observe(func(m *metrics.Metrics) {
		m.OpenDuration.Observe(time.Since(start).Seconds())
	})

	sess := newSession(s.newID(), abs, visible, readOnly, handle, s.now(), s.checker.Stat)

	s.mu.Lock()
	s.opening--
	reserved = false
	if s.closed {
		s.mu.Unlock()
		if err := sess.teardown(context.WithoutCancel(ctx), false); err != nil {
			logger.Warn().Err(err).Str("path", abs).Msg("Failed to release handle opened during shutdown")
		}
		return fail(abs, ErrClosed)
	}
	s.live[sess.id] = sess
	live := len(s.live)
	s.syncGaugesLocked()
	s.mu.Unlock()

	s.track(abs)
	s.observe(func(m *metrics.Metrics) {
		m.SessionsOpened.WithLabelValues(mode).Inc()
	})

	logger.Info().
		Str("session_id", sess.id).
		Str("path", abs).
		Bool("created", !state.Exists).
		Bool("read_only", readOnly).
		Int("live", live).
		Msg("Opened workbook session")

	s.emit(Event{Type: EventOpened, SessionID: sess.id, FilePath: abs, Trigger: mode})

	return sess, nil
}

// reserve claims a live slot for an open in progress, removing eviction
// victims from the live set when the store is full
func (s *Store) reserve() ([]*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrClosed
	}

	var victims []*Session
	for len(s.live)+s.opening >= s.config.MaxLiveSessions {
		id, ok := s.policy.SelectVictim(s.candidatesLocked())
		victim, live := s.live[id]
		if !ok || !live {
			for _, v := range victims {
				s.live[v.id] = v
			}
			return nil, ErrCapacity
		}
		delete(s.live, id)
		victims = append(victims, victim)
	}

	s.opening++
	s.syncGaugesLocked()
	return victims, nil
}

func (s *Store) candidatesLocked() []Candidate {
	candidates := make([]Candidate, 0, len(s.live))
	for _, sess := range s.live {
		candidates = append(candidates, Candidate{
			ID:             sess.id,
			CreatedAt:      sess.createdAt,
			LastAccessedAt: sess.LastAccessedAt(),
		})
	}
	return candidates
}

// evict saves and releases sessions already removed from the live set.
// Evicted sessions are not remembered for recovery.
func (s *Store) evict(ctx context.Context, victims []*Session) {
	teardownCtx := context.WithoutCancel(ctx)
	s.forEachParallel(victims, func(sess *Session) {
		s.logger.Info().
			Str("session_id", sess.id).
			Str("path", sess.filePath).
			Time("last_accessed_at", sess.LastAccessedAt()).
			Msg("Evicting least recently used session")

		if err := sess.teardown(teardownCtx, true); err != nil {
			s.observeTeardownError("evict")
			s.logger.Warn().Err(err).Str("session_id", sess.id).Msg("Error while evicting session")
		}
		s.untrack(sess.filePath)
		s.observe(func(m *metrics.Metrics) { m.SessionsEvicted.Inc() })
		s.emit(Event{Type: EventEvicted, SessionID: sess.id, FilePath: sess.filePath})
	})
}

// Acquire returns the live session for id. Redirects from earlier recoveries
// are followed first. A session idle past the TTL is expired on the spot and,
// like any id found in the expired history, transparently reopened under a
// new id. Failures wrap ErrNotFound together with the underlying reason.
func (s *Store) Acquire(ctx context.Context, id string) (*Acquired, error) {
	ctx, span := tracing.StartSpan(ctx, tracerName, "session.acquire",
		attribute.String("session.requested_id", id),
	)

	acq, err := s.acquire(ctx, id)
	if err == nil {
		span.SetAttributes(
			attribute.String("session.id", acq.Session.id),
			attribute.String("session.outcome", string(acq.Outcome)),
		)
	}
	tracing.EndSpan(span, err)
	return acq, err
}

func (s *Store) acquire(ctx context.Context, id string) (*Acquired, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, opError("acquire", id, "", ErrClosed)
	}

	resolved := s.redirects.Resolve(id)
	if sess, ok := s.live[resolved]; ok {
		now := s.now()
		if !s.expiredLocked(sess, now) {
			sess.touch(now)
			s.mu.Unlock()
			return &Acquired{Session: sess, Outcome: OutcomeFound, RequestedID: id}, nil
		}

		entry := s.demoteLocked(sess, now)
		s.mu.Unlock()
		s.settle(context.WithoutCancel(ctx), sess, entry, triggerLazy)
	} else {
		s.mu.Unlock()
	}

	rec, err := s.recoverer.Recover(ctx, resolved)
	if err != nil {
		switch {
		case errors.Is(err, ErrClosed):
			return nil, opError("acquire", id, "", ErrClosed)
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return nil, opError("acquire", id, "", err)
		}
		return nil, opError("acquire", id, "", notFound(err))
	}

	s.mu.Lock()
	sess, ok := s.live[rec.NewID]
	if ok {
		sess.touch(s.now())
	}
	s.mu.Unlock()

	if !ok {
		return nil, opError("acquire", id, "", ErrNotFound)
	}
	return &Acquired{
		Session:     sess,
		Outcome:     OutcomeRecovered,
		RequestedID: id,
		FileChanged: rec.FileChanged,
	}, nil
}

// Get is Acquire without the outcome details
func (s *Store) Get(ctx context.Context, id string) (*Session, error) {
	acq, err := s.Acquire(ctx, id)
	if err != nil {
		return nil, err
	}
	return acq.Session, nil
}

// WithSession acquires id and runs fn with exclusive access to its handle.
// fn follows the same no-reentry rule as Session.Do.
func (s *Store) WithSession(ctx context.Context, id string, fn func(h workbook.Handle) error) error {
	acq, err := s.Acquire(ctx, id)
	if err != nil {
		return err
	}
	return acq.Session.Do(tracing.WithSessionID(ctx, acq.Session.id), fn)
}

// Recover reopens an expired session by its stale id
func (s *Store) Recover(ctx context.Context, staleID string) (Recovery, error) {
	ctx, span := tracing.StartSpan(ctx, tracerName, "session.recover",
		attribute.String("session.stale_id", staleID),
	)
	rec, err := s.recoverer.Recover(ctx, staleID)
	tracing.EndSpan(span, err)
	if err != nil {
		return Recovery{}, opError("recover", staleID, "", err)
	}
	return rec, nil
}

// Close tears down the session id resolves to, saving first when asked, and
// drops every redirect leading to it. Closing an id that is not live returns
// ErrNotFound and forgets any expired history kept for it.
func (s *Store) Close(ctx context.Context, id string, save bool) error {
	ctx, span := tracing.StartSpan(ctx, tracerName, "session.close",
		attribute.String("session.requested_id", id),
		attribute.Bool("session.save", save),
	)
	err := s.close(ctx, id, save)
	tracing.EndSpan(span, err)
	return err
}

func (s *Store) close(ctx context.Context, id string, save bool) error {
	logger := tracing.LoggerFromContext(ctx, s.logger)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return opError("close", id, "", ErrClosed)
	}

	resolved := s.redirects.Resolve(id)
	pruned := s.redirects.PruneTo(resolved)
	for _, stale := range pruned {
		s.history.Remove(stale)
	}

	sess, ok := s.live[resolved]
	if !ok {
		forgot := s.history.Remove(resolved)
		s.syncGaugesLocked()
		s.mu.Unlock()

		if forgot || len(pruned) > 0 {
			logger.Debug().
				Str("session_id", resolved).
				Int("redirects_pruned", len(pruned)).
				Msg("Forgot expired session")
		}
		return opError("close", id, "", ErrNotFound)
	}
	delete(s.live, resolved)
	s.syncGaugesLocked()
	s.mu.Unlock()

	err := sess.teardown(ctx, save)
	s.untrack(sess.filePath)
	s.observe(func(m *metrics.Metrics) { m.SessionsClosed.Inc() })
	s.emit(Event{Type: EventClosed, SessionID: sess.id, PreviousID: previousID(id, resolved), FilePath: sess.filePath})

	if err != nil {
		s.observeTeardownError("close")
		logger.Error().Err(err).Str("session_id", sess.id).Msg("Session closed with errors")
		return opError("close", id, sess.filePath, ioError(err))
	}

	logger.Info().
		Str("session_id", sess.id).
		Str("path", sess.filePath).
		Bool("saved", save && !sess.readOnly).
		Int("redirects_pruned", len(pruned)).
		Msg("Closed workbook session")

	return nil
}

// List returns every live session ordered by creation time
func (s *Store) List() []Info {
	s.mu.Lock()
	sessions := make([]*Session, 0, len(s.live))
	for _, sess := range s.live {
		sessions = append(sessions, sess)
	}
	s.mu.Unlock()

	sort.Slice(sessions, func(i, j int) bool {
		if !sessions[i].createdAt.Equal(sessions[j].createdAt) {
			return sessions[i].createdAt.Before(sessions[j].createdAt)
		}
		return sessions[i].id < sessions[j].id
	})

	infos := make([]Info, 0, len(sessions))
	for _, sess := range sessions {
		infos = append(infos, sess.Info())
	}
	return infos
}

// History returns the expired sessions still eligible for recovery, oldest
// first
func (s *Store) History() []HistoryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.Entries()
}

// Redirects returns a copy of the redirect table
func (s *Store) Redirects() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.redirects.Snapshot()
}

// Resolve follows redirects from id to the id currently responsible for it
func (s *Store) Resolve(id string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.redirects.Resolve(id)
}

// Stats returns a snapshot of store occupancy
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		Live:              len(s.live),
		Opening:           s.opening,
		History:           s.history.Len(),
		Redirects:         s.redirects.Len(),
		MaxLiveSessions:   s.config.MaxLiveSessions,
		MaxExpiredHistory: s.config.MaxExpiredHistory,
		TTL:               s.config.TTL,
		Closed:            s.closed,
	}
}

// Config returns the store configuration
func (s *Store) Config() Config {
	return s.config
}

// Janitor returns the background expiry worker
func (s *Store) Janitor() *Janitor {
	return s.janitor
}

// CloseAll stops the janitor, releases every live session without saving
// and waits for pending expiry teardowns. The store rejects all further
// calls. Failures are logged per session and never returned. Calling it
// again is a no-op.
func (s *Store) CloseAll(ctx context.Context) {
	s.closeOnce.Do(func() {
		if s.janitor.IsRunning() {
			if err := s.janitor.Stop(); err != nil {
				s.logger.Debug().Err(err).Msg("Janitor already stopped")
			}
		}

		s.mu.Lock()
		s.closed = true
		sessions := make([]*Session, 0, len(s.live))
		for _, sess := range s.live {
			sessions = append(sessions, sess)
		}
		clear(s.live)
		s.history = NewHistory(s.config.MaxExpiredHistory)
		s.redirects = NewRedirects()
		s.syncGaugesLocked()
		s.mu.Unlock()

		var failed atomic.Int32
		s.forEachParallel(sessions, func(sess *Session) {
			if err := sess.teardown(ctx, false); err != nil {
				failed.Add(1)
				s.observeTeardownError("shutdown")
				s.logger.Warn().
					Err(err).
					Str("session_id", sess.id).
					Str("path", sess.filePath).
					Msg("Error while closing session during shutdown")
			}
			s.untrack(sess.filePath)
			s.emit(Event{Type: EventClosed, SessionID: sess.id, FilePath: sess.filePath, Trigger: "shutdown"})
		})

		s.teardowns.Wait()

		if s.watcher != nil {
			if err := s.watcher.Stop(); err != nil {
				s.logger.Warn().Err(err).Msg("Failed to stop file watcher")
			}
		}

		s.logger.Info().
			Int("closed", len(sessions)).
			Int32("failed", failed.Load()).
			Msg("Session store closed")
	})
}

func (s *Store) expiredLocked(sess *Session, now time.Time) bool {
	return now.Sub(sess.LastAccessedAt()) > s.config.TTL
}

// demoteLocked moves sess from the live set into the expired history in one
// step. The caller must settle the returned entry.
func (s *Store) demoteLocked(sess *Session, now time.Time) *HistoryEntry {
	delete(s.live, sess.id)

	entry := newHistoryEntry(sess, now)
	for _, dropped := range s.history.Add(entry) {
		pruned := s.redirects.PruneTo(dropped.ID)
		s.logger.Debug().
			Str("session_id", dropped.ID).
			Int("redirects_pruned", len(pruned)).
			Msg("Dropped oldest expired session from history")
	}

	s.teardowns.Add(1)
	s.syncGaugesLocked()
	return entry
}

// settle saves and releases an expired session and records the file's
// modification time in its history entry
func (s *Store) settle(ctx context.Context, sess *Session, entry *HistoryEntry, trigger string) {
	defer s.teardowns.Done()
	defer close(entry.settled)

	s.logger.Warn().
		Str("session_id", sess.id).
		Str("path", sess.filePath).
		Dur("idle", entry.ExpiredAt.Sub(sess.LastAccessedAt())).
		Dur("ttl", s.config.TTL).
		Str("trigger", trigger).
		Msg("Session expired")

	if err := sess.teardown(ctx, true); err != nil {
		s.observeTeardownError("expire")
		s.logger.Warn().Err(err).Str("session_id", sess.id).Msg("Error while releasing expired session")
	}

	var modTime time.Time
	if state, err := s.checker.Stat(sess.filePath); err == nil && state.Exists {
		modTime = state.ModTime
	}
	s.mu.Lock()
	entry.FileModTimeAtExpiry = modTime
	s.mu.Unlock()

	s.untrack(sess.filePath)
	s.observe(func(m *metrics.Metrics) {
		m.SessionsExpired.WithLabelValues(trigger).Inc()
	})
	s.emit(Event{Type: EventExpired, SessionID: sess.id, FilePath: sess.filePath, Trigger: trigger})
}

// expireIdle demotes every session idle past the TTL and settles them in
// parallel
func (s *Store) expireIdle(ctx context.Context, trigger string) int {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return 0
	}

	now := s.now()
	var idle []*Session
	for _, sess := range s.live {
		if s.expiredLocked(sess, now) {
			idle = append(idle, sess)
		}
	}
	sort.Slice(idle, func(i, j int) bool {
		a, b := idle[i].LastAccessedAt(), idle[j].LastAccessedAt()
		if !a.Equal(b) {
			return a.Before(b)
		}
		return idle[i].id < idle[j].id
	})

	entries := make(map[*Session]*HistoryEntry, len(idle))
	for _, sess := range idle {
		entries[sess] = s.demoteLocked(sess, now)
	}
	s.mu.Unlock()

	teardownCtx := context.WithoutCancel(ctx)
	s.forEachParallel(idle, func(sess *Session) {
		s.settle(teardownCtx, sess, entries[sess], trigger)
	})
	return len(idle)
}

func (s *Store) forEachParallel(sessions []*Session, fn func(*Session)) {
	if len(sessions) == 0 {
		return
	}
	if len(sessions) == 1 {
		fn(sessions[0])
		return
	}

	p := pool.New().WithMaxGoroutines(s.config.TeardownConcurrency)
	for _, sess := range sessions {
		sess := sess
		p.Go(func() { fn(sess) })
	}
	p.Wait()
}

func (s *Store) handleFileEvent(ev filestate.Event) {
	s.mu.Lock()
	var matches []*Session
	for _, sess := range s.live {
		if sess.filePath == ev.Path {
			matches = append(matches, sess)
		}
	}
	s.mu.Unlock()

	for _, sess := range matches {
		if !sess.noteDiskChange(ev) {
			continue
		}
		s.logger.Warn().
			Str("session_id", sess.id).
			Str("path", sess.filePath).
			Str("kind", string(ev.Kind)).
			Msg("Document changed outside its session")
		s.emit(Event{Type: EventModified, SessionID: sess.id, FilePath: sess.filePath, Trigger: string(ev.Kind)})
	}
}

func (s *Store) track(path string) {
	if s.watcher == nil {
		return
	}
	if err := s.watcher.Track(path); err != nil {
		s.logger.Warn().Err(err).Str("path", path).Msg("Failed to watch document")
	}
}

func (s *Store) untrack(path string) {
	if s.watcher != nil {
		s.watcher.Untrack(path)
	}
}

func (s *Store) emit(ev Event) {
	if s.onEvent == nil {
		return
	}
	if ev.Time.IsZero() {
		ev.Time = s.now()
	}
	s.onEvent(ev)
}

func (s *Store) observe(fn func(m *metrics.Metrics)) {
	if s.metrics != nil {
		fn(s.metrics)
	}
}

func (s *Store) syncGaugesLocked() {
	if s.metrics == nil {
		return
	}
	s.metrics.SessionsLive.Set(float64(len(s.live)))
	s.metrics.HistorySize.Set(float64(s.history.Len()))
	s.metrics.RedirectsActive.Set(float64(s.redirects.Len()))
}

func (s *Store) observeOpenFailure(err error) {
	reason := "io_error"
	switch {
	case errors.Is(err, ErrResourceLocked):
		reason = "locked"
	case errors.Is(err, ErrCapacity):
		reason = "capacity"
	case errors.Is(err, ErrClosed):
		reason = "closed"
	}
	s.observe(func(m *metrics.Metrics) {
		m.OpenFailuresTotal.WithLabelValues(reason).Inc()
	})
}

func (s *Store) observeTeardownError(cause string) {
	s.observe(func(m *metrics.Metrics) {
		m.TeardownErrorTotal.WithLabelValues(cause).Inc()
	})
}

func (s *Store) observeRecovery(status string) {
	s.observe(func(m *metrics.Metrics) {
		m.RecoveriesTotal.WithLabelValues(status).Inc()
	})
}

func previousID(requested, resolved string) string {
	if requested == resolved {
		return ""
	}
	return requested
}
