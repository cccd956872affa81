package session

import (
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/harun/xlsession/internal/metrics"
	"github.com/harun/xlsession/pkg/filestate"
	"github.com/harun/xlsession/pkg/workbook"
)

// Option configures a Store
type Option func(*Store)

// WithLauncher sets how application handles are started
func WithLauncher(l workbook.Launcher) Option {
	return func(s *Store) { s.launcher = l }
}

// WithChecker sets how files are inspected for existence and locks
func WithChecker(c filestate.Checker) Option {
	return func(s *Store) { s.checker = c }
}

// WithPolicy sets the eviction policy
func WithPolicy(p EvictionPolicy) Option {
	return func(s *Store) { s.policy = p }
}

// WithLogger sets the logger
func WithLogger(l zerolog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithMetrics records store activity into m
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Store) { s.metrics = m }
}

// WithClock replaces time.Now for TTL and LRU bookkeeping
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithIDGenerator replaces the session id generator
func WithIDGenerator(gen func() string) Option {
	return func(s *Store) { s.newID = gen }
}

// WithEventHandler registers fn to receive lifecycle events. fn is called
// outside the store lock and must not block.
func WithEventHandler(fn func(Event)) Option {
	return func(s *Store) { s.onEvent = fn }
}

func defaultIDGenerator() string {
	return uuid.NewString()
}
