package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// DefaultJanitorInterval is how often idle sessions are swept
const DefaultJanitorInterval = 30 * time.Second

// Janitor periodically expires idle sessions of a Store. Runs never overlap
// and a panicking sweep is logged instead of killing the process.
type Janitor struct {
	store    *Store
	interval time.Duration
	logger   zerolog.Logger

	mu      sync.Mutex
	cron    *cron.Cron
	running bool
}

func newJanitor(store *Store, interval time.Duration, logger zerolog.Logger) *Janitor {
	if interval <= 0 {
		interval = DefaultJanitorInterval
	}
	return &Janitor{
		store:    store,
		interval: interval,
		logger:   logger.With().Str("component", "janitor").Logger(),
	}
}

// Start schedules the sweep
func (j *Janitor) Start() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.running {
		return fmt.Errorf("janitor is already running")
	}

	cl := cronLogger{logger: j.logger}
	c := cron.New(
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	c.Schedule(cron.Every(j.interval), cron.FuncJob(func() {
		j.Sweep(context.Background())
	}))
	c.Start()

	j.cron = c
	j.running = true

	j.logger.Info().
		Dur("interval", j.interval).
		Msg("Session janitor started")

	return nil
}

// Stop unschedules the sweep and waits for a running sweep to finish
func (j *Janitor) Stop() error {
	j.mu.Lock()
	if !j.running {
		j.mu.Unlock()
		return fmt.Errorf("janitor is not running")
	}
	c := j.cron
	j.cron = nil
	j.running = false
	j.mu.Unlock()

	<-c.Stop().Done()

	j.logger.Info().Msg("Session janitor stopped")

	return nil
}

// IsRunning returns whether the janitor is scheduled
func (j *Janitor) IsRunning() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.running
}

// Interval returns the sweep interval
func (j *Janitor) Interval() time.Duration {
	return j.interval
}

// Sweep expires every session idle past the TTL and returns how many were
// expired. It is also safe to call directly.
func (j *Janitor) Sweep(ctx context.Context) int {
	start := time.Now()
	expired := j.store.expireIdle(ctx, triggerJanitor)

	if expired > 0 {
		j.logger.Info().
			Int("expired", expired).
			Dur("duration", time.Since(start)).
			Msg("Expired idle sessions")
	}
	return expired
}

// cronLogger adapts zerolog to cron.Logger
type cronLogger struct {
	logger zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
