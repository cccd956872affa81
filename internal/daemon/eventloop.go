package daemon

import (
	"context"
	"time"
)

const statsInterval = 30 * time.Second

// EventLoop periodically reports store occupancy while the daemon runs
type EventLoop struct {
	daemon   *Daemon
	interval time.Duration
}

// NewEventLoop creates a new event loop
func NewEventLoop(d *Daemon) *EventLoop {
	return &EventLoop{
		daemon:   d,
		interval: statsInterval,
	}
}

// Run reports until ctx is done
func (e *EventLoop) Run(ctx context.Context) {
	logger := e.daemon.log()
	logger.Debug().Msg("Event loop started")

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Debug().Msg("Event loop stopping")
			return
		case <-ticker.C:
			e.report()
		}
	}
}

func (e *EventLoop) report() {
	stats := e.daemon.store.Stats()
	if stats.Live == 0 && stats.History == 0 {
		return
	}

	logger := e.daemon.log()
	event := logger.Debug()
	if stats.Live >= stats.MaxLiveSessions {
		event = logger.Info()
	}
	event.
		Int("live", stats.Live).
		Int("opening", stats.Opening).
		Int("max_live_sessions", stats.MaxLiveSessions).
		Int("history", stats.History).
		Int("redirects", stats.Redirects).
		Msg("Session store occupancy")
}
