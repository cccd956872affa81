package session

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// Recovery is the outcome of reopening an expired session
type Recovery struct {
	StaleID     string `json:"stale_id"`
	NewID       string `json:"new_id"`
	FileChanged bool   `json:"file_changed"`
}

// Recoverer reopens expired sessions from the history. Concurrent recoveries
// of the same stale id share one reopen.
type Recoverer struct {
	store  *Store
	group  singleflight.Group
	logger zerolog.Logger
}

func newRecoverer(store *Store, logger zerolog.Logger) *Recoverer {
	return &Recoverer{
		store:  store,
		logger: logger.With().Str("component", "recovery").Logger(),
	}
}

// Recover reopens the file behind staleID under a new id and redirects
// staleID to it. The history entry stays in place either way; it only leaves
// the history through the FIFO bound or a Close.
//
// The shared reopen is not tied to any one caller's context. A caller whose
// ctx ends stops waiting, while the others still get the result.
func (r *Recoverer) Recover(ctx context.Context, staleID string) (Recovery, error) {
	flightCtx := context.WithoutCancel(ctx)
	ch := r.group.DoChan(staleID, func() (interface{}, error) {
		return r.recover(flightCtx, staleID)
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return Recovery{}, ctx.Err()
	}
	if res.Err != nil {
		return Recovery{}, res.Err
	}

	rec := res.Val.(Recovery)
	if res.Shared {
		r.logger.Debug().
			Str("stale_id", staleID).
			Str("new_id", rec.NewID).
			Msg("Joined in-flight recovery")
	}
	return rec, nil
}

func (r *Recoverer) recover(ctx context.Context, staleID string) (Recovery, error) {
	s := r.store

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return Recovery{}, ErrClosed
	}
	// A flight that finished just before this one may already have
	// recovered the id.
	if target := s.redirects.Resolve(staleID); target != staleID {
		if _, ok := s.live[target]; ok {
			s.mu.Unlock()
			return Recovery{StaleID: staleID, NewID: target}, nil
		}
	}
	entry, ok := s.history.Get(staleID)
	s.mu.Unlock()

	if !ok {
		return Recovery{}, ErrNotRecoverable
	}

	select {
	case <-entry.Settled():
	case <-ctx.Done():
		return Recovery{}, ctx.Err()
	}

	logger := r.logger.With().
		Str("stale_id", staleID).
		Str("path", entry.FilePath).
		Logger()

	state, err := s.checker.Stat(entry.FilePath)
	if err != nil {
		s.observeRecovery("io_error")
		return Recovery{}, ioError(err)
	}
	if !state.Exists {
		s.observeRecovery("file_not_found")
		logger.Warn().Msg("Expired session file no longer exists")
		return Recovery{}, ErrFileNotFound
	}

	fileChanged := !entry.FileModTimeAtExpiry.IsZero() && !state.ModTime.Equal(entry.FileModTimeAtExpiry)
	if fileChanged {
		logger.Warn().
			Time("mod_time_at_expiry", entry.FileModTimeAtExpiry).
			Time("mod_time_now", state.ModTime).
			Msg("File changed on disk since the session expired")
	}

	sess, err := s.open(ctx, entry.FilePath, entry.Visible, entry.ReadOnly, "recover")
	if err != nil {
		switch {
		case errors.Is(err, ErrResourceLocked):
			s.observeRecovery("locked")
		case errors.Is(err, ErrClosed):
			s.observeRecovery("closed")
		default:
			s.observeRecovery("io_error")
		}
		logger.Error().Err(err).Msg("Failed to recover expired session")
		return Recovery{}, err
	}

	s.mu.Lock()
	if err := s.redirects.Set(staleID, sess.id); err != nil {
		logger.Error().Err(err).Msg("Failed to register redirect")
	}
	s.syncGaugesLocked()
	s.mu.Unlock()

	s.observeRecovery("success")
	logger.Info().
		Str("new_id", sess.id).
		Bool("file_changed", fileChanged).
		Msg("Recovered expired session")

	s.emit(Event{
		Type:       EventRecovered,
		SessionID:  sess.id,
		PreviousID: staleID,
		FilePath:   entry.FilePath,
	})

	return Recovery{StaleID: staleID, NewID: sess.id, FileChanged: fileChanged}, nil
}
