package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/harun/xlsession/pkg/filestate"
	"github.com/harun/xlsession/pkg/workbook"
)

// Session is one live workbook bound to its application handle.
//
// Identity fields are immutable. The handle is guarded by the session's own
// lock; Do serializes every operation on it. Sheet names are cached after
// every Do so that Info never waits for handle work.
type Session struct {
	id        string
	filePath  string
	visible   bool
	readOnly  bool
	createdAt time.Time

	lastAccessed       atomic.Int64
	diskModTime        atomic.Int64
	externallyModified atomic.Bool
	sheetNames         atomic.Pointer[[]string]

	mu     sync.Mutex
	handle workbook.Handle
	closed bool
	stat   func(string) (filestate.State, error)
}

// Info is a point-in-time view of a session
type Info struct {
	ID                 string    `json:"id"`
	FilePath           string    `json:"file_path"`
	Visible            bool      `json:"visible"`
	ReadOnly           bool      `json:"read_only"`
	CreatedAt          time.Time `json:"created_at"`
	LastAccessedAt     time.Time `json:"last_accessed_at"`
	SheetNames         []string  `json:"sheet_names"`
	ExternallyModified bool      `json:"externally_modified"`
}

func newSession(id, path string, visible, readOnly bool, handle workbook.Handle, now time.Time, stat func(string) (filestate.State, error)) *Session {
	s := &Session{
		id:        id,
		filePath:  path,
		visible:   visible,
		readOnly:  readOnly,
		createdAt: now,
		handle:    handle,
		stat:      stat,
	}
	s.lastAccessed.Store(now.UnixNano())
	s.refreshDiskModTime()
	s.cacheSheetNames()
	return s
}

// ID returns the session id
func (s *Session) ID() string { return s.id }

// FilePath returns the absolute path of the document
func (s *Session) FilePath() string { return s.filePath }

// Visible reports whether the application window is shown
func (s *Session) Visible() bool { return s.visible }

// ReadOnly reports whether the document was opened read-only
func (s *Session) ReadOnly() bool { return s.readOnly }

// CreatedAt returns when the session was opened
func (s *Session) CreatedAt() time.Time { return s.createdAt }

// LastAccessedAt returns the last time the session was handed out
func (s *Session) LastAccessedAt() time.Time {
	return time.Unix(0, s.lastAccessed.Load())
}

// ExternallyModified reports whether another process changed the file on disk
// since this session last opened or wrote it
func (s *Session) ExternallyModified() bool {
	return s.externallyModified.Load()
}

// touch advances the access time, never moving it backwards
func (s *Session) touch(now time.Time) {
	n := now.UnixNano()
	for {
		old := s.lastAccessed.Load()
		if n <= old || s.lastAccessed.CompareAndSwap(old, n) {
			return
		}
	}
}

// Do runs fn with exclusive access to the application handle. The handle must
// not be retained after fn returns.
//
// The lock is not re-entrant: fn must use the handle it is given. Calling Do
// or Save on the same session from fn, closing it, or calling CloseAll
// deadlocks. Info and Store.List are safe to call from fn.
func (s *Session) Do(ctx context.Context, fn func(h workbook.Handle) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return opError("do", s.id, s.filePath, ErrNotFound)
	}

	before := s.currentModTime()
	err := fn(s.handle)
	s.cacheSheetNames()
	if !s.readOnly {
		// A write during fn is the session's own
		if after := s.currentModTime(); after != before {
			s.diskModTime.Store(after)
			s.externallyModified.Store(false)
		}
	}
	return err
}

// Save writes the document back to disk
func (s *Session) Save(ctx context.Context) error {
	return s.Do(ctx, func(h workbook.Handle) error {
		if err := h.Save(ctx); err != nil {
			return opError("save", s.id, s.filePath, ioError(err))
		}
		return nil
	})
}

// Info returns a snapshot of the session, including its sheet names
func (s *Session) Info() Info {
	info := Info{
		ID:                 s.id,
		FilePath:           s.filePath,
		Visible:            s.visible,
		ReadOnly:           s.readOnly,
		CreatedAt:          s.createdAt,
		LastAccessedAt:     s.LastAccessedAt(),
		ExternallyModified: s.ExternallyModified(),
		SheetNames:         []string{},
	}
	if names := s.sheetNames.Load(); names != nil {
		info.SheetNames = append(info.SheetNames, *names...)
	}
	return info
}

// cacheSheetNames snapshots the handle's sheet names. Callers hold s.mu or
// own s exclusively.
func (s *Session) cacheSheetNames() {
	names := append([]string(nil), s.handle.SheetNames()...)
	s.sheetNames.Store(&names)
}

// teardown saves when asked, then closes the document and quits the
// application. It waits for any in-flight Do to finish.
func (s *Session) teardown(ctx context.Context, save bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	s.sheetNames.Store(nil)

	var errs []error
	if save && !s.readOnly {
		if err := s.handle.Save(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if err := s.handle.Quit(ctx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// noteDiskChange flags the session when the file on disk no longer matches
// what the session last saw. It waits for an in-flight Do so that the
// session's own writes are not reported.
func (s *Session) noteDiskChange(ev filestate.Event) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}

	if ev.Kind == filestate.EventRemoved {
		s.externallyModified.Store(true)
		return true
	}

	state, err := s.stat(s.filePath)
	if err != nil || !state.Exists {
		s.externallyModified.Store(true)
		return true
	}
	if state.ModTime.UnixNano() != s.diskModTime.Load() {
		s.externallyModified.Store(true)
		return true
	}
	return false
}

func (s *Session) refreshDiskModTime() {
	if mt := s.currentModTime(); mt != 0 {
		s.diskModTime.Store(mt)
	}
}

func (s *Session) currentModTime() int64 {
	if s.stat == nil {
		return 0
	}
	if state, err := s.stat(s.filePath); err == nil && state.Exists {
		return state.ModTime.UnixNano()
	}
	return 0
}
