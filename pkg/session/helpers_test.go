package session

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/harun/xlsession/pkg/filestate"
	"github.com/harun/xlsession/pkg/workbook"
)

// memFS is an in-memory filestate.Checker whose modification times advance
// one second per write
type memFS struct {
	mu     sync.Mutex
	files  map[string]time.Time
	locked map[string]bool
	clock  time.Time
}

func newMemFS() *memFS {
	return &memFS{
		files:  make(map[string]time.Time),
		locked: make(map[string]bool),
		clock:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (fs *memFS) Stat(path string) (filestate.State, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	mt, ok := fs.files[path]
	if !ok {
		return filestate.State{Path: path}, nil
	}
	return filestate.State{Path: path, Exists: true, ModTime: mt}, nil
}

func (fs *memFS) IsLocked(path string) (bool, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.locked[path], nil
}

func (fs *memFS) write(path string) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.clock = fs.clock.Add(time.Second)
	fs.files[path] = fs.clock
}

func (fs *memFS) remove(path string) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	delete(fs.files, path)
}

func (fs *memFS) setLocked(path string, locked bool) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.locked[path] = locked
}

func (fs *memFS) exists(path string) bool {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	_, ok := fs.files[path]
	return ok
}

// fakeHandle records the calls made on it
type fakeHandle struct {
	fs *memFS

	mu       sync.Mutex
	path     string
	readOnly bool
	opened   bool
	saves    int
	quits    int
	openErr  error
	saveErr  error
	quitErr  error
}

func (h *fakeHandle) Open(ctx context.Context, path string, readOnly bool) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.openErr != nil {
		return h.openErr
	}
	h.path, h.readOnly, h.opened = path, readOnly, true
	return nil
}

func (h *fakeHandle) Create(ctx context.Context, path string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.openErr != nil {
		return h.openErr
	}
	h.path, h.opened = path, true
	h.fs.write(path)
	return nil
}

func (h *fakeHandle) Save(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.opened {
		return errors.New("no document open")
	}
	if h.readOnly {
		return errors.New("read-only")
	}
	if h.saveErr != nil {
		return h.saveErr
	}
	h.saves++
	h.fs.write(h.path)
	return nil
}

func (h *fakeHandle) Close(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.opened = false
	return nil
}

func (h *fakeHandle) Quit(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.opened = false
	h.quits++
	return h.quitErr
}

// failWith makes later Save and Quit calls return the given errors. Quit
// still releases the handle.
func (h *fakeHandle) failWith(saveErr, quitErr error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.saveErr, h.quitErr = saveErr, quitErr
}

func (h *fakeHandle) Path() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.path
}

func (h *fakeHandle) SheetNames() []string {
	return []string{"Sheet1"}
}

func (h *fakeHandle) counts() (saves, quits int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.saves, h.quits
}

// fakeLauncher hands out fakeHandles. When gate is set, Launch blocks until
// it is closed.
type fakeLauncher struct {
	fs *memFS

	mu        sync.Mutex
	handles   []*fakeHandle
	launchErr error
	openErr   error
	gate      chan struct{}
	started   chan struct{}
}

func (l *fakeLauncher) Launch(ctx context.Context, opts workbook.Options) (workbook.Handle, error) {
	l.mu.Lock()
	gate, started := l.gate, l.started
	l.mu.Unlock()

	if started != nil {
		started <- struct{}{}
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.launchErr != nil {
		return nil, l.launchErr
	}
	h := &fakeHandle{fs: l.fs, openErr: l.openErr}
	l.handles = append(l.handles, h)
	return h, nil
}

func (l *fakeLauncher) launches() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.handles)
}

func (l *fakeLauncher) handle(i int) *fakeHandle {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.handles[i]
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type eventLog struct {
	mu     sync.Mutex
	events []Event
}

func (e *eventLog) record(ev Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, ev)
}

func (e *eventLog) types() []EventType {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]EventType, 0, len(e.events))
	for _, ev := range e.events {
		out = append(out, ev.Type)
	}
	return out
}

type testEnv struct {
	store    *Store
	fs       *memFS
	launcher *fakeLauncher
	clock    *fakeClock
	events   *eventLog
	dir      string
}

func (e *testEnv) path(name string) string {
	return filepath.Join(e.dir, name)
}

func setupTestStore(t *testing.T, mutate func(*Config), opts ...Option) *testEnv {
	t.Helper()

	cfg := DefaultConfig()
	cfg.TTL = 10 * time.Second
	cfg.DisableJanitor = true
	if mutate != nil {
		mutate(&cfg)
	}

	fs := newMemFS()
	env := &testEnv{
		fs:       fs,
		launcher: &fakeLauncher{fs: fs},
		clock:    newFakeClock(),
		events:   &eventLog{},
		dir:      t.TempDir(),
	}

	base := []Option{
		WithLauncher(env.launcher),
		WithChecker(fs),
		WithClock(env.clock.Now),
		WithLogger(zerolog.Nop()),
		WithEventHandler(env.events.record),
	}
	store, err := New(cfg, append(base, opts...)...)
	require.NoError(t, err)
	env.store = store

	t.Cleanup(func() {
		store.CloseAll(context.Background())
	})
	return env
}
