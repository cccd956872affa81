package filestate

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestWatcher(t *testing.T) (*Watcher, chan Event) {
	events := make(chan Event, 16)
	w, err := NewWatcher(WatcherConfig{
		StabilityThreshold: 20 * time.Millisecond,
		OnEvent:            func(e Event) { events <- e },
	})
	require.NoError(t, err)
	w.Start()
	t.Cleanup(func() { _ = w.Stop() })
	return w, events
}

func waitEvent(t *testing.T, events chan Event) Event {
	t.Helper()
	select {
	case e := <-events:
		return e
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for watcher event")
		return Event{}
	}
}

func TestWatcher_ChangeAndRemove(t *testing.T) {
	w, events := newTestWatcher(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "book.xlsx")
	require.NoError(t, os.WriteFile(path, []byte("v1"), 0644))

	require.NoError(t, w.Track(path))
	assert.True(t, w.Tracked(path))

	require.NoError(t, os.WriteFile(path, []byte("v2"), 0644))
	e := waitEvent(t, events)
	assert.Equal(t, path, e.Path)
	assert.Equal(t, EventChanged, e.Kind)

	require.NoError(t, os.Remove(path))
	e = waitEvent(t, events)
	assert.Equal(t, EventRemoved, e.Kind)
}

func TestWatcher_IgnoresUntrackedSiblings(t *testing.T) {
	w, events := newTestWatcher(t)
	dir := t.TempDir()
	tracked := filepath.Join(dir, "tracked.xlsx")
	require.NoError(t, os.WriteFile(tracked, []byte("v1"), 0644))
	require.NoError(t, w.Track(tracked))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.xlsx"), []byte("x"), 0644))

	select {
	case e := <-events:
		t.Fatalf("unexpected event for %s", e.Path)
	case <-time.After(150 * time.Millisecond):
	}
}

func TestWatcher_UntrackIsReferenceCounted(t *testing.T) {
	w, _ := newTestWatcher(t)
	path := filepath.Join(t.TempDir(), "book.xlsx")
	require.NoError(t, os.WriteFile(path, []byte("v1"), 0644))

	require.NoError(t, w.Track(path))
	require.NoError(t, w.Track(path))

	w.Untrack(path)
	assert.True(t, w.Tracked(path))

	w.Untrack(path)
	assert.False(t, w.Tracked(path))

	// Extra untrack is a no-op
	w.Untrack(path)
}

func TestWatcher_StopIsIdempotent(t *testing.T) {
	w, err := NewWatcher(WatcherConfig{})
	require.NoError(t, err)
	w.Start()

	assert.NoError(t, w.Stop())
	assert.NoError(t, w.Stop())
}
