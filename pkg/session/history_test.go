package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entry(id string) *HistoryEntry {
	return &HistoryEntry{ID: id, FilePath: "/tmp/" + id + ".xlsx", settled: make(chan struct{})}
}

func TestHistory_AddDropsOldest(t *testing.T) {
	h := NewHistory(2)

	assert.Empty(t, h.Add(entry("a")))
	assert.Empty(t, h.Add(entry("b")))

	dropped := h.Add(entry("c"))
	require.Len(t, dropped, 1)
	assert.Equal(t, "a", dropped[0].ID)

	_, ok := h.Get("a")
	assert.False(t, ok)
	assert.Equal(t, 2, h.Len())
	assert.Equal(t, 2, h.Max())
}

func TestHistory_FIFOIgnoresLookups(t *testing.T) {
	h := NewHistory(2)
	h.Add(entry("a"))
	h.Add(entry("b"))

	// Reading a does not protect it
	_, ok := h.Get("a")
	require.True(t, ok)

	dropped := h.Add(entry("c"))
	require.Len(t, dropped, 1)
	assert.Equal(t, "a", dropped[0].ID)
}

func TestHistory_ReAddMovesToBack(t *testing.T) {
	h := NewHistory(3)
	h.Add(entry("a"))
	h.Add(entry("b"))
	h.Add(entry("a"))

	entries := h.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "b", entries[0].ID)
	assert.Equal(t, "a", entries[1].ID)
}

func TestHistory_Remove(t *testing.T) {
	h := NewHistory(3)
	h.Add(entry("a"))

	assert.True(t, h.Remove("a"))
	assert.False(t, h.Remove("a"))
	assert.Equal(t, 0, h.Len())
}

func TestHistory_ZeroBoundKeepsNothing(t *testing.T) {
	h := NewHistory(0)

	dropped := h.Add(entry("a"))
	require.Len(t, dropped, 1)
	assert.Equal(t, 0, h.Len())
}

func TestHistory_EntriesAreCopies(t *testing.T) {
	h := NewHistory(1)
	e := entry("a")
	e.ExpiredAt = time.Unix(100, 0)
	h.Add(e)

	entries := h.Entries()
	require.Len(t, entries, 1)
	entries[0].FilePath = "changed"

	got, ok := h.Get("a")
	require.True(t, ok)
	assert.Equal(t, "/tmp/a.xlsx", got.FilePath)
	assert.Nil(t, entries[0].Settled())
}
