package session

import (
	"time"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// HistoryEntry remembers an expired session so it can be reopened
type HistoryEntry struct {
	ID                  string    `json:"id"`
	FilePath            string    `json:"file_path"`
	Visible             bool      `json:"visible"`
	ReadOnly            bool      `json:"read_only"`
	ExpiredAt           time.Time `json:"expired_at"`
	FileModTimeAtExpiry time.Time `json:"file_mod_time_at_expiry"`

	settled chan struct{}
}

func newHistoryEntry(s *Session, expiredAt time.Time) *HistoryEntry {
	return &HistoryEntry{
		ID:        s.id,
		FilePath:  s.filePath,
		Visible:   s.visible,
		ReadOnly:  s.readOnly,
		ExpiredAt: expiredAt,
		settled:   make(chan struct{}),
	}
}

// Settled is closed once the expired handle has been saved and released and
// FileModTimeAtExpiry is final
func (e *HistoryEntry) Settled() <-chan struct{} {
	return e.settled
}

// History is a FIFO of expired sessions bounded by max entries. Adding past
// the bound drops the oldest entry regardless of how recently it was used.
//
// History is not safe for concurrent use; the Store guards it.
type History struct {
	max     int
	entries *orderedmap.OrderedMap[string, *HistoryEntry]
}

// NewHistory creates a history holding at most max entries
func NewHistory(max int) *History {
	if max < 0 {
		max = 0
	}
	return &History{
		max:     max,
		entries: orderedmap.New[string, *HistoryEntry](),
	}
}

// Add appends e, replacing any previous entry with the same id, and returns
// the entries dropped to stay within bounds
func (h *History) Add(e *HistoryEntry) []*HistoryEntry {
	h.entries.Delete(e.ID)
	h.entries.Set(e.ID, e)

	var dropped []*HistoryEntry
	for h.entries.Len() > h.max {
		oldest := h.entries.Oldest()
		h.entries.Delete(oldest.Key)
		dropped = append(dropped, oldest.Value)
	}
	return dropped
}

// Get returns the entry for id
func (h *History) Get(id string) (*HistoryEntry, bool) {
	return h.entries.Get(id)
}

// Remove drops the entry for id and reports whether it existed
func (h *History) Remove(id string) bool {
	_, ok := h.entries.Delete(id)
	return ok
}

// Len returns the number of entries
func (h *History) Len() int {
	return h.entries.Len()
}

// Max returns the bound
func (h *History) Max() int {
	return h.max
}

// Entries returns copies of all entries, oldest first
func (h *History) Entries() []HistoryEntry {
	out := make([]HistoryEntry, 0, h.entries.Len())
	for pair := h.entries.Oldest(); pair != nil; pair = pair.Next() {
		e := *pair.Value
		e.settled = nil
		out = append(out, e)
	}
	return out
}
