package session

import "time"

// EventType identifies a session lifecycle transition
type EventType string

const (
	EventOpened    EventType = "session.opened"
	EventEvicted   EventType = "session.evicted"
	EventExpired   EventType = "session.expired"
	EventRecovered EventType = "session.recovered"
	EventClosed    EventType = "session.closed"
	EventModified  EventType = "session.modified"
)

// Event describes a lifecycle transition of one session
type Event struct {
	Type       EventType `json:"type"`
	SessionID  string    `json:"session_id"`
	PreviousID string    `json:"previous_id,omitempty"`
	FilePath   string    `json:"file_path"`
	Trigger    string    `json:"trigger,omitempty"`
	Time       time.Time `json:"time"`
}
