package gateway

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/harun/xlsession/pkg/session"
)

// eventQueueSize bounds events waiting to be fanned out to clients
const eventQueueSize = 256

// EventBroadcaster fans server events out to authenticated clients
type EventBroadcaster struct {
	clients *ClientRegistry
	logger  zerolog.Logger
	seq     atomic.Int64
	queue   chan EventMessage
	dropped atomic.Int64
}

// NewEventBroadcaster creates a new event broadcaster
func NewEventBroadcaster(clients *ClientRegistry, logger zerolog.Logger) *EventBroadcaster {
	return &EventBroadcaster{
		clients: clients,
		logger:  logger,
		queue:   make(chan EventMessage, eventQueueSize),
	}
}

// Broadcast sends an event to all authenticated clients and waits for the writes
func (b *EventBroadcaster) Broadcast(event string, data interface{}) {
	b.send(EventMessage{Event: event, Data: data})
}

// PublishSessionEvent queues a store lifecycle event without blocking. It
// is meant to be installed with session.WithEventHandler. Events are dropped
// when the queue is full.
func (b *EventBroadcaster) PublishSessionEvent(ev session.Event) {
	msg := EventMessage{
		Event:      string(ev.Type),
		Data:       ev,
		SessionID:  ev.SessionID,
		PreviousID: ev.PreviousID,
		Timestamp:  ev.Time.UnixMilli(),
	}

	select {
	case b.queue <- msg:
	default:
		if n := b.dropped.Add(1); n == 1 || n%100 == 0 {
			b.logger.Warn().
				Str("event", msg.Event).
				Int64("dropped", n).
				Msg("Event queue full, dropping session event")
		}
	}
}

// Run delivers queued events until ctx is done, then flushes what is left
func (b *EventBroadcaster) Run(ctx context.Context) {
	for {
		select {
		case msg := <-b.queue:
			b.send(msg)
		case <-ctx.Done():
			for {
				select {
				case msg := <-b.queue:
					b.send(msg)
				default:
					return
				}
			}
		}
	}
}

// Dropped returns how many events were discarded on a full queue
func (b *EventBroadcaster) Dropped() int64 {
	return b.dropped.Load()
}

func (b *EventBroadcaster) send(msg EventMessage) {
	msg.Type = "event"
	msg.Seq = b.seq.Add(1)
	if msg.Timestamp == 0 {
		msg.Timestamp = time.Now().UnixMilli()
	}

	jsonData, err := json.Marshal(msg)
	if err != nil {
		b.logger.Error().
			Err(err).
			Str("event", msg.Event).
			Int64("seq", msg.Seq).
			Msg("Failed to marshal event")
		return
	}

	clients := b.clients.Authenticated()
	if len(clients) == 0 {
		return
	}

	failed := 0
	for _, client := range clients {
		if err := client.WriteMessage(websocket.TextMessage, jsonData); err != nil {
			b.logger.Warn().
				Err(err).
				Str("client_id", client.ID).
				Str("event", msg.Event).
				Int64("seq", msg.Seq).
				Msg("Failed to broadcast to client")
			failed++
		}
	}

	b.logger.Debug().
		Str("event", msg.Event).
		Str("session_id", msg.SessionID).
		Int64("seq", msg.Seq).
		Int("delivered", len(clients)-failed).
		Int("failed", failed).
		Msg("Event broadcast complete")
}
