package interfaces

import (
	"context"
	"time"
)

// Типы событий, которые видят подключенные клиенты персонала.
type EventType string

const (
	EventActiveOrderChanged EventType = "active_order_changed"
	EventQueueUpdated       EventType = "queue_updated"
	EventOrderReady         EventType = "order_ready"
)

// Event is one live update on a cafe's channel. Events are transported
// as produced, never recomputed; a late subscriber fetches current state
// instead of a replay.
type Event struct {
	Type        EventType `json:"type"`
	CafeID      string    `json:"cafe_id"`
	OrderID     *string   `json:"order_id,omitempty"`
	QueueLength *int      `json:"queue_length,omitempty"`
	// Origin identifies the producing process so a coordinator does not
	// re-deliver its own events when they come back from the broker.
	Origin    string    `json:"origin,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// EventPublisher fans an event out to the cafe's currently connected
// subscribers. Publish is best-effort: a delivery failure never rolls back
// the transition that produced the event.
type EventPublisher interface {
	Publish(ctx context.Context, event Event) error
}

// EventSubscriber hands out a live stream of a cafe's events. The returned
// func unsubscribes and closes the stream.
type EventSubscriber interface {
	Subscribe(cafeID string) (<-chan Event, func())
}

// EventConsumer consumes broker deliveries (subscriber process mode).
type EventConsumer interface {
	ConsumeEvents(ctx context.Context, handler EventHandler) error
}

type EventHandler func(ctx context.Context, body []byte) error
