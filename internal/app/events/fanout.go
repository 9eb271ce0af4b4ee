package events

import (
	"context"

	"github.com/google/uuid"

	"github.com/askarbek-dev/kitchenline/internal/adapter/logger"
	"github.com/askarbek-dev/kitchenline/internal/interfaces"
)

// Fanout publishes each event to every configured publisher (the local hub
// plus the broker). A failing publisher is logged and skipped: broadcast
// must never fail the transition that produced the event. Every event is
// stamped with this process's origin so the broker bridge can drop echoes.
type Fanout struct {
	origin     string
	publishers []interfaces.EventPublisher
	logger     logger.Logger
}

func NewFanout(logger logger.Logger, publishers ...interfaces.EventPublisher) *Fanout {
	return &Fanout{
		origin:     uuid.NewString(),
		publishers: publishers,
		logger:     logger,
	}
}

// Origin returns this process's producer id.
func (f *Fanout) Origin() string {
	return f.origin
}

func (f *Fanout) Publish(ctx context.Context, event interfaces.Event) error {
	event.Origin = f.origin
	for _, p := range f.publishers {
		if err := p.Publish(ctx, event); err != nil {
			f.logger.Error("event_publish_failed", "Failed to publish event", "", map[string]interface{}{
				"cafe_id": event.CafeID,
				"type":    string(event.Type),
			}, err)
		}
	}
	return nil
}
