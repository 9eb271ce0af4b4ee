package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/askarbek-dev/kitchenline/internal/interfaces"
)

const (
	eventsExchange = "kitchen_events"

	publishAttempts = 3
	publishBackoff  = 200 * time.Millisecond
)

// publisher fans kitchen events out to the topic exchange, routed by cafe
// so a subscriber binds only to the cafes it displays. Publishing is
// best-effort with a short bounded retry; a transition is never rolled
// back because the broker was unreachable.
type publisher struct {
	conn Connection
}

func NewPublisher(conn Connection) interfaces.EventPublisher {
	return &publisher{conn: conn}
}

func (p *publisher) Publish(ctx context.Context, event interfaces.Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	routingKey := fmt.Sprintf("cafe.%s.%s", event.CafeID, event.Type)

	var lastErr error
	for attempt := 0; attempt < publishAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(publishBackoff):
			}
		}

		lastErr = p.publishOnce(routingKey, body)
		if lastErr == nil {
			return nil
		}
	}

	return fmt.Errorf("failed to publish event after %d attempts: %w", publishAttempts, lastErr)
}

func (p *publisher) publishOnce(routingKey string, body []byte) error {
	ch, err := p.conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open channel: %w", err)
	}
	defer ch.Close()

	if err := ch.ExchangeDeclare(eventsExchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare exchange: %w", err)
	}

	err = ch.Publish(eventsExchange, routingKey, false, false, amqp.Publishing{
		ContentType: "application/json",
		Body:        body,
	})
	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	return nil
}
