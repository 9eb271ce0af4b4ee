package rabbitmq

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/askarbek-dev/kitchenline/internal/interfaces"
)

type consumer struct {
	conn     Connection
	cafeID   string
	prefetch int
}

// NewConsumer consumes kitchen events for one cafe, or for every cafe
// when cafeID is empty.
func NewConsumer(conn Connection, cafeID string, prefetch int) interfaces.EventConsumer {
	return &consumer{conn: conn, cafeID: cafeID, prefetch: prefetch}
}

func (c *consumer) ConsumeEvents(ctx context.Context, handler interfaces.EventHandler) error {
	for {
		err := c.consumeWithReconnect(ctx, handler)

		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err == nil {
			return nil
		}

		// Переподключаемся после обрыва соединения.
		log.Printf("Events consumer disconnected: %v. Reconnecting in 5 seconds...", err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(5 * time.Second):
		}
	}
}

func (c *consumer) consumeWithReconnect(ctx context.Context, handler interfaces.EventHandler) error {
	ch, err := c.conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open channel: %w", err)
	}
	defer ch.Close()

	closeChan := ch.NotifyClose()

	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		return fmt.Errorf("failed to set QoS: %w", err)
	}

	if err := ch.ExchangeDeclare(eventsExchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare exchange: %w", err)
	}

	// Временная эксклюзивная очередь: подписчик получает только живые
	// события, история не реплеится.
	q, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		return fmt.Errorf("failed to declare queue: %w", err)
	}

	bindingKey := "cafe.#"
	if c.cafeID != "" {
		bindingKey = fmt.Sprintf("cafe.%s.*", c.cafeID)
	}
	if err := ch.QueueBind(q.Name, bindingKey, eventsExchange, false, nil); err != nil {
		return fmt.Errorf("failed to bind queue: %w", err)
	}

	msgs, err := ch.Consume(q.Name, "", true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case err := <-closeChan:
			if err != nil {
				return fmt.Errorf("channel closed: %w", err)
			}
			return fmt.Errorf("channel closed gracefully")

		case msg, ok := <-msgs:
			if !ok {
				return fmt.Errorf("messages channel closed")
			}

			// Доставка best-effort, ошибки обработчика не прерывают поток.
			_ = handler(ctx, msg.Body)
		}
	}
}
