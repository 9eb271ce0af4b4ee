package events

import (
	"context"
	"sync"

	"github.com/askarbek-dev/kitchenline/internal/adapter/logger"
	"github.com/askarbek-dev/kitchenline/internal/interfaces"
)

const subscriberBuffer = 32

// Hub is the in-process event broadcaster: per-cafe topics, publish-and-
// forget delivery to every currently connected subscriber. Events for the
// same order reach a subscriber in production order because Publish runs
// inside the section that produced the change and sends are in-line. A
// subscriber that cannot keep up loses events and is expected to refetch
// current state, the hub is never a source of truth.
type Hub struct {
	logger logger.Logger

	mu     sync.RWMutex
	topics map[string]map[int]chan interfaces.Event
	nextID int
}

func NewHub(logger logger.Logger) *Hub {
	return &Hub{
		logger: logger,
		topics: make(map[string]map[int]chan interfaces.Event),
	}
}

func (h *Hub) Publish(ctx context.Context, event interfaces.Event) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for id, ch := range h.topics[event.CafeID] {
		select {
		case ch <- event:
		default:
			// Медленный подписчик: событие отбрасываем, клиент перечитает
			// актуальное состояние при переподключении.
			h.logger.Debug("event_dropped", "Subscriber buffer full, event dropped", "", map[string]interface{}{
				"cafe_id":    event.CafeID,
				"subscriber": id,
				"type":       string(event.Type),
			})
		}
	}
	return nil
}

func (h *Hub) Subscribe(cafeID string) (<-chan interfaces.Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.topics[cafeID] == nil {
		h.topics[cafeID] = make(map[int]chan interfaces.Event)
	}

	id := h.nextID
	h.nextID++

	ch := make(chan interfaces.Event, subscriberBuffer)
	h.topics[cafeID][id] = ch

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()

		if sub, ok := h.topics[cafeID][id]; ok {
			delete(h.topics[cafeID], id)
			close(sub)
		}
	}

	return ch, cancel
}
