package amqp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/askarbek-dev/kitchenline/internal/adapter/logger"
	"github.com/askarbek-dev/kitchenline/internal/interfaces"
)

// EventHandler bridges broker deliveries into a local publisher (the hub),
// so staff clients connected to this process receive events produced by
// other coordinator instances. Events carrying this process's own origin
// already reached the hub directly and are dropped.
type EventHandler struct {
	local       interfaces.EventPublisher
	localOrigin string
	logger      logger.Logger
}

func NewEventHandler(local interfaces.EventPublisher, localOrigin string, logger logger.Logger) *EventHandler {
	return &EventHandler{local: local, localOrigin: localOrigin, logger: logger}
}

func (h *EventHandler) HandleEvent(ctx context.Context, body []byte) error {
	var event interfaces.Event
	if err := json.Unmarshal(body, &event); err != nil {
		h.logger.Error("event_parse_failed", "Failed to parse kitchen event", "", nil, err)
		return err
	}

	if event.Origin != "" && event.Origin == h.localOrigin {
		return nil
	}

	return h.local.Publish(ctx, event)
}

// LogHandler prints received events, used by the standalone subscriber
// mode for operators watching a cafe.
type LogHandler struct {
	logger logger.Logger
}

func NewLogHandler(logger logger.Logger) *LogHandler {
	return &LogHandler{logger: logger}
}

func (h *LogHandler) HandleEvent(ctx context.Context, body []byte) error {
	var event interfaces.Event
	if err := json.Unmarshal(body, &event); err != nil {
		h.logger.Error("event_parse_failed", "Failed to parse kitchen event", "", nil, err)
		return err
	}

	details := map[string]interface{}{
		"cafe_id": event.CafeID,
		"type":    string(event.Type),
	}
	if event.OrderID != nil {
		details["order_id"] = *event.OrderID
	}
	if event.QueueLength != nil {
		details["queue_length"] = *event.QueueLength
	}

	h.logger.Info("kitchen_event", fmt.Sprintf("Kitchen event %s for cafe %s", event.Type, event.CafeID), "", details)
	return nil
}
