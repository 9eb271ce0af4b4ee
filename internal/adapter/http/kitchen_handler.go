package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/askarbek-dev/kitchenline/internal/adapter/logger"
	"github.com/askarbek-dev/kitchenline/internal/interfaces"
)

// KitchenHandler serves the staff-facing kitchen views: the active order,
// the queue, overdue orders and the live event stream.
type KitchenHandler struct {
	queue      interfaces.QueueService
	subscriber interfaces.EventSubscriber
	logger     logger.Logger
}

func NewKitchenHandler(queue interfaces.QueueService, subscriber interfaces.EventSubscriber, logger logger.Logger) *KitchenHandler {
	return &KitchenHandler{queue: queue, subscriber: subscriber, logger: logger}
}

// HandleKitchen dispatches /kitchen/{cafeID}/{view}.
func (h *KitchenHandler) HandleKitchen(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(parts) != 3 {
		http.Error(w, "Invalid path", http.StatusBadRequest)
		return
	}

	cafeID := parts[1]

	switch parts[2] {
	case "active":
		h.getActive(w, r, cafeID)
	case "queue":
		h.getQueue(w, r, cafeID)
	case "overdue":
		h.getOverdue(w, r, cafeID)
	case "events":
		h.streamEvents(w, r, cafeID)
	default:
		http.Error(w, "Not found", http.StatusNotFound)
	}
}

func (h *KitchenHandler) getActive(w http.ResponseWriter, r *http.Request, cafeID string) {
	order, err := h.queue.ActiveOrder(r.Context(), cafeID)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	if order == nil {
		respondJSON(w, http.StatusOK, map[string]interface{}{"active_order": nil})
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"active_order": toOrderResponse(order)})
}

func (h *KitchenHandler) getQueue(w http.ResponseWriter, r *http.Request, cafeID string) {
	queued, err := h.queue.Queue(r.Context(), cafeID)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	resp := make([]OrderResponse, len(queued))
	for i, order := range queued {
		resp[i] = toOrderResponse(order)
	}
	respondJSON(w, http.StatusOK, resp)
}

func (h *KitchenHandler) getOverdue(w http.ResponseWriter, r *http.Request, cafeID string) {
	overdue, err := h.queue.Overdue(r.Context(), cafeID)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	resp := make([]OrderResponse, len(overdue))
	for i, order := range overdue {
		resp[i] = toOrderResponse(order)
	}
	respondJSON(w, http.StatusOK, resp)
}

// streamEvents pushes the cafe's live events over SSE. No history is
// replayed: a client that reconnects fetches /active and /queue first.
func (h *KitchenHandler) streamEvents(w http.ResponseWriter, r *http.Request, cafeID string) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	events, cancel := h.subscriber.Subscribe(cafeID)
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	h.logger.Debug("subscriber_connected", "Kitchen event stream opened", RequestIDFrom(r.Context()), map[string]interface{}{
		"cafe_id": cafeID,
	})

	for {
		select {
		case <-r.Context().Done():
			return

		case event, ok := <-events:
			if !ok {
				return
			}

			body, err := json.Marshal(event)
			if err != nil {
				h.logger.Error("event_marshal_failed", "Failed to marshal event", RequestIDFrom(r.Context()), nil, err)
				continue
			}

			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, body)
			flusher.Flush()
		}
	}
}
