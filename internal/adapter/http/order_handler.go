package http

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/askarbek-dev/kitchenline/internal/adapter/logger"
	"github.com/askarbek-dev/kitchenline/internal/domain"
	"github.com/askarbek-dev/kitchenline/internal/interfaces"
)

// OrderHandler is the boundary for order lifecycle operations. Auth and
// RBAC happen upstream; the actor arrives in headers and is recorded
// verbatim in the audit trail.
type OrderHandler struct {
	service interfaces.LifecycleService
	logger  logger.Logger
}

func NewOrderHandler(service interfaces.LifecycleService, logger logger.Logger) *OrderHandler {
	return &OrderHandler{service: service, logger: logger}
}

type CreateOrderRequest struct {
	CafeID string             `json:"cafe_id"`
	Items  []OrderItemRequest `json:"items"`
}

type OrderItemRequest struct {
	MenuItemID        string          `json:"menu_item_id"`
	Name              string          `json:"name"`
	Price             decimal.Decimal `json:"price"`
	Quantity          int             `json:"quantity"`
	CookingType       string          `json:"cooking_type"`
	TimeToCookSeconds int             `json:"time_to_cook_seconds"`
}

type AttachReceiptRequest struct {
	ReceiptRef string `json:"receipt_ref"`
}

type ApproveRequest struct {
	PaidAmount *decimal.Decimal  `json:"paid_amount,omitempty"`
	Overrides  map[string]string `json:"overrides,omitempty"`
}

type DisapproveRequest struct {
	RejectionNote string `json:"rejection_note"`
}

type CancelRequest struct {
	Note *string `json:"note,omitempty"`
}

// HandleOrders dispatches /orders and /orders/{id}[/{action}].
func (h *OrderHandler) HandleOrders(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")

	switch {
	case len(parts) == 1:
		h.createOrder(w, r)

	case len(parts) == 2 && r.Method == http.MethodGet:
		h.getOrder(w, r, parts[1])

	case len(parts) == 3 && parts[2] == "history" && r.Method == http.MethodGet:
		h.getHistory(w, r, parts[1])

	case len(parts) == 3 && r.Method == http.MethodPost:
		h.applyAction(w, r, parts[1], parts[2])

	default:
		http.Error(w, "Not found", http.StatusNotFound)
	}
}

func (h *OrderHandler) createOrder(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Invalid request body", Kind: "validation_error"})
		return
	}

	cmd := interfaces.CreateOrderCommand{
		CafeID: req.CafeID,
		Actor:  actorFrom(r),
	}
	for _, item := range req.Items {
		cmd.Items = append(cmd.Items, interfaces.CreateOrderItemCommand{
			MenuItemID:        item.MenuItemID,
			Name:              strings.TrimSpace(item.Name),
			Price:             item.Price,
			Quantity:          item.Quantity,
			CookingType:       domain.CookingType(item.CookingType),
			TimeToCookSeconds: item.TimeToCookSeconds,
		})
	}

	order, err := h.service.CreateOrder(r.Context(), cmd)
	if err != nil {
		h.logger.Error("order_creation_failed", "Failed to create order", RequestIDFrom(r.Context()), nil, err)
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, toOrderResponse(order))
}

func (h *OrderHandler) applyAction(w http.ResponseWriter, r *http.Request, orderID, action string) {
	actor := actorFrom(r)

	var order *domain.Order
	var err error

	switch action {
	case "receipt":
		var req AttachReceiptRequest
		if decodeErr := json.NewDecoder(r.Body).Decode(&req); decodeErr != nil {
			respondJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Invalid request body", Kind: "validation_error"})
			return
		}
		order, err = h.service.AttachReceipt(r.Context(), orderID, actor, req.ReceiptRef)

	case "cash":
		order, err = h.service.SelectCash(r.Context(), orderID, actor)

	case "approve":
		var req ApproveRequest
		if r.ContentLength > 0 {
			if decodeErr := json.NewDecoder(r.Body).Decode(&req); decodeErr != nil {
				respondJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Invalid request body", Kind: "validation_error"})
				return
			}
		}
		overrides := make(map[string]domain.CookingType, len(req.Overrides))
		for itemID, ct := range req.Overrides {
			overrides[itemID] = domain.CookingType(ct)
		}
		order, err = h.service.Approve(r.Context(), interfaces.ApproveCommand{
			OrderID:    orderID,
			Actor:      actor,
			PaidAmount: req.PaidAmount,
			Overrides:  overrides,
		})

	case "disapprove":
		var req DisapproveRequest
		if decodeErr := json.NewDecoder(r.Body).Decode(&req); decodeErr != nil {
			respondJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Invalid request body", Kind: "validation_error"})
			return
		}
		order, err = h.service.Disapprove(r.Context(), orderID, actor, req.RejectionNote)

	case "cancel":
		var req CancelRequest
		if r.ContentLength > 0 {
			if decodeErr := json.NewDecoder(r.Body).Decode(&req); decodeErr != nil {
				respondJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Invalid request body", Kind: "validation_error"})
				return
			}
		}
		order, err = h.service.Cancel(r.Context(), orderID, actor, req.Note)

	case "ready":
		order, err = h.service.MarkReady(r.Context(), orderID, actor)

	case "received":
		order, err = h.service.MarkReceived(r.Context(), orderID, actor)

	default:
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}

	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, toOrderResponse(order))
}

func (h *OrderHandler) getOrder(w http.ResponseWriter, r *http.Request, orderID string) {
	order, err := h.service.GetOrder(r.Context(), orderID)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toOrderResponse(order))
}

func (h *OrderHandler) getHistory(w http.ResponseWriter, r *http.Request, orderID string) {
	logs, err := h.service.GetAuditLogs(r.Context(), orderID)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	resp := make([]AuditLogResponse, len(logs))
	for i, entry := range logs {
		resp[i] = AuditLogResponse{
			PreviousState: string(entry.PreviousState),
			NewState:      string(entry.NewState),
			ChangedBy:     entry.ChangedBy,
			Role:          entry.Role,
			Note:          entry.Note,
			ChangedAt:     entry.ChangedAt,
		}
	}

	respondJSON(w, http.StatusOK, resp)
}

func actorFrom(r *http.Request) domain.Actor {
	return domain.Actor{
		ID:   r.Header.Get("X-Actor-Id"),
		Role: r.Header.Get("X-Actor-Role"),
	}
}
