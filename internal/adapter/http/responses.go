package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/askarbek-dev/kitchenline/internal/domain"
)

type OrderResponse struct {
	ID            string              `json:"id"`
	CafeID        string              `json:"cafe_id"`
	Status        string              `json:"status"`
	Items         []OrderItemResponse `json:"items"`
	Payment       PaymentResponse     `json:"payment"`
	Pricing       PricingResponse     `json:"pricing"`
	QueuePosition *int                `json:"queue_position"`
	DisplayedAt   *time.Time          `json:"displayed_at,omitempty"`
	TimeoutAt     *time.Time          `json:"timeout_at,omitempty"`
	HasLongItems  bool                `json:"has_long_items"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
}

type OrderItemResponse struct {
	ID              string          `json:"id"`
	MenuItemID      string          `json:"menu_item_id"`
	Name            string          `json:"name"`
	Price           decimal.Decimal `json:"price"`
	Quantity        int             `json:"quantity"`
	CookingType     string          `json:"cooking_type"`
	CookingOverride *string         `json:"cooking_override,omitempty"`
}

type PaymentResponse struct {
	Method        string           `json:"method,omitempty"`
	ReceiptRef    *string          `json:"receipt_ref,omitempty"`
	PaidAmount    *decimal.Decimal `json:"paid_amount,omitempty"`
	RejectionNote *string          `json:"rejection_note,omitempty"`
}

type PricingResponse struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Tax      decimal.Decimal `json:"tax"`
	Total    decimal.Decimal `json:"total"`
}

type AuditLogResponse struct {
	PreviousState string    `json:"previous_state"`
	NewState      string    `json:"new_state"`
	ChangedBy     string    `json:"changed_by"`
	Role          string    `json:"role"`
	Note          *string   `json:"note,omitempty"`
	ChangedAt     time.Time `json:"changed_at"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func toOrderResponse(order *domain.Order) OrderResponse {
	resp := OrderResponse{
		ID:            order.ID,
		CafeID:        order.CafeID,
		Status:        string(order.Status),
		QueuePosition: order.QueuePosition,
		DisplayedAt:   order.DisplayedAt,
		TimeoutAt:     order.TimeoutAt,
		HasLongItems:  order.HasLongItems,
		CreatedAt:     order.CreatedAt,
		UpdatedAt:     order.UpdatedAt,
		Payment: PaymentResponse{
			Method:        string(order.Payment.Method),
			ReceiptRef:    order.Payment.ReceiptRef,
			PaidAmount:    order.Payment.PaidAmount,
			RejectionNote: order.Payment.RejectionNote,
		},
		Pricing: PricingResponse{
			Subtotal: order.Pricing.Subtotal,
			Tax:      order.Pricing.Tax,
			Total:    order.Pricing.Total,
		},
	}

	for _, item := range order.Items {
		itemResp := OrderItemResponse{
			ID:          item.ID,
			MenuItemID:  item.MenuItemID,
			Name:        item.Name,
			Price:       item.Price,
			Quantity:    item.Quantity,
			CookingType: string(item.CookingType),
		}
		if item.CookingOverride != nil {
			override := string(*item.CookingOverride)
			itemResp.CookingOverride = &override
		}
		resp.Items = append(resp.Items, itemResp)
	}

	return resp
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

// respondDomainError maps the error taxonomy onto HTTP statuses with
// enough structure for the client to render a message.
func respondDomainError(w http.ResponseWriter, err error) {
	var transitionErr *domain.TransitionError
	var validationErr *domain.ValidationError
	var unknownItemErr *domain.UnknownItemError
	var consistencyErr *domain.ConsistencyError

	switch {
	case errors.As(err, &transitionErr):
		respondJSON(w, http.StatusConflict, ErrorResponse{Error: err.Error(), Kind: "invalid_transition"})
	case errors.As(err, &validationErr):
		respondJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error(), Kind: "validation_error"})
	case errors.As(err, &unknownItemErr):
		respondJSON(w, http.StatusUnprocessableEntity, ErrorResponse{Error: err.Error(), Kind: "unknown_item"})
	case errors.As(err, &consistencyErr):
		respondJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error(), Kind: "consistency_fault"})
	default:
		respondJSON(w, http.StatusNotFound, ErrorResponse{Error: err.Error(), Kind: "not_found"})
	}
}
