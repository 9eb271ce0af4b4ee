package interfaces

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/askarbek-dev/kitchenline/internal/domain"
)

// LifecycleService is the order state machine: the sole writer of order
// status and audit logs.
type LifecycleService interface {
	CreateOrder(ctx context.Context, cmd CreateOrderCommand) (*domain.Order, error)
	AttachReceipt(ctx context.Context, orderID string, actor domain.Actor, receiptRef string) (*domain.Order, error)
	SelectCash(ctx context.Context, orderID string, actor domain.Actor) (*domain.Order, error)
	Approve(ctx context.Context, cmd ApproveCommand) (*domain.Order, error)
	Disapprove(ctx context.Context, orderID string, actor domain.Actor, rejectionNote string) (*domain.Order, error)
	Cancel(ctx context.Context, orderID string, actor domain.Actor, note *string) (*domain.Order, error)
	MarkReady(ctx context.Context, orderID string, actor domain.Actor) (*domain.Order, error)
	MarkReceived(ctx context.Context, orderID string, actor domain.Actor) (*domain.Order, error)
	GetOrder(ctx context.Context, orderID string) (*domain.Order, error)
	GetAuditLogs(ctx context.Context, orderID string) ([]*domain.AuditLog, error)
}

// QueueService serializes access to the physical kitchen: one order
// actively displayed per cafe, the rest queued FIFO by approval.
type QueueService interface {
	// Admit persists an approval at the back of the cafe's queue and
	// promotes it immediately if the kitchen is free.
	Admit(ctx context.Context, order *domain.Order, entry domain.AuditLog) (PromoteOutcome, error)

	// Release persists a transition out of preparing (ready or cancelled),
	// then promotes the next queued order in the same exclusive section.
	Release(ctx context.Context, order *domain.Order, entry domain.AuditLog) (PromoteOutcome, error)

	// Remove takes a still-queued order out of the queue (cancellation
	// before promotion) and renumbers the remainder.
	Remove(ctx context.Context, order *domain.Order, entry domain.AuditLog) error

	ActiveOrder(ctx context.Context, cafeID string) (*domain.Order, error)
	Queue(ctx context.Context, cafeID string) ([]*domain.Order, error)
	Overdue(ctx context.Context, cafeID string) ([]*domain.Order, error)
}

// PromoteOutcome is an expected scheduling result, not an error.
type PromoteOutcome string

const (
	OutcomePromoted    PromoteOutcome = "promoted"
	OutcomeKitchenBusy PromoteOutcome = "kitchen_busy"
	OutcomeQueueEmpty  PromoteOutcome = "queue_empty"
)

// PricingCalculator is the external pricing collaborator. Pricing is
// computed once at creation and immutable once the order leaves draft.
type PricingCalculator interface {
	Compute(items []domain.OrderItem) domain.Pricing
}

type CreateOrderCommand struct {
	CafeID string
	Actor  domain.Actor
	Items  []CreateOrderItemCommand
}

type CreateOrderItemCommand struct {
	MenuItemID        string
	Name              string
	Price             decimal.Decimal
	Quantity          int
	CookingType       domain.CookingType
	TimeToCookSeconds int
}

type ApproveCommand struct {
	OrderID    string
	Actor      domain.Actor
	PaidAmount *decimal.Decimal
	Overrides  map[string]domain.CookingType
}
