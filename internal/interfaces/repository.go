package interfaces

import (
	"context"
	"time"

	"github.com/askarbek-dev/kitchenline/internal/domain"
)

// OrderRepository is the durable record store for orders and their audit
// trail. Implementations must persist an order update together with its
// audit entry as one atomic unit.
type OrderRepository interface {
	Create(ctx context.Context, order *domain.Order, entry domain.AuditLog) error
	FindByID(ctx context.Context, id string) (*domain.Order, error)

	// UpdateWithLog persists the order and appends one audit entry in a
	// single transaction. Repositioned orders, if any, have their queue
	// positions written in the same transaction so renumbering is never
	// observed half-applied.
	UpdateWithLog(ctx context.Context, order *domain.Order, entry domain.AuditLog, repositioned ...*domain.Order) error

	GetAuditLogs(ctx context.Context, orderID string) ([]*domain.AuditLog, error)

	// ActiveOrder returns the cafe's single preparing order, or nil.
	ActiveOrder(ctx context.Context, cafeID string) (*domain.Order, error)

	// ListQueued returns the cafe's approved orders by queue position.
	ListQueued(ctx context.Context, cafeID string) ([]*domain.Order, error)

	// ListOverdue returns preparing orders whose timeout has elapsed.
	ListOverdue(ctx context.Context, cafeID string, now time.Time) ([]*domain.Order, error)
}
