package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/askarbek-dev/kitchenline/internal/domain"
	"github.com/askarbek-dev/kitchenline/internal/interfaces"
)

// OrderRepository is an in-memory record store. It backs the demo storage
// mode and the service tests; writes are atomic under one mutex, matching
// the transactional contract of the postgres adapter.
type OrderRepository struct {
	mu     sync.RWMutex
	orders map[string]*domain.Order
}

func NewOrderRepository() *OrderRepository {
	return &OrderRepository{orders: make(map[string]*domain.Order)}
}

func (r *OrderRepository) Create(ctx context.Context, order *domain.Order, entry domain.AuditLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.orders[order.ID]; ok {
		return fmt.Errorf("order %s already exists", order.ID)
	}
	r.orders[order.ID] = clone(order)
	return nil
}

func (r *OrderRepository) FindByID(ctx context.Context, id string) (*domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	order, ok := r.orders[id]
	if !ok {
		return nil, fmt.Errorf("order %s not found", id)
	}
	return clone(order), nil
}

// UpdateWithLog mirrors the transactional contract of the postgres adapter:
// the audit entry is appended to the stored log, never taken from the
// caller's copy, and a write computed from a state the store has already
// left is rejected so stale callers cannot erase history.
func (r *OrderRepository) UpdateWithLog(ctx context.Context, order *domain.Order, entry domain.AuditLog, repositioned ...*domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.orders[order.ID]
	if !ok {
		return fmt.Errorf("order %s not found", order.ID)
	}
	if stored.Status != entry.PreviousState {
		return fmt.Errorf("order %s is %s, write expected %s", order.ID, stored.Status, entry.PreviousState)
	}
	for _, q := range repositioned {
		if _, ok := r.orders[q.ID]; !ok {
			return fmt.Errorf("order %s not found", q.ID)
		}
	}

	next := clone(order)
	next.AuditLogs = append(append([]domain.AuditLog(nil), stored.AuditLogs...), entry)
	r.orders[order.ID] = next

	for _, q := range repositioned {
		c := clone(q)
		c.AuditLogs = append([]domain.AuditLog(nil), r.orders[q.ID].AuditLogs...)
		r.orders[q.ID] = c
	}
	return nil
}

func (r *OrderRepository) GetAuditLogs(ctx context.Context, orderID string) ([]*domain.AuditLog, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	order, ok := r.orders[orderID]
	if !ok {
		return nil, fmt.Errorf("order %s not found", orderID)
	}

	logs := make([]*domain.AuditLog, len(order.AuditLogs))
	for i := range order.AuditLogs {
		entry := order.AuditLogs[i]
		logs[i] = &entry
	}
	return logs, nil
}

func (r *OrderRepository) ActiveOrder(ctx context.Context, cafeID string) (*domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, order := range r.orders {
		if order.CafeID == cafeID && order.Status == domain.StatusPreparing {
			return clone(order), nil
		}
	}
	return nil, nil
}

func (r *OrderRepository) ListQueued(ctx context.Context, cafeID string) ([]*domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var queued []*domain.Order
	for _, order := range r.orders {
		if order.CafeID == cafeID && order.Status == domain.StatusApproved {
			queued = append(queued, clone(order))
		}
	}

	sort.Slice(queued, func(i, j int) bool {
		pi, pj := queued[i].QueuePosition, queued[j].QueuePosition
		if pi == nil || pj == nil {
			return pj == nil
		}
		return *pi < *pj
	})

	return queued, nil
}

func (r *OrderRepository) ListOverdue(ctx context.Context, cafeID string, now time.Time) ([]*domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var overdue []*domain.Order
	for _, order := range r.orders {
		if order.CafeID == cafeID && order.Status == domain.StatusPreparing &&
			order.TimeoutAt != nil && order.TimeoutAt.Before(now) {
			overdue = append(overdue, clone(order))
		}
	}
	return overdue, nil
}

// clone deep-copies an order so callers never share memory with the store.
func clone(o *domain.Order) *domain.Order {
	c := *o

	c.Items = make([]domain.OrderItem, len(o.Items))
	copy(c.Items, o.Items)
	for i := range c.Items {
		if o.Items[i].CookingOverride != nil {
			override := *o.Items[i].CookingOverride
			c.Items[i].CookingOverride = &override
		}
	}

	c.AuditLogs = make([]domain.AuditLog, len(o.AuditLogs))
	copy(c.AuditLogs, o.AuditLogs)

	c.QueuePosition = copyInt(o.QueuePosition)
	c.DisplayedAt = copyTime(o.DisplayedAt)
	c.TimeoutAt = copyTime(o.TimeoutAt)
	c.Payment.ReceiptRef = copyString(o.Payment.ReceiptRef)
	c.Payment.RejectionNote = copyString(o.Payment.RejectionNote)
	if o.Payment.PaidAmount != nil {
		amount := *o.Payment.PaidAmount
		c.Payment.PaidAmount = &amount
	}

	return &c
}

func copyInt(v *int) *int {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func copyTime(v *time.Time) *time.Time {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func copyString(v *string) *string {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

var _ interfaces.OrderRepository = (*OrderRepository)(nil)
