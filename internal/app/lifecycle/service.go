package lifecycle

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/askarbek-dev/kitchenline/internal/adapter/logger"
	"github.com/askarbek-dev/kitchenline/internal/domain"
	"github.com/askarbek-dev/kitchenline/internal/interfaces"
	"github.com/askarbek-dev/kitchenline/internal/locker"
)

// Service is the order state machine: the sole writer of order status and
// audit logs. Every transition re-reads the order under its exclusive
// section, applies atomically with exactly one audit entry, and hands
// queue-affecting transitions to the scheduler's own exclusive section.
type Service struct {
	repo       interfaces.OrderRepository
	queue      interfaces.QueueService
	pricer     interfaces.PricingCalculator
	logger     logger.Logger
	orderLocks *locker.Registry
}

func NewService(
	repo interfaces.OrderRepository,
	queue interfaces.QueueService,
	pricer interfaces.PricingCalculator,
	logger logger.Logger,
) *Service {
	return &Service{
		repo:       repo,
		queue:      queue,
		pricer:     pricer,
		logger:     logger,
		orderLocks: locker.NewRegistry(),
	}
}

// CreateOrder creates a draft order for the ordering client. Pricing is
// computed once here and immutable after the order leaves draft.
func (s *Service) CreateOrder(ctx context.Context, cmd interfaces.CreateOrderCommand) (*domain.Order, error) {
	if cmd.CafeID == "" {
		return nil, &domain.ValidationError{Field: "cafe_id", Message: "cafe id is required"}
	}
	if len(cmd.Items) == 0 {
		return nil, &domain.ValidationError{Field: "items", Message: "order must contain at least 1 item"}
	}

	now := time.Now().UTC()
	order := &domain.Order{
		ID:        uuid.NewString(),
		CafeID:    cmd.CafeID,
		Status:    domain.StatusDraft,
		CreatedAt: now,
		UpdatedAt: now,
	}

	for _, item := range cmd.Items {
		if item.Quantity < 1 {
			return nil, &domain.ValidationError{Field: "items", Message: "item quantity must be at least 1"}
		}
		if item.CookingType != domain.CookingShort && item.CookingType != domain.CookingLong {
			return nil, &domain.ValidationError{Field: "items", Message: "cooking type must be short or long"}
		}
		order.Items = append(order.Items, domain.OrderItem{
			ID:          uuid.NewString(),
			OrderID:     order.ID,
			MenuItemID:  item.MenuItemID,
			Name:        item.Name,
			Price:       item.Price,
			Quantity:    item.Quantity,
			CookingType: item.CookingType,
			TimeToCook:  time.Duration(item.TimeToCookSeconds) * time.Second,
		})
	}

	order.Pricing = s.pricer.Compute(order.Items)
	order.RecomputeLongItems()

	// Начальная запись в журнале, чтобы история восстанавливалась
	// целиком из журнала.
	entry := domain.AuditLog{
		OrderID:       order.ID,
		PreviousState: domain.StatusDraft,
		NewState:      domain.StatusDraft,
		ChangedBy:     cmd.Actor.ID,
		Role:          cmd.Actor.Role,
		ChangedAt:     now,
	}
	order.AuditLogs = append(order.AuditLogs, entry)

	if err := s.repo.Create(ctx, order, entry); err != nil {
		s.logger.Error("order_create_failed", "Failed to create order", "", nil, err)
		return nil, err
	}

	s.logger.Info("order_created", fmt.Sprintf("Order %s created", order.ID), "", map[string]interface{}{
		"cafe_id": order.CafeID,
		"total":   order.Pricing.Total.String(),
	})

	return order, nil
}

// AttachReceipt records an uploaded payment receipt (customer trigger).
func (s *Service) AttachReceipt(ctx context.Context, orderID string, actor domain.Actor, receiptRef string) (*domain.Order, error) {
	if strings.TrimSpace(receiptRef) == "" {
		return nil, &domain.ValidationError{Field: "receipt_ref", Message: "receipt reference is required"}
	}

	return s.transition(ctx, orderID, func(order *domain.Order) (domain.AuditLog, error) {
		entry, err := order.TransitionTo(domain.StatusPaymentUploaded, actor, nil)
		if err != nil {
			return domain.AuditLog{}, err
		}
		order.Payment.Method = domain.PaymentReceipt
		order.Payment.ReceiptRef = &receiptRef
		return entry, nil
	})
}

// SelectCash records the customer's choice to pay cash at pickup.
func (s *Service) SelectCash(ctx context.Context, orderID string, actor domain.Actor) (*domain.Order, error) {
	return s.transition(ctx, orderID, func(order *domain.Order) (domain.AuditLog, error) {
		entry, err := order.TransitionTo(domain.StatusCashSelected, actor, nil)
		if err != nil {
			return domain.AuditLog{}, err
		}
		order.Payment.Method = domain.PaymentCash
		return entry, nil
	})
}

// Approve moves a paid order into the kitchen queue. Cooking overrides are
// validated against the order's line items, baked in permanently and the
// derived long-items flag recomputed before admission.
func (s *Service) Approve(ctx context.Context, cmd interfaces.ApproveCommand) (*domain.Order, error) {
	lock := s.orderLocks.Get(cmd.OrderID)
	lock.Lock()
	defer lock.Unlock()

	order, err := s.repo.FindByID(ctx, cmd.OrderID)
	if err != nil {
		return nil, err
	}

	if !order.CanTransitionTo(domain.StatusApproved) {
		return nil, &domain.TransitionError{OrderID: order.ID, From: order.Status, To: domain.StatusApproved}
	}

	if err := order.ApplyOverrides(cmd.Overrides); err != nil {
		return nil, err
	}
	if cmd.PaidAmount != nil {
		order.Payment.PaidAmount = cmd.PaidAmount
	}

	entry, err := order.TransitionTo(domain.StatusApproved, cmd.Actor, nil)
	if err != nil {
		return nil, err
	}

	outcome, err := s.queue.Admit(ctx, order, entry)
	if err != nil {
		return nil, err
	}

	s.logger.Info("order_approved", fmt.Sprintf("Order %s approved", order.ID), "", map[string]interface{}{
		"cafe_id": order.CafeID,
		"outcome": string(outcome),
	})

	// Admit may have promoted the order already; return the stored state.
	return s.repo.FindByID(ctx, cmd.OrderID)
}

// Disapprove rejects a paid order. The rejection note is mandatory and
// queue admission never happens.
func (s *Service) Disapprove(ctx context.Context, orderID string, actor domain.Actor, rejectionNote string) (*domain.Order, error) {
	if strings.TrimSpace(rejectionNote) == "" {
		return nil, &domain.ValidationError{Field: "rejection_note", Message: "rejection note is required"}
	}

	return s.transition(ctx, orderID, func(order *domain.Order) (domain.AuditLog, error) {
		entry, err := order.TransitionTo(domain.StatusDisapproved, actor, &rejectionNote)
		if err != nil {
			return domain.AuditLog{}, err
		}
		order.Payment.RejectionNote = &rejectionNote
		return entry, nil
	})
}

// Cancel aborts a non-terminal order. A cancelled active order releases
// the kitchen slot and the next queued order is promoted in the same
// operation; a cancelled queued order is removed and the queue renumbered.
func (s *Service) Cancel(ctx context.Context, orderID string, actor domain.Actor, note *string) (*domain.Order, error) {
	lock := s.orderLocks.Get(orderID)
	lock.Lock()
	defer lock.Unlock()

	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	wasPreparing := order.Status == domain.StatusPreparing
	wasQueued := order.Status == domain.StatusApproved

	entry, err := order.TransitionTo(domain.StatusCancelled, actor, note)
	if err != nil {
		return nil, err
	}

	switch {
	case wasPreparing:
		if _, err := s.queue.Release(ctx, order, entry); err != nil {
			return nil, err
		}
	case wasQueued:
		if err := s.queue.Remove(ctx, order, entry); err != nil {
			return nil, err
		}
	default:
		if err := s.repo.UpdateWithLog(ctx, order, entry); err != nil {
			return nil, err
		}
	}

	s.logger.Info("order_cancelled", fmt.Sprintf("Order %s cancelled", order.ID), "", map[string]interface{}{
		"cafe_id":       order.CafeID,
		"was_preparing": wasPreparing,
	})

	return order, nil
}

// MarkReady completes preparation. Both the manual staff action and a
// timeout-driven escalation arrive here as the same transition.
func (s *Service) MarkReady(ctx context.Context, orderID string, actor domain.Actor) (*domain.Order, error) {
	lock := s.orderLocks.Get(orderID)
	lock.Lock()
	defer lock.Unlock()

	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	entry, err := order.TransitionTo(domain.StatusReady, actor, nil)
	if err != nil {
		return nil, err
	}

	if _, err := s.queue.Release(ctx, order, entry); err != nil {
		return nil, err
	}

	return order, nil
}

// MarkReceived confirms pickup by the customer.
func (s *Service) MarkReceived(ctx context.Context, orderID string, actor domain.Actor) (*domain.Order, error) {
	return s.transition(ctx, orderID, func(order *domain.Order) (domain.AuditLog, error) {
		return order.TransitionTo(domain.StatusReceived, actor, nil)
	})
}

func (s *Service) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	return s.repo.FindByID(ctx, orderID)
}

func (s *Service) GetAuditLogs(ctx context.Context, orderID string) ([]*domain.AuditLog, error) {
	return s.repo.GetAuditLogs(ctx, orderID)
}

// transition runs a plain (queue-neutral) transition under the order's
// exclusive section: re-read, apply, persist with its audit entry.
func (s *Service) transition(ctx context.Context, orderID string, apply func(*domain.Order) (domain.AuditLog, error)) (*domain.Order, error) {
	lock := s.orderLocks.Get(orderID)
	lock.Lock()
	defer lock.Unlock()

	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	entry, err := apply(order)
	if err != nil {
		return nil, err
	}

	if err := s.repo.UpdateWithLog(ctx, order, entry); err != nil {
		return nil, err
	}

	return order, nil
}
