package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/askarbek-dev/kitchenline/internal/adapter/logger"
	"github.com/askarbek-dev/kitchenline/internal/domain"
	"github.com/askarbek-dev/kitchenline/internal/interfaces"
	"github.com/askarbek-dev/kitchenline/internal/locker"
)

// Service is the kitchen queue scheduler. Per cafe it owns the single
// active-order slot and the ordered queue of approved orders; every
// mutation and read of a cafe's queue runs under that cafe's exclusive
// section, so "kitchen busy" is never the outcome of a stale read.
type Service struct {
	repo         interfaces.OrderRepository
	publisher    interfaces.EventPublisher
	logger       logger.Logger
	cafeLocks    *locker.Registry
	defaultShort time.Duration
}

func NewService(
	repo interfaces.OrderRepository,
	publisher interfaces.EventPublisher,
	logger logger.Logger,
	defaultShort time.Duration,
) *Service {
	return &Service{
		repo:         repo,
		publisher:    publisher,
		logger:       logger,
		cafeLocks:    locker.NewRegistry(),
		defaultShort: defaultShort,
	}
}

// Admit appends a freshly approved order to its cafe's queue, persisting
// the approval transition and the queue position as one unit, then promotes
// immediately if the kitchen is free.
func (s *Service) Admit(ctx context.Context, order *domain.Order, entry domain.AuditLog) (interfaces.PromoteOutcome, error) {
	lock := s.cafeLocks.Get(order.CafeID)
	lock.Lock()
	defer lock.Unlock()

	if err := s.verifyBase(ctx, order.ID, entry); err != nil {
		return "", err
	}

	queued, err := s.repo.ListQueued(ctx, order.CafeID)
	if err != nil {
		return "", err
	}
	if err := verifyPositions(order.CafeID, queued); err != nil {
		s.logger.Error("queue_inconsistent", "Queue positions are corrupt", "", map[string]interface{}{"cafe_id": order.CafeID}, err)
		return "", err
	}

	pos := len(queued) + 1
	order.QueuePosition = &pos

	if err := s.repo.UpdateWithLog(ctx, order, entry); err != nil {
		order.QueuePosition = nil
		return "", fmt.Errorf("failed to admit order: %w", err)
	}

	s.publishQueueLength(ctx, order.CafeID, pos)

	return s.tryPromoteLocked(ctx, order.CafeID)
}

// Release persists a transition out of preparing (ready or cancelled),
// frees the active slot and promotes the next queued order. Release and
// the follow-up promotion are one exclusive section, the queue is never
// observed idle while work is available.
func (s *Service) Release(ctx context.Context, order *domain.Order, entry domain.AuditLog) (interfaces.PromoteOutcome, error) {
	lock := s.cafeLocks.Get(order.CafeID)
	lock.Lock()
	defer lock.Unlock()

	if err := s.verifyBase(ctx, order.ID, entry); err != nil {
		return "", err
	}

	return s.releaseLocked(ctx, order, entry)
}

// releaseLocked persists the transition, frees the slot and promotes the
// next order. Caller must hold the cafe lock and have verified the base.
func (s *Service) releaseLocked(ctx context.Context, order *domain.Order, entry domain.AuditLog) (interfaces.PromoteOutcome, error) {
	order.DisplayedAt = nil
	order.TimeoutAt = nil
	order.QueuePosition = nil

	if err := s.repo.UpdateWithLog(ctx, order, entry); err != nil {
		return "", fmt.Errorf("failed to release kitchen slot: %w", err)
	}

	if order.Status == domain.StatusReady {
		s.publish(ctx, interfaces.Event{
			Type:    interfaces.EventOrderReady,
			CafeID:  order.CafeID,
			OrderID: &order.ID,
		})
	}

	outcome, err := s.tryPromoteLocked(ctx, order.CafeID)
	if err != nil {
		return "", err
	}
	if outcome != interfaces.OutcomePromoted {
		s.publish(ctx, interfaces.Event{
			Type:   interfaces.EventActiveOrderChanged,
			CafeID: order.CafeID,
		})
	}
	return outcome, nil
}

// Remove takes a cancelled-while-queued order out of the queue and shifts
// every order behind it down by one, preserving contiguity.
func (s *Service) Remove(ctx context.Context, order *domain.Order, entry domain.AuditLog) error {
	lock := s.cafeLocks.Get(order.CafeID)
	lock.Lock()
	defer lock.Unlock()

	stored, err := s.repo.FindByID(ctx, order.ID)
	if err != nil {
		return err
	}
	if stored.Status != entry.PreviousState {
		// Заказ успели продвинуть на кухню, пока отмена ждала секцию кафе.
		// Перечитываем и отменяем уже активный заказ через освобождение слота,
		// иначе устаревшая запись перепишет продвижение.
		if stored.Status == domain.StatusPreparing && entry.NewState == domain.StatusCancelled {
			actor := domain.Actor{ID: entry.ChangedBy, Role: entry.Role}
			redo, err := stored.TransitionTo(domain.StatusCancelled, actor, entry.Note)
			if err != nil {
				return err
			}
			*order = *stored
			_, err = s.releaseLocked(ctx, order, redo)
			return err
		}
		return &domain.ConsistencyError{
			CafeID: order.CafeID,
			Reason: fmt.Sprintf("order %s is %s, removal expected %s", order.ID, stored.Status, entry.PreviousState),
		}
	}

	queued, err := s.repo.ListQueued(ctx, order.CafeID)
	if err != nil {
		return err
	}
	if err := verifyPositions(order.CafeID, queued); err != nil {
		return err
	}

	var repositioned []*domain.Order
	next := 1
	for _, q := range queued {
		if q.ID == order.ID {
			continue
		}
		if *q.QueuePosition != next {
			pos := next
			q.QueuePosition = &pos
			repositioned = append(repositioned, q)
		}
		next++
	}

	order.QueuePosition = nil

	if err := s.repo.UpdateWithLog(ctx, order, entry, repositioned...); err != nil {
		return fmt.Errorf("failed to remove order from queue: %w", err)
	}

	s.publishQueueLength(ctx, order.CafeID, next-1)

	// Кухня могла простаивать, так что сразу пробуем продвинуть очередь.
	if _, err := s.tryPromoteLocked(ctx, order.CafeID); err != nil {
		return err
	}
	return nil
}

// ActiveOrder returns the cafe's single preparing order, or nil.
func (s *Service) ActiveOrder(ctx context.Context, cafeID string) (*domain.Order, error) {
	lock := s.cafeLocks.Get(cafeID)
	lock.Lock()
	defer lock.Unlock()

	return s.repo.ActiveOrder(ctx, cafeID)
}

// Queue returns the cafe's approved orders by queue position.
func (s *Service) Queue(ctx context.Context, cafeID string) ([]*domain.Order, error) {
	lock := s.cafeLocks.Get(cafeID)
	lock.Lock()
	defer lock.Unlock()

	queued, err := s.repo.ListQueued(ctx, cafeID)
	if err != nil {
		return nil, err
	}
	if err := verifyPositions(cafeID, queued); err != nil {
		return nil, err
	}
	return queued, nil
}

// Overdue returns preparing orders whose timeout has elapsed. Advisory
// only: staff decides whether to mark ready or escalate, nothing is
// transitioned automatically.
func (s *Service) Overdue(ctx context.Context, cafeID string) ([]*domain.Order, error) {
	return s.repo.ListOverdue(ctx, cafeID, time.Now().UTC())
}

// tryPromoteLocked promotes the oldest queued order if the kitchen is
// free. Caller must hold the cafe lock.
func (s *Service) tryPromoteLocked(ctx context.Context, cafeID string) (interfaces.PromoteOutcome, error) {
	active, err := s.repo.ActiveOrder(ctx, cafeID)
	if err != nil {
		return "", err
	}
	if active != nil {
		return interfaces.OutcomeKitchenBusy, nil
	}

	queued, err := s.repo.ListQueued(ctx, cafeID)
	if err != nil {
		return "", err
	}
	if len(queued) == 0 {
		return interfaces.OutcomeQueueEmpty, nil
	}
	if err := verifyPositions(cafeID, queued); err != nil {
		s.logger.Error("queue_inconsistent", "Queue positions are corrupt", "", map[string]interface{}{"cafe_id": cafeID}, err)
		return "", err
	}

	next := queued[0]
	entry, err := next.TransitionTo(domain.StatusPreparing, domain.SystemActor, nil)
	if err != nil {
		return "", err
	}

	now := time.Now().UTC()
	timeout := now.Add(next.CookDuration(s.defaultShort))
	next.DisplayedAt = &now
	next.TimeoutAt = &timeout
	next.QueuePosition = nil

	remaining := queued[1:]
	for i := range remaining {
		pos := i + 1
		remaining[i].QueuePosition = &pos
	}

	if err := s.repo.UpdateWithLog(ctx, next, entry, remaining...); err != nil {
		return "", fmt.Errorf("failed to promote order: %w", err)
	}

	s.logger.Info("order_promoted", fmt.Sprintf("Order %s is now on the kitchen display", next.ID), "", map[string]interface{}{
		"cafe_id":    cafeID,
		"order_id":   next.ID,
		"timeout_at": timeout,
	})

	s.publish(ctx, interfaces.Event{
		Type:    interfaces.EventActiveOrderChanged,
		CafeID:  cafeID,
		OrderID: &next.ID,
	})
	s.publishQueueLength(ctx, cafeID, len(remaining))

	return interfaces.OutcomePromoted, nil
}

// verifyBase re-reads the order inside the cafe section and checks that
// its stored status still matches the state the transition was computed
// from. Promotion runs under the cafe lock only, so a caller that read its
// snapshot before entering this section may be working on a stale order.
func (s *Service) verifyBase(ctx context.Context, orderID string, entry domain.AuditLog) error {
	stored, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return err
	}
	if stored.Status != entry.PreviousState {
		return &domain.ConsistencyError{
			CafeID: stored.CafeID,
			Reason: fmt.Sprintf("order %s is %s, transition expected %s", orderID, stored.Status, entry.PreviousState),
		}
	}
	return nil
}

// verifyPositions checks that queue positions are exactly 1..N. A gap or
// duplicate means an internal invariant broke; the operation is aborted
// rather than silently repaired.
func verifyPositions(cafeID string, queued []*domain.Order) error {
	for i, q := range queued {
		if q.QueuePosition == nil {
			return &domain.ConsistencyError{CafeID: cafeID, Reason: fmt.Sprintf("queued order %s has no position", q.ID)}
		}
		if *q.QueuePosition != i+1 {
			return &domain.ConsistencyError{CafeID: cafeID, Reason: fmt.Sprintf("expected position %d, found %d on order %s", i+1, *q.QueuePosition, q.ID)}
		}
	}
	return nil
}

func (s *Service) publishQueueLength(ctx context.Context, cafeID string, length int) {
	s.publish(ctx, interfaces.Event{
		Type:        interfaces.EventQueueUpdated,
		CafeID:      cafeID,
		QueueLength: &length,
	})
}

func (s *Service) publish(ctx context.Context, event interfaces.Event) {
	event.Timestamp = time.Now().UTC()
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Error("event_publish_failed", "Failed to publish event", "", nil, err)
	}
}
