package memory

import (
	"context"
	"testing"
	"time"

	"github.com/askarbek-dev/kitchenline/internal/domain"
)

func seedDraft(t *testing.T, repo *OrderRepository, id string) *domain.Order {
	t.Helper()

	now := time.Now().UTC()
	order := &domain.Order{
		ID:        id,
		CafeID:    "cafe-1",
		Status:    domain.StatusDraft,
		CreatedAt: now,
		UpdatedAt: now,
	}
	entry := domain.AuditLog{OrderID: id, PreviousState: domain.StatusDraft, NewState: domain.StatusDraft, ChangedBy: "customer", Role: "customer", ChangedAt: now}
	order.AuditLogs = append(order.AuditLogs, entry)

	if err := repo.Create(context.Background(), order, entry); err != nil {
		t.Fatalf("create: %v", err)
	}
	return order
}

func TestUpdateWithLogAppendsToStoredHistory(t *testing.T) {
	repo := NewOrderRepository()
	ctx := context.Background()

	order := seedDraft(t, repo, "o1")

	// Копия вызывающего потеряла историю; хранилище не должно это повторить.
	order.AuditLogs = nil
	entry, err := order.TransitionTo(domain.StatusCashSelected, domain.Actor{ID: "customer", Role: "customer"}, nil)
	if err != nil {
		t.Fatalf("transition: %v", err)
	}
	if err := repo.UpdateWithLog(ctx, order, entry); err != nil {
		t.Fatalf("update: %v", err)
	}

	logs, err := repo.GetAuditLogs(ctx, "o1")
	if err != nil {
		t.Fatalf("audit logs: %v", err)
	}
	if len(logs) != 2 {
		t.Fatalf("audit log length = %d, want 2", len(logs))
	}
	if logs[0].NewState != domain.StatusDraft || logs[1].NewState != domain.StatusCashSelected {
		t.Errorf("stored trail = %s, %s", logs[0].NewState, logs[1].NewState)
	}
}

func TestUpdateWithLogRejectsStaleBase(t *testing.T) {
	repo := NewOrderRepository()
	ctx := context.Background()

	seedDraft(t, repo, "o1")

	first, _ := repo.FindByID(ctx, "o1")
	second, _ := repo.FindByID(ctx, "o1")

	actor := domain.Actor{ID: "customer", Role: "customer"}
	entry, err := first.TransitionTo(domain.StatusCashSelected, actor, nil)
	if err != nil {
		t.Fatalf("transition: %v", err)
	}
	if err := repo.UpdateWithLog(ctx, first, entry); err != nil {
		t.Fatalf("first update: %v", err)
	}

	// Второй писатель исходил из draft, которого в хранилище уже нет.
	staleEntry, err := second.TransitionTo(domain.StatusCancelled, actor, nil)
	if err != nil {
		t.Fatalf("stale transition: %v", err)
	}
	if err := repo.UpdateWithLog(ctx, second, staleEntry); err == nil {
		t.Fatal("stale write accepted")
	}

	stored, _ := repo.FindByID(ctx, "o1")
	if stored.Status != domain.StatusCashSelected {
		t.Errorf("status = %s, want %s", stored.Status, domain.StatusCashSelected)
	}
	logs, _ := repo.GetAuditLogs(ctx, "o1")
	if len(logs) != 2 {
		t.Errorf("audit log length = %d, want 2", len(logs))
	}
}
