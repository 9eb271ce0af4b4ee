package lifecycle

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/askarbek-dev/kitchenline/internal/adapter/logger"
	"github.com/askarbek-dev/kitchenline/internal/adapter/memory"
	"github.com/askarbek-dev/kitchenline/internal/app/events"
	"github.com/askarbek-dev/kitchenline/internal/app/pricing"
	"github.com/askarbek-dev/kitchenline/internal/app/queue"
	"github.com/askarbek-dev/kitchenline/internal/domain"
	"github.com/askarbek-dev/kitchenline/internal/interfaces"
)

var (
	customer = domain.Actor{ID: "customer-1", Role: "customer"}
	staff    = domain.Actor{ID: "staff-1", Role: "manager"}
)

func newTestStack(t *testing.T) (*Service, *memory.OrderRepository, *events.Hub) {
	t.Helper()

	lgr := logger.New("test", logger.LevelError)
	repo := memory.NewOrderRepository()
	hub := events.NewHub(lgr)
	scheduler := queue.NewService(repo, hub, lgr, 5*time.Minute)
	svc := NewService(repo, scheduler, pricing.NewCalculator(12), lgr)
	return svc, repo, hub
}

func createPaidOrder(t *testing.T, svc *Service, cafeID string) *domain.Order {
	t.Helper()
	ctx := context.Background()

	order, err := svc.CreateOrder(ctx, interfaces.CreateOrderCommand{
		CafeID: cafeID,
		Actor:  customer,
		Items: []interfaces.CreateOrderItemCommand{
			{MenuItemID: "menu-1", Name: "Plov", Price: decimal.NewFromInt(5), Quantity: 2, CookingType: domain.CookingShort},
			{MenuItemID: "menu-2", Name: "Beshbarmak", Price: decimal.NewFromInt(8), Quantity: 1, CookingType: domain.CookingShort, TimeToCookSeconds: 1200},
		},
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	order, err = svc.AttachReceipt(ctx, order.ID, customer, "receipt-123")
	if err != nil {
		t.Fatalf("attach receipt: %v", err)
	}
	return order
}

func collect(stream <-chan interfaces.Event) []interfaces.Event {
	var got []interfaces.Event
	for {
		select {
		case event := <-stream:
			got = append(got, event)
		case <-time.After(50 * time.Millisecond):
			return got
		}
	}
}

func TestCreateOrderComputesPricingAndInitialAudit(t *testing.T) {
	svc, _, _ := newTestStack(t)
	ctx := context.Background()

	order, err := svc.CreateOrder(ctx, interfaces.CreateOrderCommand{
		CafeID: "cafe-1",
		Actor:  customer,
		Items: []interfaces.CreateOrderItemCommand{
			{MenuItemID: "menu-1", Name: "Plov", Price: decimal.NewFromInt(10), Quantity: 2, CookingType: domain.CookingShort},
		},
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	if order.Status != domain.StatusDraft {
		t.Errorf("status = %s, want %s", order.Status, domain.StatusDraft)
	}
	if !order.Pricing.Subtotal.Equal(decimal.NewFromInt(20)) {
		t.Errorf("subtotal = %s, want 20", order.Pricing.Subtotal)
	}
	if !order.Pricing.Tax.Equal(decimal.RequireFromString("2.4")) {
		t.Errorf("tax = %s, want 2.4", order.Pricing.Tax)
	}
	if !order.Pricing.Total.Equal(decimal.RequireFromString("22.4")) {
		t.Errorf("total = %s, want 22.4", order.Pricing.Total)
	}

	logs, err := svc.GetAuditLogs(ctx, order.ID)
	if err != nil {
		t.Fatalf("audit logs: %v", err)
	}
	if len(logs) != 1 || logs[0].NewState != domain.StatusDraft {
		t.Error("draft creation did not write the initial audit entry")
	}
}

// Scenario: approve a paid order into an empty kitchen. It takes position
// 1, is promoted immediately and ends up on the display.
func TestApprovePromotesIntoEmptyKitchen(t *testing.T) {
	svc, _, hub := newTestStack(t)
	ctx := context.Background()

	order := createPaidOrder(t, svc, "cafe-1")

	stream, cancel := hub.Subscribe("cafe-1")
	defer cancel()

	paid := decimal.NewFromInt(10)
	approved, err := svc.Approve(ctx, interfaces.ApproveCommand{
		OrderID:    order.ID,
		Actor:      staff,
		PaidAmount: &paid,
	})
	if err != nil {
		t.Fatalf("approve: %v", err)
	}

	if approved.Status != domain.StatusPreparing {
		t.Errorf("status = %s, want %s", approved.Status, domain.StatusPreparing)
	}
	if approved.QueuePosition != nil {
		t.Error("active order still has a queue position")
	}
	if approved.DisplayedAt == nil {
		t.Error("displayed_at not set on promotion")
	}
	if approved.Payment.PaidAmount == nil || !approved.Payment.PaidAmount.Equal(paid) {
		t.Error("paid amount not recorded")
	}

	var sawActive bool
	for _, event := range collect(stream) {
		if event.Type == interfaces.EventActiveOrderChanged && event.OrderID != nil && *event.OrderID == order.ID {
			sawActive = true
		}
	}
	if !sawActive {
		t.Error("active_order_changed event not delivered to subscriber")
	}
}

// Scenario: cooking overrides are baked in at approval and survive later
// transitions untouched.
func TestApproveOverridesArePermanent(t *testing.T) {
	svc, _, _ := newTestStack(t)
	ctx := context.Background()

	order := createPaidOrder(t, svc, "cafe-1")
	longItem := order.Items[1].ID

	approved, err := svc.Approve(ctx, interfaces.ApproveCommand{
		OrderID:   order.ID,
		Actor:     staff,
		Overrides: map[string]domain.CookingType{longItem: domain.CookingLong},
	})
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if !approved.HasLongItems {
		t.Error("HasLongItems not recomputed from overrides")
	}

	// timeout uses the long item's cook time, not the short default
	if approved.TimeoutAt == nil || approved.DisplayedAt == nil {
		t.Fatal("promotion did not set timestamps")
	}
	if got := approved.TimeoutAt.Sub(*approved.DisplayedAt); got != 20*time.Minute {
		t.Errorf("timeout window = %v, want %v", got, 20*time.Minute)
	}

	if _, err := svc.MarkReady(ctx, order.ID, staff); err != nil {
		t.Fatalf("mark ready: %v", err)
	}

	after, err := svc.GetOrder(ctx, order.ID)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	var item *domain.OrderItem
	for i := range after.Items {
		if after.Items[i].ID == longItem {
			item = &after.Items[i]
		}
	}
	if item == nil || item.CookingOverride == nil || *item.CookingOverride != domain.CookingLong {
		t.Error("override did not survive a later transition")
	}
	if !after.HasLongItems {
		t.Error("HasLongItems did not survive a later transition")
	}
}

func TestApproveRejectsUnknownOverride(t *testing.T) {
	svc, _, _ := newTestStack(t)
	ctx := context.Background()

	order := createPaidOrder(t, svc, "cafe-1")

	_, err := svc.Approve(ctx, interfaces.ApproveCommand{
		OrderID:   order.ID,
		Actor:     staff,
		Overrides: map[string]domain.CookingType{"no-such-item": domain.CookingLong},
	})

	var unknownErr *domain.UnknownItemError
	if !errors.As(err, &unknownErr) {
		t.Fatalf("error type = %T, want *UnknownItemError", err)
	}

	unchanged, _ := svc.GetOrder(ctx, order.ID)
	if unchanged.Status != domain.StatusPaymentUploaded {
		t.Error("failed approve changed the order status")
	}
}

// Scenario: disapprove with an empty note is a validation error and leaves
// no trace on the order.
func TestDisapproveRequiresNote(t *testing.T) {
	svc, _, _ := newTestStack(t)
	ctx := context.Background()

	order := createPaidOrder(t, svc, "cafe-1")
	logsBefore, _ := svc.GetAuditLogs(ctx, order.ID)

	_, err := svc.Disapprove(ctx, order.ID, staff, "   ")

	var validationErr *domain.ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("error type = %T, want *ValidationError", err)
	}

	unchanged, _ := svc.GetOrder(ctx, order.ID)
	if unchanged.Status != domain.StatusPaymentUploaded {
		t.Error("failed disapprove changed the order status")
	}
	logsAfter, _ := svc.GetAuditLogs(ctx, order.ID)
	if len(logsAfter) != len(logsBefore) {
		t.Error("failed disapprove appended an audit entry")
	}
}

func TestDisapproveRecordsNoteAndSkipsQueue(t *testing.T) {
	svc, _, _ := newTestStack(t)
	ctx := context.Background()

	order := createPaidOrder(t, svc, "cafe-1")

	rejected, err := svc.Disapprove(ctx, order.ID, staff, "receipt unreadable")
	if err != nil {
		t.Fatalf("disapprove: %v", err)
	}

	if rejected.Status != domain.StatusDisapproved {
		t.Errorf("status = %s, want %s", rejected.Status, domain.StatusDisapproved)
	}
	if rejected.Payment.RejectionNote == nil || *rejected.Payment.RejectionNote != "receipt unreadable" {
		t.Error("rejection note not recorded")
	}
	if rejected.QueuePosition != nil {
		t.Error("disapproved order was admitted to the queue")
	}
}

// Scenario: O1 preparing, O2 queued; markReady(O1) releases the slot and
// O2 is promoted in the same operation.
func TestMarkReadyPromotesNextQueued(t *testing.T) {
	svc, _, hub := newTestStack(t)
	ctx := context.Background()

	o1 := createPaidOrder(t, svc, "cafe-1")
	o2 := createPaidOrder(t, svc, "cafe-1")

	if _, err := svc.Approve(ctx, interfaces.ApproveCommand{OrderID: o1.ID, Actor: staff}); err != nil {
		t.Fatalf("approve o1: %v", err)
	}
	if _, err := svc.Approve(ctx, interfaces.ApproveCommand{OrderID: o2.ID, Actor: staff}); err != nil {
		t.Fatalf("approve o2: %v", err)
	}

	stream, cancel := hub.Subscribe("cafe-1")
	defer cancel()

	ready, err := svc.MarkReady(ctx, o1.ID, staff)
	if err != nil {
		t.Fatalf("mark ready: %v", err)
	}
	if ready.Status != domain.StatusReady {
		t.Errorf("status = %s, want %s", ready.Status, domain.StatusReady)
	}

	next, _ := svc.GetOrder(ctx, o2.ID)
	if next.Status != domain.StatusPreparing {
		t.Errorf("o2 status = %s, want %s", next.Status, domain.StatusPreparing)
	}
	if next.QueuePosition != nil {
		t.Error("promoted order still has a queue position")
	}

	var sawReady, sawActive, sawEmptyQueue bool
	for _, event := range collect(stream) {
		switch {
		case event.Type == interfaces.EventOrderReady && event.OrderID != nil && *event.OrderID == o1.ID:
			sawReady = true
		case event.Type == interfaces.EventActiveOrderChanged && event.OrderID != nil && *event.OrderID == o2.ID:
			sawActive = true
		case event.Type == interfaces.EventQueueUpdated && event.QueueLength != nil && *event.QueueLength == 0:
			sawEmptyQueue = true
		}
	}
	if !sawReady || !sawActive || !sawEmptyQueue {
		t.Errorf("missing events: ready=%v active=%v queue=%v", sawReady, sawActive, sawEmptyQueue)
	}
}

func TestMarkReadyIsNotIdempotent(t *testing.T) {
	svc, _, _ := newTestStack(t)
	ctx := context.Background()

	order := createPaidOrder(t, svc, "cafe-1")
	if _, err := svc.Approve(ctx, interfaces.ApproveCommand{OrderID: order.ID, Actor: staff}); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if _, err := svc.MarkReady(ctx, order.ID, staff); err != nil {
		t.Fatalf("first mark ready: %v", err)
	}

	_, err := svc.MarkReady(ctx, order.ID, staff)
	var transitionErr *domain.TransitionError
	if !errors.As(err, &transitionErr) {
		t.Fatalf("error type = %T, want *TransitionError", err)
	}

	unchanged, _ := svc.GetOrder(ctx, order.ID)
	if unchanged.Status != domain.StatusReady {
		t.Error("second mark ready changed the order")
	}
}

// Scenario: cancelling the active order releases the kitchen slot and the
// next queued order is promoted within the same operation.
func TestCancelActiveOrderPromotesNext(t *testing.T) {
	svc, _, _ := newTestStack(t)
	ctx := context.Background()

	o1 := createPaidOrder(t, svc, "cafe-1")
	o2 := createPaidOrder(t, svc, "cafe-1")
	if _, err := svc.Approve(ctx, interfaces.ApproveCommand{OrderID: o1.ID, Actor: staff}); err != nil {
		t.Fatalf("approve o1: %v", err)
	}
	if _, err := svc.Approve(ctx, interfaces.ApproveCommand{OrderID: o2.ID, Actor: staff}); err != nil {
		t.Fatalf("approve o2: %v", err)
	}

	note := "customer walked out"
	cancelled, err := svc.Cancel(ctx, o1.ID, staff, &note)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}

	if cancelled.Status != domain.StatusCancelled {
		t.Errorf("status = %s, want %s", cancelled.Status, domain.StatusCancelled)
	}
	if cancelled.DisplayedAt != nil || cancelled.TimeoutAt != nil {
		t.Error("cancelled active order kept its kitchen slot fields")
	}

	next, _ := svc.GetOrder(ctx, o2.ID)
	if next.Status != domain.StatusPreparing {
		t.Errorf("o2 status = %s, want %s", next.Status, domain.StatusPreparing)
	}
}

func TestCancelQueuedOrderRenumbersQueue(t *testing.T) {
	svc, _, _ := newTestStack(t)
	ctx := context.Background()

	o1 := createPaidOrder(t, svc, "cafe-1")
	o2 := createPaidOrder(t, svc, "cafe-1")
	o3 := createPaidOrder(t, svc, "cafe-1")
	for _, o := range []*domain.Order{o1, o2, o3} {
		if _, err := svc.Approve(ctx, interfaces.ApproveCommand{OrderID: o.ID, Actor: staff}); err != nil {
			t.Fatalf("approve: %v", err)
		}
	}

	// o1 is on the display; o2, o3 queued at positions 1, 2.
	if _, err := svc.Cancel(ctx, o2.ID, staff, nil); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	remaining, _ := svc.GetOrder(ctx, o3.ID)
	if remaining.QueuePosition == nil || *remaining.QueuePosition != 1 {
		t.Errorf("o3 position = %v, want 1", remaining.QueuePosition)
	}
}

func TestCancelTerminalOrderFails(t *testing.T) {
	svc, _, _ := newTestStack(t)
	ctx := context.Background()

	order := createPaidOrder(t, svc, "cafe-1")
	if _, err := svc.Disapprove(ctx, order.ID, staff, "bad receipt"); err != nil {
		t.Fatalf("disapprove: %v", err)
	}

	_, err := svc.Cancel(ctx, order.ID, staff, nil)
	var transitionErr *domain.TransitionError
	if !errors.As(err, &transitionErr) {
		t.Fatalf("error type = %T, want *TransitionError", err)
	}
}

func TestAuditTrailMatchesStatusHistory(t *testing.T) {
	svc, _, _ := newTestStack(t)
	ctx := context.Background()

	order := createPaidOrder(t, svc, "cafe-1")
	if _, err := svc.Approve(ctx, interfaces.ApproveCommand{OrderID: order.ID, Actor: staff}); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if _, err := svc.MarkReady(ctx, order.ID, staff); err != nil {
		t.Fatalf("mark ready: %v", err)
	}
	final, err := svc.MarkReceived(ctx, order.ID, customer)
	if err != nil {
		t.Fatalf("mark received: %v", err)
	}

	logs, err := svc.GetAuditLogs(ctx, order.ID)
	if err != nil {
		t.Fatalf("audit logs: %v", err)
	}

	want := []domain.Status{
		domain.StatusDraft,
		domain.StatusPaymentUploaded,
		domain.StatusApproved,
		domain.StatusPreparing,
		domain.StatusReady,
		domain.StatusReceived,
	}
	if len(logs) != len(want) {
		t.Fatalf("audit log length = %d, want %d", len(logs), len(want))
	}
	for i, entry := range logs {
		if entry.NewState != want[i] {
			t.Errorf("logs[%d].newState = %s, want %s", i, entry.NewState, want[i])
		}
		if i > 0 && entry.PreviousState != want[i-1] {
			t.Errorf("logs[%d].previousState = %s, want %s", i, entry.PreviousState, want[i-1])
		}
	}
	if logs[len(logs)-1].NewState != final.Status {
		t.Error("last audit entry does not match final status")
	}
}

func TestGetRejectsUnknownOrder(t *testing.T) {
	svc, _, _ := newTestStack(t)

	if _, err := svc.GetOrder(context.Background(), "missing"); err == nil {
		t.Fatal("expected error for unknown order")
	}
}
