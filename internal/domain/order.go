package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order is the central entity: one customer purchase progressing through
// approval, preparation and pickup. Status is the authoritative field and
// is mutated only through TransitionTo.
type Order struct {
	ID            string
	CafeID        string
	Items         []OrderItem
	Payment       Payment
	Pricing       Pricing
	Status        Status
	QueuePosition *int
	DisplayedAt   *time.Time
	TimeoutAt     *time.Time
	HasLongItems  bool
	AuditLogs     []AuditLog
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// OrderItem is a line item holding a snapshot of the menu item at the
// moment the order was placed.
type OrderItem struct {
	ID              string
	OrderID         string
	MenuItemID      string
	Name            string
	Price           decimal.Decimal
	Quantity        int
	CookingType     CookingType
	TimeToCook      time.Duration
	CookingOverride *CookingType
}

type Payment struct {
	Method        PaymentMethod
	ReceiptRef    *string
	PaidAmount    *decimal.Decimal
	RejectionNote *string
}

type Pricing struct {
	Subtotal decimal.Decimal
	Tax      decimal.Decimal
	Total    decimal.Decimal
}

// ResolvedCookingType returns the item's effective type, with the
// approval-time override taking precedence over the menu default.
func (i OrderItem) ResolvedCookingType() CookingType {
	if i.CookingOverride != nil {
		return *i.CookingOverride
	}
	return i.CookingType
}

var validTransitions = map[Status][]Status{
	StatusDraft:           {StatusPaymentUploaded, StatusCashSelected, StatusCancelled},
	StatusPaymentUploaded: {StatusApproved, StatusDisapproved, StatusCancelled},
	StatusCashSelected:    {StatusApproved, StatusDisapproved, StatusCancelled},
	StatusApproved:        {StatusPreparing, StatusCancelled},
	StatusPreparing:       {StatusReady, StatusCancelled},
	StatusReady:           {StatusReceived},
	StatusDisapproved:     {},
	StatusReceived:        {},
	StatusCancelled:       {},
}

// CanTransitionTo checks if the order may move to the new status.
func (o *Order) CanTransitionTo(newStatus Status) bool {
	for _, s := range validTransitions[o.Status] {
		if s == newStatus {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions are permitted.
func (o *Order) IsTerminal() bool {
	return len(validTransitions[o.Status]) == 0
}

// TransitionTo moves the order to newStatus and appends exactly one audit
// entry, or fails without touching the order. The returned entry still has
// to be persisted together with the order in one transaction.
func (o *Order) TransitionTo(newStatus Status, actor Actor, note *string) (AuditLog, error) {
	if !o.CanTransitionTo(newStatus) {
		return AuditLog{}, &TransitionError{OrderID: o.ID, From: o.Status, To: newStatus}
	}

	now := time.Now().UTC()
	entry := AuditLog{
		OrderID:       o.ID,
		PreviousState: o.Status,
		NewState:      newStatus,
		ChangedBy:     actor.ID,
		Role:          actor.Role,
		Note:          note,
		ChangedAt:     now,
	}

	o.Status = newStatus
	o.UpdatedAt = now
	o.AuditLogs = append(o.AuditLogs, entry)

	return entry, nil
}

// ApplyOverrides bakes approval-time cooking overrides into the line items.
// An override referencing an unknown item rejects the whole set, leaving
// every item untouched.
func (o *Order) ApplyOverrides(overrides map[string]CookingType) error {
	byID := make(map[string]*OrderItem, len(o.Items))
	for i := range o.Items {
		byID[o.Items[i].ID] = &o.Items[i]
	}

	for itemID, ct := range overrides {
		if _, ok := byID[itemID]; !ok {
			return &UnknownItemError{OrderID: o.ID, ItemID: itemID}
		}
		if ct != CookingShort && ct != CookingLong {
			return &ValidationError{Field: "overrides", Message: "cooking type must be short or long"}
		}
	}

	for itemID, ct := range overrides {
		override := ct
		byID[itemID].CookingOverride = &override
	}

	o.RecomputeLongItems()
	return nil
}

// RecomputeLongItems refreshes the derived HasLongItems flag from the
// resolved item types.
func (o *Order) RecomputeLongItems() {
	o.HasLongItems = false
	for _, item := range o.Items {
		if item.ResolvedCookingType() == CookingLong {
			o.HasLongItems = true
			return
		}
	}
}

// CookDuration returns the expected preparation time: the longest cook time
// among long items, or the kitchen's default for an all-short order.
func (o *Order) CookDuration(defaultShort time.Duration) time.Duration {
	longest := time.Duration(0)
	for _, item := range o.Items {
		if item.ResolvedCookingType() == CookingLong && item.TimeToCook > longest {
			longest = item.TimeToCook
		}
	}
	if longest == 0 {
		return defaultShort
	}
	return longest
}
