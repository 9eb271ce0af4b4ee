package domain

import "time"

type Status string

const (
	StatusDraft           Status = "draft"
	StatusPaymentUploaded Status = "payment_uploaded"
	StatusCashSelected    Status = "cash_selected"
	StatusDisapproved     Status = "disapproved"
	StatusApproved        Status = "approved"
	StatusPreparing       Status = "preparing"
	StatusReady           Status = "ready"
	StatusReceived        Status = "received"
	StatusCancelled       Status = "cancelled"
)

type CookingType string

const (
	CookingShort CookingType = "short"
	CookingLong  CookingType = "long"
)

type PaymentMethod string

const (
	PaymentReceipt PaymentMethod = "receipt"
	PaymentCash    PaymentMethod = "cash"
)

// Actor identifies who performed a transition. Identity and role are
// recorded verbatim in the audit log, never re-derived here.
type Actor struct {
	ID   string
	Role string
}

// SystemActor is recorded for transitions the scheduler performs itself.
var SystemActor = Actor{ID: "kitchen-queue", Role: "system"}

// AuditLog is one append-only entry of an order's status history.
type AuditLog struct {
	ID            int64
	OrderID       string
	PreviousState Status
	NewState      Status
	ChangedBy     string
	Role          string
	Note          *string
	ChangedAt     time.Time
}
