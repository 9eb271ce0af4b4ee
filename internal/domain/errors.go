package domain

import "fmt"

// TransitionError reports an attempt to move an order along an edge the
// state machine does not allow. Always a caller mistake, never retried.
type TransitionError struct {
	OrderID string
	From    Status
	To      Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid transition %s -> %s for order %s", e.From, e.To, e.OrderID)
}

// ValidationError reports a missing or malformed operation field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// UnknownItemError reports a cooking override referencing a line item that
// is not on the order.
type UnknownItemError struct {
	OrderID string
	ItemID  string
}

func (e *UnknownItemError) Error() string {
	return fmt.Sprintf("order %s has no item %s", e.OrderID, e.ItemID)
}

// ConsistencyError reports an internal invariant violation, such as a gap
// or duplicate in queue positions. It aborts the operation and is surfaced
// to operators, never silently repaired.
type ConsistencyError struct {
	CafeID string
	Reason string
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("queue consistency fault for cafe %s: %s", e.CafeID, e.Reason)
}
