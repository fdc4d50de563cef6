package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures surfaced by the cart and checkout.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindNotFound
	KindInsufficientStock
	KindInvalidArgument
	KindPersistence
	KindAuthenticationRequired
	KindReservation
	KindOrderCreation
	KindConflict
	KindUnavailable
)

func (k ErrorKind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindInsufficientStock:
		return "insufficient_stock"
	case KindInvalidArgument:
		return "invalid_argument"
	case KindPersistence:
		return "persistence_failure"
	case KindAuthenticationRequired:
		return "authentication_required"
	case KindReservation:
		return "reservation_failure"
	case KindOrderCreation:
		return "order_creation_failure"
	case KindConflict:
		return "conflict"
	case KindUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// Error is returned by every cart and checkout operation that fails.
// Reason is safe to show to a customer.
type Error struct {
	Kind   ErrorKind
	Op     string
	Reason string
	Err    error
}

func (e *Error) Error() string {
	msg := e.Reason
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

func NewError(kind ErrorKind, op, reason string, err error) *Error {
	return &Error{Kind: kind, Op: op, Reason: reason, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// ReasonOf returns the customer-facing reason, falling back to err.Error().
func ReasonOf(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Reason != "" {
		return e.Reason
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
