package services

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput signals the caller provided invalid data.
	ErrInvalidInput = errors.New("order service: invalid input")
	// ErrOrderNotFound indicates the target order could not be located.
	ErrOrderNotFound = errors.New("order service: order not found")
	// ErrItemNotFound indicates the target item was missing at update or remove time.
	ErrItemNotFound = errors.New("order service: item not found")
	// ErrIllegalCartOperation is raised by a pre-validation hook veto before
	// any mutation occurs, e.g. when a cart is locked for checkout.
	ErrIllegalCartOperation = errors.New("order service: illegal cart operation")
	// ErrInternal wraps unexpected hook or pipeline causes that match no known kind.
	ErrInternal = errors.New("order service: internal error")
)

// AddToCartError reports a failed add operation. It always carries the
// deepest non-workflow cause so callers can match on what they attempted,
// never on pipeline mechanics.
type AddToCartError struct {
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *AddToCartError) Error() string {
	return opErrorString("add to cart", e.Message, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *AddToCartError) Unwrap() error { return e.Cause }

// UpdateCartError reports a failed quantity update.
type UpdateCartError struct {
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *UpdateCartError) Error() string {
	return opErrorString("update cart", e.Message, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *UpdateCartError) Unwrap() error { return e.Cause }

// RemoveFromCartError reports a failed item removal.
type RemoveFromCartError struct {
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *RemoveFromCartError) Error() string {
	return opErrorString("remove from cart", e.Message, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *RemoveFromCartError) Unwrap() error { return e.Cause }

// PricingError reports a failed repricing, including a retry budget exhausted
// under concurrent recalculation of the same order.
type PricingError struct {
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *PricingError) Error() string {
	return opErrorString("pricing", e.Message, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *PricingError) Unwrap() error { return e.Cause }

func opErrorString(op, message string, cause error) string {
	switch {
	case message != "" && cause != nil:
		return fmt.Sprintf("%s: %s: %v", op, message, cause)
	case message != "":
		return fmt.Sprintf("%s: %s", op, message)
	case cause != nil:
		return fmt.Sprintf("%s: %v", op, cause)
	}
	return op
}
