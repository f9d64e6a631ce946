package services

import (
	"context"
	"errors"
	"fmt"
)

// CartExtension lets deployments veto or enhance cart operations without
// changing the pipeline's shape. Hooks run before any mutation; a veto
// guarantees zero side effects.
type CartExtension interface {
	// PreValidateCartOperation approves or vetoes any mutation of the order.
	PreValidateCartOperation(ctx context.Context, order Order) error
	// PreValidateQuantityChange approves or vetoes a specific quantity change.
	PreValidateQuantityChange(ctx context.Context, order Order, req *ItemRequest) error
	// AttachToNamedOrder decorates a freshly created named order.
	AttachToNamedOrder(ctx context.Context, order *Order) error
	// FindCartForCustomerWithEnhancements may substitute the returned cart
	// entirely (e.g. merge-on-login). The bool reports whether the hook
	// handled the lookup; when false the caller falls back to default
	// behaviour.
	FindCartForCustomerWithEnhancements(ctx context.Context, customerID string, candidate *Order) (Order, bool, error)
}

// extensionDispatcher translates hook-reported failures into typed errors.
// A nil extension approves everything.
type extensionDispatcher struct {
	extension CartExtension
}

func (d extensionDispatcher) preValidateCartOperation(ctx context.Context, order Order) error {
	if d.extension == nil {
		return nil
	}
	return translateHookError(d.extension.PreValidateCartOperation(ctx, order))
}

func (d extensionDispatcher) preValidateQuantityChange(ctx context.Context, order Order, req *ItemRequest) error {
	if d.extension == nil {
		return nil
	}
	return translateHookError(d.extension.PreValidateQuantityChange(ctx, order, req))
}

func (d extensionDispatcher) attachToNamedOrder(ctx context.Context, order *Order) error {
	if d.extension == nil {
		return nil
	}
	return translateHookError(d.extension.AttachToNamedOrder(ctx, order))
}

func (d extensionDispatcher) findCartWithEnhancements(ctx context.Context, customerID string, candidate *Order) (Order, bool, error) {
	if d.extension == nil {
		return Order{}, false, nil
	}
	order, handled, err := d.extension.FindCartForCustomerWithEnhancements(ctx, customerID, candidate)
	if err != nil {
		return Order{}, false, translateHookError(err)
	}
	return order, handled, nil
}

// translateHookError re-raises illegal-operation vetoes as-is, preserving the
// caller-visible semantics, and wraps anything else as an unexpected internal
// failure.
func translateHookError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrIllegalCartOperation) {
		return err
	}
	return fmt.Errorf("%w: cart extension: %v", ErrInternal, err)
}
