package services

import (
	"context"
	"errors"

	"github.com/fieldstone/cartops/internal/repositories"
)

// ErrPricingLockConflict is wrapped by pricing engine implementations when a
// concurrent recalculation of the same order holds the pricing lock.
var ErrPricingLockConflict = errors.New("pricing: lock conflict")

// PricingEngine recomputes an order's totals, taxes, and adjustments.
// Repricing is expensive; the orchestrator throttles it to at most once per
// logical operation.
type PricingEngine interface {
	Reprice(ctx context.Context, order Order) (Order, error)
}

// TotalsPricingEngine is the default engine: it derives subtotal from line
// unit prices and applies a flat tax rate expressed in basis points.
type TotalsPricingEngine struct {
	taxBasisPoints int64
}

// NewTotalsPricingEngine constructs the default totals engine.
func NewTotalsPricingEngine(taxBasisPoints int64) *TotalsPricingEngine {
	if taxBasisPoints < 0 {
		taxBasisPoints = 0
	}
	return &TotalsPricingEngine{taxBasisPoints: taxBasisPoints}
}

// Reprice recomputes subtotal, tax, and total from the order's items.
func (e *TotalsPricingEngine) Reprice(_ context.Context, order Order) (Order, error) {
	var subtotal int64
	for _, item := range order.Items {
		if item.Quantity <= 0 || item.UnitPrice <= 0 {
			continue
		}
		subtotal += item.UnitPrice * int64(item.Quantity)
	}
	order.Subtotal = subtotal
	order.Tax = subtotal * e.taxBasisPoints / 10000
	order.Total = order.Subtotal + order.Tax
	return order, nil
}

// isPricingLockConflict walks the failure's cause chain looking for the
// lock-acquisition-specific cause. Failures may arrive wrapped in several
// layers of generic workflow failure.
func isPricingLockConflict(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrPricingLockConflict) {
		return true
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		return repoErr.IsConflict()
	}
	return false
}
