package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestTotalsPricingEngineReprice(t *testing.T) {
	engine := NewTotalsPricingEngine(1000) // 10%

	order := Order{
		Items: []OrderItem{
			{ID: "item-1", Quantity: 2, UnitPrice: 500},
			{ID: "item-2", Quantity: 1, UnitPrice: 1000},
			{ID: "item-free", Quantity: 3, UnitPrice: 0},
			{ID: "item-zero", Quantity: 0, UnitPrice: 900},
		},
	}

	priced, err := engine.Reprice(context.Background(), order)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if priced.Subtotal != 2000 {
		t.Fatalf("expected subtotal 2000, got %d", priced.Subtotal)
	}
	if priced.Tax != 200 {
		t.Fatalf("expected tax 200, got %d", priced.Tax)
	}
	if priced.Total != 2200 {
		t.Fatalf("expected total 2200, got %d", priced.Total)
	}
}

func TestTotalsPricingEngineNegativeRateClamped(t *testing.T) {
	engine := NewTotalsPricingEngine(-500)
	priced, err := engine.Reprice(context.Background(), Order{
		Items: []OrderItem{{ID: "item-1", Quantity: 1, UnitPrice: 100}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if priced.Tax != 0 || priced.Total != 100 {
		t.Fatalf("expected zero tax, got tax=%d total=%d", priced.Tax, priced.Total)
	}
}

func TestIsPricingLockConflict(t *testing.T) {
	if isPricingLockConflict(nil) {
		t.Fatalf("nil error is not a conflict")
	}
	if !isPricingLockConflict(ErrPricingLockConflict) {
		t.Fatalf("sentinel must be recognised")
	}
	wrapped := fmt.Errorf("outer: %w", fmt.Errorf("inner: %w", ErrPricingLockConflict))
	if !isPricingLockConflict(wrapped) {
		t.Fatalf("wrapped sentinel must be recognised")
	}
	if !isPricingLockConflict(&repositoryErrorStub{conflict: true}) {
		t.Fatalf("repository conflict must be recognised")
	}
	if isPricingLockConflict(&repositoryErrorStub{notFound: true}) {
		t.Fatalf("repository not-found is not a conflict")
	}
	if isPricingLockConflict(errors.New("something else")) {
		t.Fatalf("unrelated errors are not conflicts")
	}
}
