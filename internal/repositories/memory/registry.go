package memory

import (
	"context"

	"github.com/fieldstone/cartops/internal/repositories"
)

// Registry bundles the in-memory repositories behind the shared accessor
// surface. Transactions degrade to plain sequential execution: each repository
// call is individually atomic under its own lock.
type Registry struct {
	orders *OrderRepository
}

// NewRegistry constructs a registry with fresh, empty repositories.
func NewRegistry() *Registry {
	return &Registry{orders: NewOrderRepository()}
}

// Orders returns the order repository.
func (r *Registry) Orders() repositories.OrderRepository {
	return r.orders
}

// RunInTx executes fn directly; the in-memory backend has no cross-call
// transaction support.
func (r *Registry) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if fn == nil {
		return nil
	}
	return fn(ctx)
}

// Close is a no-op for the in-memory backend.
func (r *Registry) Close(context.Context) error {
	return nil
}

var _ repositories.Registry = (*Registry)(nil)
