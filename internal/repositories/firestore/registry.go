package firestore

import (
	"context"

	"cloud.google.com/go/firestore"

	pfirestore "github.com/fieldstone/cartops/internal/platform/firestore"
	"github.com/fieldstone/cartops/internal/repositories"
)

// Registry bundles the Firestore repositories behind the shared accessor
// surface and owns the client lifecycle.
type Registry struct {
	provider *pfirestore.Provider
	orders   *OrderRepository
}

// NewRegistry constructs a registry over the supplied provider.
func NewRegistry(provider *pfirestore.Provider) (*Registry, error) {
	orders, err := NewOrderRepository(provider)
	if err != nil {
		return nil, err
	}
	return &Registry{
		provider: provider,
		orders:   orders,
	}, nil
}

// Orders returns the order repository.
func (r *Registry) Orders() repositories.OrderRepository {
	return r.orders
}

// RunInTx executes fn inside a Firestore transaction.
func (r *Registry) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if fn == nil {
		return nil
	}
	return r.provider.RunTransaction(ctx, func(ctx context.Context, _ *firestore.Transaction) error {
		return fn(ctx)
	})
}

// Close releases the Firestore client.
func (r *Registry) Close(ctx context.Context) error {
	return r.provider.Close(ctx)
}

var _ repositories.Registry = (*Registry)(nil)
