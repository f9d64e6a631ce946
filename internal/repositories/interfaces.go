package repositories

import (
	"context"
	"time"

	domain "github.com/fieldstone/cartops/internal/domain"
)

// Registry exposes typed repository accessors and lifecycle hooks for dependency injection.
type Registry interface {
	Close(ctx context.Context) error

	Orders() OrderRepository
	UnitOfWork
}

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// UnitOfWork allows grouping repository operations in a transactional boundary when supported.
type UnitOfWork interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// OrderRepository owns order aggregate persistence with optimistic locking
// guarantees. Save fails with a conflict-categorised error when the stored
// aggregate changed since it was read.
type OrderRepository interface {
	Create(ctx context.Context, order domain.Order) (domain.Order, error)
	Save(ctx context.Context, order domain.Order) (domain.Order, error)
	Delete(ctx context.Context, orderID string) error
	FindByID(ctx context.Context, orderID string) (domain.Order, error)
	FindByIDs(ctx context.Context, orderIDs []string) ([]domain.Order, error)
	FindCartForCustomer(ctx context.Context, customerID string) (domain.Order, error)
	FindNamedOrder(ctx context.Context, customerID string, name string) (domain.Order, error)
	FindByOrderNumber(ctx context.Context, orderNumber string) (domain.Order, error)
	FindByDateRange(ctx context.Context, start, end time.Time) ([]domain.Order, error)
	FindForCustomer(ctx context.Context, customerID string, status *domain.OrderStatus) ([]domain.Order, error)
	Refresh(ctx context.Context, order domain.Order) (domain.Order, error)
	Submit(ctx context.Context, order domain.Order) (domain.Order, error)
}
