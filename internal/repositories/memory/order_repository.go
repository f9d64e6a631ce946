package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	domain "github.com/fieldstone/cartops/internal/domain"
	"github.com/fieldstone/cartops/internal/repositories"
)

// OrderRepository is a process-local order store. Optimistic locking uses the
// aggregate's Version counter: Save fails with a conflict when the incoming
// version does not match the stored one.
type OrderRepository struct {
	mu         sync.RWMutex
	orders     map[string]domain.Order
	nextNumber int64
}

// NewOrderRepository constructs an empty in-memory order repository.
func NewOrderRepository() *OrderRepository {
	return &OrderRepository{
		orders:     make(map[string]domain.Order),
		nextNumber: 1,
	}
}

// Create persists a new order. It fails with a conflict when the ID is taken.
func (r *OrderRepository) Create(ctx context.Context, order domain.Order) (domain.Order, error) {
	if err := ctx.Err(); err != nil {
		return domain.Order{}, err
	}
	id := strings.TrimSpace(order.ID)
	if id == "" {
		return domain.Order{}, newError("orders.create", fmt.Errorf("order id is required"), false, false)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.orders[id]; exists {
		return domain.Order{}, newError("orders.create", fmt.Errorf("order %s already exists", id), false, true)
	}

	stored := domain.CloneOrder(order)
	stored.ID = id
	stored.Version = 1
	r.orders[id] = stored
	return domain.CloneOrder(stored), nil
}

// Save replaces the stored aggregate. The incoming Version must match the
// stored one; the saved aggregate carries the incremented version.
func (r *OrderRepository) Save(ctx context.Context, order domain.Order) (domain.Order, error) {
	if err := ctx.Err(); err != nil {
		return domain.Order{}, err
	}
	id := strings.TrimSpace(order.ID)
	if id == "" {
		return domain.Order{}, newError("orders.save", fmt.Errorf("order id is required"), false, false)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	stored, exists := r.orders[id]
	if !exists {
		return domain.Order{}, newError("orders.save", fmt.Errorf("order %s not found", id), true, false)
	}
	if order.Version != stored.Version {
		return domain.Order{}, newError("orders.save",
			fmt.Errorf("order %s version %d is stale, stored version is %d", id, order.Version, stored.Version),
			false, true)
	}

	next := domain.CloneOrder(order)
	next.Version = stored.Version + 1
	r.orders[id] = next
	return domain.CloneOrder(next), nil
}

// Delete removes the order. Deleting an absent order fails with not found.
func (r *OrderRepository) Delete(ctx context.Context, orderID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	id := strings.TrimSpace(orderID)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.orders[id]; !exists {
		return newError("orders.delete", fmt.Errorf("order %s not found", id), true, false)
	}
	delete(r.orders, id)
	return nil
}

// FindByID loads one order by its identifier.
func (r *OrderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	if err := ctx.Err(); err != nil {
		return domain.Order{}, err
	}
	id := strings.TrimSpace(orderID)

	r.mu.RLock()
	defer r.mu.RUnlock()

	stored, exists := r.orders[id]
	if !exists {
		return domain.Order{}, newError("orders.find", fmt.Errorf("order %s not found", id), true, false)
	}
	return domain.CloneOrder(stored), nil
}

// FindByIDs loads the orders whose IDs are present, skipping absent ones.
func (r *OrderRepository) FindByIDs(ctx context.Context, orderIDs []string) ([]domain.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.Order, 0, len(orderIDs))
	for _, id := range orderIDs {
		if stored, exists := r.orders[strings.TrimSpace(id)]; exists {
			out = append(out, domain.CloneOrder(stored))
		}
	}
	return out, nil
}

// FindCartForCustomer returns the customer's in-process cart.
func (r *OrderRepository) FindCartForCustomer(ctx context.Context, customerID string) (domain.Order, error) {
	if err := ctx.Err(); err != nil {
		return domain.Order{}, err
	}
	cid := strings.TrimSpace(customerID)

	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, stored := range r.orders {
		if stored.CustomerID == cid && stored.Status == domain.OrderStatusInProcess {
			return domain.CloneOrder(stored), nil
		}
	}
	return domain.Order{}, newError("orders.findCart", fmt.Errorf("no cart for customer %s", cid), true, false)
}

// FindNamedOrder returns the customer's named order with the given name.
func (r *OrderRepository) FindNamedOrder(ctx context.Context, customerID string, name string) (domain.Order, error) {
	if err := ctx.Err(); err != nil {
		return domain.Order{}, err
	}
	cid := strings.TrimSpace(customerID)
	trimmedName := strings.TrimSpace(name)

	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, stored := range r.orders {
		if stored.CustomerID == cid && stored.Status == domain.OrderStatusNamed && stored.Name == trimmedName {
			return domain.CloneOrder(stored), nil
		}
	}
	return domain.Order{}, newError("orders.findNamed", fmt.Errorf("no named order %q for customer %s", trimmedName, cid), true, false)
}

// FindByOrderNumber returns the submitted order carrying the given number.
func (r *OrderRepository) FindByOrderNumber(ctx context.Context, orderNumber string) (domain.Order, error) {
	if err := ctx.Err(); err != nil {
		return domain.Order{}, err
	}
	number := strings.TrimSpace(orderNumber)

	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, stored := range r.orders {
		if stored.OrderNumber != "" && stored.OrderNumber == number {
			return domain.CloneOrder(stored), nil
		}
	}
	return domain.Order{}, newError("orders.findByNumber", fmt.Errorf("no order with number %s", number), true, false)
}

// FindByDateRange returns submitted orders with a submission time inside
// [start, end), ordered by submission time.
func (r *OrderRepository) FindByDateRange(ctx context.Context, start, end time.Time) ([]domain.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []domain.Order
	for _, stored := range r.orders {
		if stored.SubmittedAt == nil {
			continue
		}
		ts := *stored.SubmittedAt
		if ts.Before(start) || !ts.Before(end) {
			continue
		}
		out = append(out, domain.CloneOrder(stored))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].SubmittedAt.Before(*out[j].SubmittedAt)
	})
	return out, nil
}

// FindForCustomer returns the customer's orders, optionally filtered by
// status, newest first.
func (r *OrderRepository) FindForCustomer(ctx context.Context, customerID string, status *domain.OrderStatus) ([]domain.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cid := strings.TrimSpace(customerID)

	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []domain.Order
	for _, stored := range r.orders {
		if stored.CustomerID != cid {
			continue
		}
		if status != nil && stored.Status != *status {
			continue
		}
		out = append(out, domain.CloneOrder(stored))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// Refresh reloads the order's stored state, discarding local mutation.
func (r *OrderRepository) Refresh(ctx context.Context, order domain.Order) (domain.Order, error) {
	return r.FindByID(ctx, order.ID)
}

// Submit marks the order submitted, assigning the next order number.
func (r *OrderRepository) Submit(ctx context.Context, order domain.Order) (domain.Order, error) {
	if err := ctx.Err(); err != nil {
		return domain.Order{}, err
	}
	id := strings.TrimSpace(order.ID)

	r.mu.Lock()
	defer r.mu.Unlock()

	stored, exists := r.orders[id]
	if !exists {
		return domain.Order{}, newError("orders.submit", fmt.Errorf("order %s not found", id), true, false)
	}
	if stored.Status == domain.OrderStatusSubmitted {
		return domain.Order{}, newError("orders.submit", fmt.Errorf("order %s is already submitted", id), false, true)
	}

	now := time.Now().UTC()
	stored.Status = domain.OrderStatusSubmitted
	stored.OrderNumber = fmt.Sprintf("ORD-%06d", r.nextNumber)
	stored.SubmittedAt = &now
	stored.UpdatedAt = now
	stored.Version++
	r.nextNumber++
	r.orders[id] = stored
	return domain.CloneOrder(stored), nil
}

var _ repositories.OrderRepository = (*OrderRepository)(nil)
