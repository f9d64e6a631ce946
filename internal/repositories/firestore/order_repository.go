package firestore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	domain "github.com/fieldstone/cartops/internal/domain"
	pfirestore "github.com/fieldstone/cartops/internal/platform/firestore"
	"github.com/fieldstone/cartops/internal/repositories"
)

const (
	orderCollection   = "orders"
	counterCollection = "counters"
	orderNumberDoc    = "orderNumbers"
)

// OrderRepository persists order aggregates within Firestore. Optimistic
// locking compares the stored document's version counter inside a transaction;
// stale writes surface as conflict-categorised errors.
type OrderRepository struct {
	base     *pfirestore.BaseRepository[orderDocument]
	provider *pfirestore.Provider
}

// NewOrderRepository constructs a Firestore-backed order repository.
func NewOrderRepository(provider *pfirestore.Provider) (*OrderRepository, error) {
	if provider == nil {
		return nil, errors.New("order repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[orderDocument](provider, orderCollection, nil, nil)
	return &OrderRepository{
		base:     base,
		provider: provider,
	}, nil
}

// Create writes a new order document, failing with a conflict when the ID is
// already taken.
func (r *OrderRepository) Create(ctx context.Context, order domain.Order) (domain.Order, error) {
	id := strings.TrimSpace(order.ID)
	if id == "" {
		return domain.Order{}, errors.New("order repository: order id is required")
	}

	doc := encodeOrder(order)
	doc.Version = 1

	ref, err := r.base.DocumentRef(ctx, id)
	if err != nil {
		return domain.Order{}, err
	}
	if _, err := ref.Create(ctx, doc); err != nil {
		return domain.Order{}, pfirestore.WrapError("orders.create", err)
	}
	return decodeOrder(id, doc), nil
}

// Save replaces the aggregate inside a transaction. The incoming Version must
// match the stored one; the saved aggregate carries the incremented version.
func (r *OrderRepository) Save(ctx context.Context, order domain.Order) (domain.Order, error) {
	id := strings.TrimSpace(order.ID)
	if id == "" {
		return domain.Order{}, errors.New("order repository: order id is required")
	}

	ref, err := r.base.DocumentRef(ctx, id)
	if err != nil {
		return domain.Order{}, err
	}

	doc := encodeOrder(order)
	err = r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			return err
		}
		var stored orderDocument
		if err := snap.DataTo(&stored); err != nil {
			return err
		}
		if stored.Version != order.Version {
			return conflictf("order %s version %d is stale, stored version is %d", id, order.Version, stored.Version)
		}
		doc.Version = stored.Version + 1
		return tx.Set(ref, doc)
	})
	if err != nil {
		return domain.Order{}, pfirestore.WrapError("orders.save", err)
	}
	return decodeOrder(id, doc), nil
}

// Delete removes the order document.
func (r *OrderRepository) Delete(ctx context.Context, orderID string) error {
	_, err := r.base.Delete(ctx, orderID, firestore.Exists)
	return err
}

// FindByID loads one order by its identifier.
func (r *OrderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	doc, err := r.base.Get(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	return decodeOrder(doc.ID, doc.Data), nil
}

// FindByIDs loads the orders whose documents exist, skipping absent ones.
func (r *OrderRepository) FindByIDs(ctx context.Context, orderIDs []string) ([]domain.Order, error) {
	out := make([]domain.Order, 0, len(orderIDs))
	for _, id := range orderIDs {
		order, err := r.FindByID(ctx, id)
		if err != nil {
			if isNotFound(err) {
				continue
			}
			return nil, err
		}
		out = append(out, order)
	}
	return out, nil
}

// FindCartForCustomer returns the customer's in-process cart.
func (r *OrderRepository) FindCartForCustomer(ctx context.Context, customerID string) (domain.Order, error) {
	cid := strings.TrimSpace(customerID)
	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("customerId", "==", cid).
			Where("status", "==", string(domain.OrderStatusInProcess)).
			Limit(1)
	})
	if err != nil {
		return domain.Order{}, err
	}
	if len(docs) == 0 {
		return domain.Order{}, notFoundf("no cart for customer %s", cid)
	}
	return decodeOrder(docs[0].ID, docs[0].Data), nil
}

// FindNamedOrder returns the customer's named order with the given name.
func (r *OrderRepository) FindNamedOrder(ctx context.Context, customerID string, name string) (domain.Order, error) {
	cid := strings.TrimSpace(customerID)
	trimmedName := strings.TrimSpace(name)
	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("customerId", "==", cid).
			Where("status", "==", string(domain.OrderStatusNamed)).
			Where("name", "==", trimmedName).
			Limit(1)
	})
	if err != nil {
		return domain.Order{}, err
	}
	if len(docs) == 0 {
		return domain.Order{}, notFoundf("no named order %q for customer %s", trimmedName, cid)
	}
	return decodeOrder(docs[0].ID, docs[0].Data), nil
}

// FindByOrderNumber returns the submitted order carrying the given number.
func (r *OrderRepository) FindByOrderNumber(ctx context.Context, orderNumber string) (domain.Order, error) {
	number := strings.TrimSpace(orderNumber)
	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("orderNumber", "==", number).Limit(1)
	})
	if err != nil {
		return domain.Order{}, err
	}
	if len(docs) == 0 {
		return domain.Order{}, notFoundf("no order with number %s", number)
	}
	return decodeOrder(docs[0].ID, docs[0].Data), nil
}

// FindByDateRange returns submitted orders inside [start, end), ordered by
// submission time.
func (r *OrderRepository) FindByDateRange(ctx context.Context, start, end time.Time) ([]domain.Order, error) {
	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("submittedAt", ">=", start.UTC()).
			Where("submittedAt", "<", end.UTC()).
			OrderBy("submittedAt", firestore.Asc)
	})
	if err != nil {
		return nil, err
	}
	out := make([]domain.Order, 0, len(docs))
	for _, doc := range docs {
		out = append(out, decodeOrder(doc.ID, doc.Data))
	}
	return out, nil
}

// FindForCustomer returns the customer's orders, optionally filtered by
// status, newest first.
func (r *OrderRepository) FindForCustomer(ctx context.Context, customerID string, status *domain.OrderStatus) ([]domain.Order, error) {
	cid := strings.TrimSpace(customerID)
	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		q = q.Where("customerId", "==", cid)
		if status != nil {
			q = q.Where("status", "==", string(*status))
		}
		return q
	})
	if err != nil {
		return nil, err
	}
	out := make([]domain.Order, 0, len(docs))
	for _, doc := range docs {
		out = append(out, decodeOrder(doc.ID, doc.Data))
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

// Submit marks the order submitted, assigning the next order number from the
// shared counter document in the same transaction.
func (r *OrderRepository) Submit(ctx context.Context, order domain.Order) (domain.Order, error) {
	id := strings.TrimSpace(order.ID)
	if id == "" {
		return domain.Order{}, errors.New("order repository: order id is required")
	}

	ref, err := r.base.DocumentRef(ctx, id)
	if err != nil {
		return domain.Order{}, err
	}
	client, err := r.provider.Client(ctx)
	if err != nil {
		return domain.Order{}, err
	}
	counterRef := client.Collection(counterCollection).Doc(orderNumberDoc)

	var submitted orderDocument
	err = r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			return err
		}
		var stored orderDocument
		if err := snap.DataTo(&stored); err != nil {
			return err
		}
		if stored.Status == string(domain.OrderStatusSubmitted) {
			return conflictf("order %s is already submitted", id)
		}

		counterSnap, err := tx.Get(counterRef)
		next, err := nextOrderSequence(counterSnap, err)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		stored.Status = string(domain.OrderStatusSubmitted)
		stored.OrderNumber = fmt.Sprintf("ORD-%06d", next)
		stored.SubmittedAt = &now
		stored.UpdatedAt = now
		stored.Version++

		if err := tx.Set(counterRef, map[string]any{"value": next}); err != nil {
			return err
		}
		if err := tx.Set(ref, stored); err != nil {
			return err
		}
		submitted = stored
		return nil
	})
	if err != nil {
		return domain.Order{}, pfirestore.WrapError("orders.submit", err)
	}
	return decodeOrder(id, submitted), nil
}

// nextOrderSequence derives the next order number from the counter document.
// A missing counter means the sequence starts at 1; any other read failure
// must abort the surrounding transaction or the sequence would silently reset.
func nextOrderSequence(snap *firestore.DocumentSnapshot, readErr error) (int64, error) {
	if readErr != nil {
		if status.Code(readErr) == codes.NotFound {
			return 1, nil
		}
		return 0, readErr
	}

	value, err := snap.DataAt("value")
	if err != nil {
		return 0, err
	}
	current, ok := value.(int64)
	if !ok {
		return 0, fmt.Errorf("order repository: counter value has unexpected type %T", value)
	}
	return current + 1, nil
}

func isNotFound(err error) bool {
	var repoErr repositories.RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsNotFound()
}

var _ repositories.OrderRepository = (*OrderRepository)(nil)
