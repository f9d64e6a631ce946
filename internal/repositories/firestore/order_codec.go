package firestore

import (
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	domain "github.com/fieldstone/cartops/internal/domain"
	pfirestore "github.com/fieldstone/cartops/internal/platform/firestore"
)

type orderDocument struct {
	CustomerID  string              `firestore:"customerId"`
	Name        string              `firestore:"name,omitempty"`
	OrderNumber string              `firestore:"orderNumber,omitempty"`
	Status      string              `firestore:"status"`
	Locale      string              `firestore:"locale,omitempty"`
	Items       []orderItemDocument `firestore:"items"`
	Subtotal    int64               `firestore:"subtotal"`
	Tax         int64               `firestore:"tax"`
	Total       int64               `firestore:"total"`
	SubmittedAt *time.Time          `firestore:"submittedAt,omitempty"`
	CreatedAt   time.Time           `firestore:"createdAt"`
	UpdatedAt   time.Time           `firestore:"updatedAt"`
	Version     int64               `firestore:"version"`
}

type orderItemDocument struct {
	ID           string            `firestore:"id"`
	ProductID    string            `firestore:"productId,omitempty"`
	SKU          string            `firestore:"sku,omitempty"`
	Kind         string            `firestore:"kind"`
	Quantity     int               `firestore:"quantity"`
	UnitPrice    int64             `firestore:"unitPrice"`
	ParentItemID string            `firestore:"parentItemId,omitempty"`
	Attributes   map[string]string `firestore:"attributes,omitempty"`
	AddedAt      time.Time         `firestore:"addedAt"`
	UpdatedAt    time.Time         `firestore:"updatedAt"`
}

func encodeOrder(order domain.Order) orderDocument {
	items := make([]orderItemDocument, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, orderItemDocument{
			ID:           item.ID,
			ProductID:    item.ProductID,
			SKU:          item.SKU,
			Kind:         string(item.Kind),
			Quantity:     item.Quantity,
			UnitPrice:    item.UnitPrice,
			ParentItemID: item.ParentItemID,
			Attributes:   item.Attributes,
			AddedAt:      item.AddedAt.UTC(),
			UpdatedAt:    item.UpdatedAt.UTC(),
		})
	}
	doc := orderDocument{
		CustomerID:  order.CustomerID,
		Name:        order.Name,
		OrderNumber: order.OrderNumber,
		Status:      string(order.Status),
		Locale:      order.Locale,
		Items:       items,
		Subtotal:    order.Subtotal,
		Tax:         order.Tax,
		Total:       order.Total,
		CreatedAt:   order.CreatedAt.UTC(),
		UpdatedAt:   order.UpdatedAt.UTC(),
		Version:     order.Version,
	}
	if order.SubmittedAt != nil {
		ts := order.SubmittedAt.UTC()
		doc.SubmittedAt = &ts
	}
	return doc
}

func decodeOrder(id string, doc orderDocument) domain.Order {
	items := make([]domain.OrderItem, 0, len(doc.Items))
	for _, item := range doc.Items {
		items = append(items, domain.OrderItem{
			ID:           item.ID,
			ProductID:    item.ProductID,
			SKU:          item.SKU,
			Kind:         domain.ItemKind(item.Kind),
			Quantity:     item.Quantity,
			UnitPrice:    item.UnitPrice,
			ParentItemID: item.ParentItemID,
			Attributes:   item.Attributes,
			AddedAt:      item.AddedAt,
			UpdatedAt:    item.UpdatedAt,
		})
	}
	return domain.Order{
		ID:          id,
		CustomerID:  doc.CustomerID,
		Name:        doc.Name,
		OrderNumber: doc.OrderNumber,
		Status:      domain.OrderStatus(doc.Status),
		Locale:      doc.Locale,
		Items:       items,
		Subtotal:    doc.Subtotal,
		Tax:         doc.Tax,
		Total:       doc.Total,
		SubmittedAt: doc.SubmittedAt,
		CreatedAt:   doc.CreatedAt,
		UpdatedAt:   doc.UpdatedAt,
		Version:     doc.Version,
	}
}

// conflictf builds a conflict-categorised error for stale or duplicate writes.
func conflictf(format string, args ...any) error {
	return status.Errorf(codes.Aborted, format, args...)
}

// notFoundf builds a not-found-categorised error for empty lookups.
func notFoundf(format string, args ...any) error {
	return pfirestore.WrapError("orders.find", status.Errorf(codes.NotFound, format, args...))
}
