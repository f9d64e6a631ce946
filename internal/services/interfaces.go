package services

import (
	"context"
	"time"

	domain "github.com/fieldstone/cartops/internal/domain"
)

// Type aliases expose domain models to the services package without reversing dependency direction.
type (
	Order           = domain.Order
	OrderItem       = domain.OrderItem
	OrderStatus     = domain.OrderStatus
	ItemKind        = domain.ItemKind
	ActivityMessage = domain.ActivityMessage
)

// ItemRequest describes one desired cart change. It is constructed once per
// caller invocation and consumed during pipeline execution; the resolver
// stamps ParentItemID on child requests while recursing, callers leave it
// empty. Children model required or optional sub-components of a composite
// item, at arbitrary depth.
type ItemRequest struct {
	ItemID       string
	ProductID    string
	SKU          string
	Kind         ItemKind
	Quantity     int
	Attributes   map[string]string
	UnitPrice    int64
	ParentItemID string
	Children     []*ItemRequest
}

// OrderService exposes the cart mutation entry points plus the order lookup
// and named-order surfaces built on top of them.
type OrderService interface {
	CreateCartForCustomer(ctx context.Context, customerID string) (Order, error)
	CreateNamedOrderForCustomer(ctx context.Context, name string, customerID string) (Order, error)

	FindOrderByID(ctx context.Context, orderID string) (Order, error)
	FindOrdersByIDs(ctx context.Context, orderIDs []string) ([]Order, error)
	FindCartForCustomer(ctx context.Context, customerID string) (Order, error)
	FindCartForCustomerWithEnhancements(ctx context.Context, customerID string) (Order, error)
	FindNamedOrderForCustomer(ctx context.Context, name string, customerID string) (Order, error)
	FindOrderByOrderNumber(ctx context.Context, orderNumber string) (Order, error)
	FindOrdersByDateRange(ctx context.Context, start, end time.Time) ([]Order, error)
	FindOrdersForCustomer(ctx context.Context, customerID string, status *OrderStatus) ([]Order, error)

	AddItem(ctx context.Context, orderID string, req *ItemRequest, priceOrder bool) (Order, error)
	UpdateItemQuantity(ctx context.Context, orderID string, req *ItemRequest, priceOrder bool) (Order, error)
	RemoveItem(ctx context.Context, orderID string, itemID string, priceOrder bool) (Order, error)

	AddAllItemsFromNamedOrder(ctx context.Context, namedOrder Order, priceOrder bool) (Order, error)
	AddItemFromNamedOrder(ctx context.Context, namedOrder Order, itemID string, quantity int, priceOrder bool) (Order, error)

	Save(ctx context.Context, order Order, priceOrder bool) (Order, error)
	CancelOrder(ctx context.Context, order Order) error
	ConfirmOrder(ctx context.Context, order Order) (Order, error)
	Refresh(ctx context.Context, order Order) (Order, error)
}
