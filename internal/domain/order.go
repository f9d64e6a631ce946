package domain

import (
	"strings"
	"time"
)

// OrderStatus describes the lifecycle state of an order aggregate.
type OrderStatus string

const (
	// OrderStatusInProcess marks a mutable cart owned by a customer.
	OrderStatusInProcess OrderStatus = "IN_PROCESS"
	// OrderStatusNamed marks a saved-for-later cart identified by a name.
	OrderStatusNamed OrderStatus = "NAMED"
	// OrderStatusSubmitted marks an order that completed checkout.
	OrderStatusSubmitted OrderStatus = "SUBMITTED"
	// OrderStatusCancelled marks a deleted or abandoned order.
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

// ItemKind tags the polymorphic order item variants.
type ItemKind string

const (
	// ItemKindDiscrete is a plain sellable line item.
	ItemKindDiscrete ItemKind = "DISCRETE"
	// ItemKindBundle is a composite item carrying dependent child items.
	ItemKindBundle ItemKind = "BUNDLE"
	// ItemKindGiftWrap wraps other items and never participates in merging.
	ItemKindGiftWrap ItemKind = "GIFT_WRAP"
)

// ActivityMessage is a non-fatal notice emitted by a pipeline activity,
// e.g. a quantity capped at available stock.
type ActivityMessage struct {
	Type    string
	Message string
}

// OrderItem is a single line item. The order owns every item in one flat
// collection; ParentItemID records composite nesting without implying
// ownership.
type OrderItem struct {
	ID           string
	ProductID    string
	SKU          string
	Kind         ItemKind
	Quantity     int
	UnitPrice    int64
	ParentItemID string
	Attributes   map[string]string
	AddedAt      time.Time
	UpdatedAt    time.Time
}

// Order is the aggregate root for carts, named orders, and submitted orders.
type Order struct {
	ID          string
	CustomerID  string
	Name        string
	OrderNumber string
	Status      OrderStatus
	Locale      string
	Items       []OrderItem
	Messages    []ActivityMessage
	Subtotal    int64
	Tax         int64
	Total       int64
	SubmittedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time

	// Version is the optimistic-locking counter maintained by repositories.
	// Saving with a stale version fails with a conflict.
	Version int64
}

// Item returns the item with the given ID, or nil when absent.
func (o *Order) Item(itemID string) *OrderItem {
	target := strings.TrimSpace(itemID)
	if target == "" {
		return nil
	}
	for i := range o.Items {
		if o.Items[i].ID == target {
			return &o.Items[i]
		}
	}
	return nil
}

// TopLevelItems returns the items without a parent, in insertion order.
// Only these are candidates for merge matching.
func (o *Order) TopLevelItems() []OrderItem {
	out := make([]OrderItem, 0, len(o.Items))
	for _, item := range o.Items {
		if item.ParentItemID == "" {
			out = append(out, item)
		}
	}
	return out
}

// ChildrenOf returns the direct children of the given item, in insertion order.
func (o *Order) ChildrenOf(itemID string) []OrderItem {
	target := strings.TrimSpace(itemID)
	if target == "" {
		return nil
	}
	var out []OrderItem
	for _, item := range o.Items {
		if item.ParentItemID == target {
			out = append(out, item)
		}
	}
	return out
}

// RemoveItemByID deletes the item from the flat collection. It reports whether
// the item was present. Callers are responsible for removing descendants first
// so no dangling parent reference survives.
func (o *Order) RemoveItemByID(itemID string) bool {
	for i := range o.Items {
		if o.Items[i].ID == itemID {
			o.Items = append(o.Items[:i], o.Items[i+1:]...)
			return true
		}
	}
	return false
}

// CloneItems returns a deep copy of the order's item collection.
func CloneItems(items []OrderItem) []OrderItem {
	if items == nil {
		return nil
	}
	dup := make([]OrderItem, len(items))
	copy(dup, items)
	for i := range dup {
		dup[i].Attributes = cloneStringMap(dup[i].Attributes)
	}
	return dup
}

// CloneOrder returns a deep copy of the order aggregate.
func CloneOrder(order Order) Order {
	dup := order
	dup.Items = CloneItems(order.Items)
	if order.Messages != nil {
		dup.Messages = make([]ActivityMessage, len(order.Messages))
		copy(dup.Messages, order.Messages)
	}
	if order.SubmittedAt != nil {
		ts := *order.SubmittedAt
		dup.SubmittedAt = &ts
	}
	return dup
}

func cloneStringMap(values map[string]string) map[string]string {
	if values == nil {
		return nil
	}
	out := make(map[string]string, len(values))
	for k, v := range values {
		out[k] = v
	}
	return out
}
