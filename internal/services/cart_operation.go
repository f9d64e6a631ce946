package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	domain "github.com/fieldstone/cartops/internal/domain"
	"github.com/fieldstone/cartops/internal/workflow"
)

// CartOperation is the working state for one pipeline run: the target order,
// the active item request, whether this run triggers repricing, the affected
// item, and the non-fatal messages the activities collected. It is owned
// exclusively by one run and never shared across concurrent runs.
type CartOperation struct {
	Order      *Order
	Request    *ItemRequest
	PriceOrder bool
	Item       *OrderItem
	Messages   []ActivityMessage
}

// AddMessage appends a non-fatal activity message to the run.
func (op *CartOperation) AddMessage(msgType, message string) {
	op.Messages = append(op.Messages, ActivityMessage{Type: msgType, Message: message})
}

// orderSaver persists the order and triggers repricing when requested. The
// orchestrator supplies its retry-coordinated save so every workflow shares
// the same conflict handling.
type orderSaver func(ctx context.Context, order Order, priceOrder bool) (Order, error)

const (
	addItemWorkflowName    = "addItem"
	updateItemWorkflowName = "updateItem"
	removeItemWorkflowName = "removeItem"
)

func newAddItemWorkflow(newID func() string, now func() time.Time, save orderSaver) (*workflow.Processor[*CartOperation], error) {
	return workflow.NewProcessor(addItemWorkflowName,
		workflow.Activity[*CartOperation](validateAddRequestActivity{}),
		createOrderItemActivity{newID: newID, now: now},
		persistOrderActivity{save: save},
	)
}

func newUpdateItemWorkflow(now func() time.Time, save orderSaver) (*workflow.Processor[*CartOperation], error) {
	return workflow.NewProcessor(updateItemWorkflowName,
		workflow.Activity[*CartOperation](validateUpdateRequestActivity{}),
		updateItemQuantityActivity{now: now},
		persistOrderActivity{save: save},
	)
}

func newRemoveItemWorkflow(now func() time.Time, save orderSaver) (*workflow.Processor[*CartOperation], error) {
	return workflow.NewProcessor(removeItemWorkflowName,
		workflow.Activity[*CartOperation](resolveRemoveTargetActivity{}),
		removeOrderItemActivity{now: now},
		persistOrderActivity{save: save},
	)
}

// validateAddRequestActivity rejects add requests that cannot produce a valid
// persisted item.
type validateAddRequestActivity struct{}

func (validateAddRequestActivity) Name() string { return "validateAddRequest" }

func (validateAddRequestActivity) Execute(_ context.Context, op *CartOperation) error {
	req := op.Request
	if req == nil {
		return fmt.Errorf("%w: item request is required", ErrInvalidInput)
	}
	if req.Quantity <= 0 {
		return fmt.Errorf("%w: quantity must be greater than zero", ErrInvalidInput)
	}
	if strings.TrimSpace(req.ProductID) == "" && strings.TrimSpace(req.SKU) == "" {
		return fmt.Errorf("%w: product or sku reference is required", ErrInvalidInput)
	}
	if req.ParentItemID != "" && op.Order.Item(req.ParentItemID) == nil {
		return fmt.Errorf("%w: parent item %s not in order", ErrInvalidInput, req.ParentItemID)
	}
	return nil
}

// createOrderItemActivity materialises the request as a new line item in the
// order's flat collection.
type createOrderItemActivity struct {
	newID func() string
	now   func() time.Time
}

func (createOrderItemActivity) Name() string { return "createOrderItem" }

func (a createOrderItemActivity) Execute(_ context.Context, op *CartOperation) error {
	req := op.Request
	kind := req.Kind
	if kind == "" {
		kind = domain.ItemKindDiscrete
		if len(req.Children) > 0 {
			kind = domain.ItemKindBundle
		}
	}
	ts := a.now()
	item := OrderItem{
		ID:           a.newID(),
		ProductID:    strings.TrimSpace(req.ProductID),
		SKU:          strings.TrimSpace(req.SKU),
		Kind:         kind,
		Quantity:     req.Quantity,
		UnitPrice:    req.UnitPrice,
		ParentItemID: req.ParentItemID,
		Attributes:   cloneAttributes(req.Attributes),
		AddedAt:      ts,
		UpdatedAt:    ts,
	}
	op.Order.Items = append(op.Order.Items, item)
	op.Item = op.Order.Item(item.ID)
	return nil
}

// validateUpdateRequestActivity resolves the target item and rejects invalid
// quantity changes. Zero-quantity requests never reach this workflow; the
// orchestrator redirects them to removal.
type validateUpdateRequestActivity struct{}

func (validateUpdateRequestActivity) Name() string { return "validateUpdateRequest" }

func (validateUpdateRequestActivity) Execute(_ context.Context, op *CartOperation) error {
	req := op.Request
	if req == nil || strings.TrimSpace(req.ItemID) == "" {
		return fmt.Errorf("%w: item id is required", ErrInvalidInput)
	}
	if req.Quantity < 0 {
		return fmt.Errorf("%w: quantity must not be negative", ErrInvalidInput)
	}
	if op.Order.Item(req.ItemID) == nil {
		return fmt.Errorf("%w: %s", ErrItemNotFound, req.ItemID)
	}
	return nil
}

// updateItemQuantityActivity applies the new quantity to the resolved item.
type updateItemQuantityActivity struct {
	now func() time.Time
}

func (updateItemQuantityActivity) Name() string { return "updateItemQuantity" }

func (a updateItemQuantityActivity) Execute(_ context.Context, op *CartOperation) error {
	item := op.Order.Item(op.Request.ItemID)
	if item == nil {
		return fmt.Errorf("%w: %s", ErrItemNotFound, op.Request.ItemID)
	}
	if item.Quantity == op.Request.Quantity {
		op.AddMessage("quantityUnchanged", fmt.Sprintf("item %s already at quantity %d", item.ID, item.Quantity))
	} else {
		item.Quantity = op.Request.Quantity
		item.UpdatedAt = a.now()
	}
	op.Item = item
	return nil
}

// resolveRemoveTargetActivity resolves the item to remove.
type resolveRemoveTargetActivity struct{}

func (resolveRemoveTargetActivity) Name() string { return "resolveRemoveTarget" }

func (resolveRemoveTargetActivity) Execute(_ context.Context, op *CartOperation) error {
	req := op.Request
	if req == nil || strings.TrimSpace(req.ItemID) == "" {
		return fmt.Errorf("%w: item id is required", ErrInvalidInput)
	}
	item := op.Order.Item(req.ItemID)
	if item == nil {
		return fmt.Errorf("%w: %s", ErrItemNotFound, req.ItemID)
	}
	op.Item = item
	return nil
}

// removeOrderItemActivity deletes the resolved item from the flat collection.
// Descendants must already be gone: the orchestrator removes them in their own
// pipeline runs before the parent's run so no dangling parent reference is
// ever persisted.
type removeOrderItemActivity struct {
	now func() time.Time
}

func (removeOrderItemActivity) Name() string { return "removeOrderItem" }

func (a removeOrderItemActivity) Execute(_ context.Context, op *CartOperation) error {
	itemID := op.Request.ItemID
	if children := op.Order.ChildrenOf(itemID); len(children) > 0 {
		return fmt.Errorf("%w: item %s still has %d child items", ErrInternal, itemID, len(children))
	}
	if !op.Order.RemoveItemByID(itemID) {
		return fmt.Errorf("%w: %s", ErrItemNotFound, itemID)
	}
	op.Order.UpdatedAt = a.now()
	return nil
}

// persistOrderActivity saves the mutated order, triggering repricing when the
// run carries the pricing flag. The final state replaces the context's order
// snapshot.
type persistOrderActivity struct {
	save orderSaver
}

func (persistOrderActivity) Name() string { return "persistOrder" }

func (a persistOrderActivity) Execute(ctx context.Context, op *CartOperation) error {
	saved, err := a.save(ctx, *op.Order, op.PriceOrder)
	if err != nil {
		return err
	}
	affectedID := ""
	if op.Item != nil {
		affectedID = op.Item.ID
	}
	*op.Order = saved
	if affectedID != "" {
		op.Item = op.Order.Item(affectedID)
	}
	return nil
}

func cloneAttributes(values map[string]string) map[string]string {
	if len(values) == 0 {
		return nil
	}
	out := make(map[string]string, len(values))
	for k, v := range values {
		out[k] = v
	}
	return out
}
