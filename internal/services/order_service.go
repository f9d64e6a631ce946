package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/fieldstone/cartops/internal/domain"
	"github.com/fieldstone/cartops/internal/repositories"
	"github.com/fieldstone/cartops/internal/workflow"
)

const (
	defaultPricingRetryMax     = 3
	defaultPricingRetryBackoff = 500 * time.Millisecond
)

var errOrderRepositoryRequired = errors.New("order service: order repository is required")

// OrderServiceDeps wires the collaborators for the cart mutation orchestrator.
// Pricing and Extension are optional capabilities: a nil Pricing means
// repricing is disabled and price flags are ignored; a nil Extension approves
// every operation.
type OrderServiceDeps struct {
	Orders              repositories.OrderRepository
	Pricing             PricingEngine
	Extension           CartExtension
	Settings            *Settings
	Clock               func() time.Time
	IDGenerator         func() string
	Logger              func(ctx context.Context, event string, fields map[string]any)
	PricingRetryMax     int
	PricingRetryBackoff time.Duration
}

type orderService struct {
	orders   repositories.OrderRepository
	pricing  PricingEngine
	hooks    extensionDispatcher
	settings *Settings
	now      func() time.Time
	newID    func() string
	logger   func(context.Context, string, map[string]any)

	retryMax     int
	retryBackoff time.Duration
	sleep        func(time.Duration)

	addItemWorkflow    *workflow.Processor[*CartOperation]
	updateItemWorkflow *workflow.Processor[*CartOperation]
	removeItemWorkflow *workflow.Processor[*CartOperation]
}

// NewOrderService wires dependencies into a concrete OrderService implementation.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	if deps.Orders == nil {
		return nil, errOrderRepositoryRequired
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return ulid.Make().String() }
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	settings := deps.Settings
	if settings == nil {
		settings = NewSettings(true, true, true)
	}

	retryMax := deps.PricingRetryMax
	if retryMax <= 0 {
		retryMax = defaultPricingRetryMax
	}
	retryBackoff := deps.PricingRetryBackoff
	if retryBackoff <= 0 {
		retryBackoff = defaultPricingRetryBackoff
	}

	s := &orderService{
		orders:       deps.Orders,
		pricing:      deps.Pricing,
		hooks:        extensionDispatcher{extension: deps.Extension},
		settings:     settings,
		now:          func() time.Time { return clock().UTC() },
		newID:        idGen,
		logger:       logger,
		retryMax:     retryMax,
		retryBackoff: retryBackoff,
		sleep:        time.Sleep,
	}

	var err error
	if s.addItemWorkflow, err = newAddItemWorkflow(s.newID, s.now, s.Save); err != nil {
		return nil, err
	}
	if s.updateItemWorkflow, err = newUpdateItemWorkflow(s.now, s.Save); err != nil {
		return nil, err
	}
	if s.removeItemWorkflow, err = newRemoveItemWorkflow(s.now, s.Save); err != nil {
		return nil, err
	}
	return s, nil
}

// CreateCartForCustomer creates a fresh in-process cart for the customer.
func (s *orderService) CreateCartForCustomer(ctx context.Context, customerID string) (Order, error) {
	cid := strings.TrimSpace(customerID)
	if cid == "" {
		return Order{}, fmt.Errorf("%w: customer id is required", ErrInvalidInput)
	}
	now := s.now()
	cart := Order{
		ID:         s.newID(),
		CustomerID: cid,
		Status:     domain.OrderStatusInProcess,
		Items:      []OrderItem{},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	created, err := s.orders.Create(ctx, cart)
	if err != nil {
		return Order{}, s.translateRepoError(err)
	}
	return created, nil
}

// CreateNamedOrderForCustomer creates a saved-for-later order under the given
// name. Named orders are never priced on creation.
func (s *orderService) CreateNamedOrderForCustomer(ctx context.Context, name string, customerID string) (Order, error) {
	cid := strings.TrimSpace(customerID)
	trimmedName := strings.TrimSpace(name)
	if cid == "" || trimmedName == "" {
		return Order{}, fmt.Errorf("%w: customer id and name are required", ErrInvalidInput)
	}
	now := s.now()
	named := Order{
		ID:         s.newID(),
		CustomerID: cid,
		Name:       trimmedName,
		Status:     domain.OrderStatusNamed,
		Items:      []OrderItem{},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.hooks.attachToNamedOrder(ctx, &named); err != nil {
		return Order{}, err
	}
	created, err := s.orders.Create(ctx, named)
	if err != nil {
		return Order{}, s.translateRepoError(err)
	}
	return created, nil
}

func (s *orderService) FindOrderByID(ctx context.Context, orderID string) (Order, error) {
	return s.findRequired(ctx, orderID)
}

func (s *orderService) FindOrdersByIDs(ctx context.Context, orderIDs []string) ([]Order, error) {
	orders, err := s.orders.FindByIDs(ctx, orderIDs)
	if err != nil {
		return nil, s.translateRepoError(err)
	}
	return orders, nil
}

func (s *orderService) FindCartForCustomer(ctx context.Context, customerID string) (Order, error) {
	order, err := s.orders.FindCartForCustomer(ctx, customerID)
	if err != nil {
		return Order{}, s.translateRepoError(err)
	}
	return order, nil
}

// FindCartForCustomerWithEnhancements gives the extension a chance to
// substitute the returned cart (e.g. merge-on-login) before falling back to
// the default lookup.
func (s *orderService) FindCartForCustomerWithEnhancements(ctx context.Context, customerID string) (Order, error) {
	order, handled, err := s.hooks.findCartWithEnhancements(ctx, customerID, nil)
	if err != nil {
		return Order{}, err
	}
	if handled {
		return order, nil
	}
	return s.FindCartForCustomer(ctx, customerID)
}

func (s *orderService) FindNamedOrderForCustomer(ctx context.Context, name string, customerID string) (Order, error) {
	order, err := s.orders.FindNamedOrder(ctx, customerID, name)
	if err != nil {
		return Order{}, s.translateRepoError(err)
	}
	return order, nil
}

func (s *orderService) FindOrderByOrderNumber(ctx context.Context, orderNumber string) (Order, error) {
	order, err := s.orders.FindByOrderNumber(ctx, orderNumber)
	if err != nil {
		return Order{}, s.translateRepoError(err)
	}
	return order, nil
}

func (s *orderService) FindOrdersByDateRange(ctx context.Context, start, end time.Time) ([]Order, error) {
	orders, err := s.orders.FindByDateRange(ctx, start, end)
	if err != nil {
		return nil, s.translateRepoError(err)
	}
	return orders, nil
}

func (s *orderService) FindOrdersForCustomer(ctx context.Context, customerID string, status *OrderStatus) ([]Order, error) {
	orders, err := s.orders.FindForCustomer(ctx, customerID, status)
	if err != nil {
		return nil, s.translateRepoError(err)
	}
	return orders, nil
}

// AddItem applies one logical add, including merge redirection and recursive
// child-item creation, pricing the order at most once on the run completing
// the final physical write.
func (s *orderService) AddItem(ctx context.Context, orderID string, req *ItemRequest, priceOrder bool) (Order, error) {
	order, err := s.findRequired(ctx, orderID)
	if err != nil {
		return Order{}, err
	}
	if err := s.hooks.preValidateCartOperation(ctx, order); err != nil {
		return Order{}, err
	}
	if req == nil {
		return Order{}, fmt.Errorf("%w: item request is required", ErrInvalidInput)
	}

	if s.settings.AutomaticallyMergeLikeItems() {
		if match := findMatchingItem(&order, req); match != nil {
			merged := *req
			merged.ItemID = match.ID
			merged.Quantity = match.Quantity + req.Quantity
			updated, err := s.UpdateItemQuantity(ctx, orderID, &merged, priceOrder)
			if err != nil {
				return Order{}, rewrapAsAddFailure(err)
			}
			return updated, nil
		}
	}

	// Price only on the last physical write and only when asked. The count
	// covers the root plus every quantity-positive descendant; a counter of
	// -1 can never match, so unpriced adds skip the arithmetic entirely.
	total := -1
	if priceOrder {
		total = countAdditionRequests(req)
	}
	current := 1

	op := &CartOperation{Order: &order, Request: req, PriceOrder: current == total}
	if err := s.addItemWorkflow.DoActivities(ctx, op); err != nil {
		return Order{}, &AddToCartError{Message: "could not add to cart", Cause: workflow.RootCause(err)}
	}
	messages := append([]ActivityMessage{}, op.Messages...)

	if op.Item != nil {
		if err := s.addChildItems(ctx, req, op.Item.ID, &order, total, &current, &messages); err != nil {
			return Order{}, &AddToCartError{Message: "could not add child items to cart", Cause: workflow.RootCause(err)}
		}
	}

	order.Messages = messages
	return order, nil
}

// addChildItems drives the add pipeline depth-first over the child requests,
// stamping each child with its freshly created parent's id before recursing.
// Children with non-positive quantity are deselected bundle units: they are
// neither materialised nor recursed into.
func (s *orderService) addChildItems(ctx context.Context, req *ItemRequest, parentItemID string, order *Order, total int, current *int, messages *[]ActivityMessage) error {
	for _, child := range req.Children {
		if child == nil || child.Quantity <= 0 {
			continue
		}
		child.ParentItemID = parentItemID
		*current++

		op := &CartOperation{Order: order, Request: child, PriceOrder: *current == total}
		if err := s.addItemWorkflow.DoActivities(ctx, op); err != nil {
			return err
		}
		*messages = append(*messages, op.Messages...)

		if op.Item != nil {
			if err := s.addChildItems(ctx, child, op.Item.ID, order, total, current, messages); err != nil {
				return err
			}
		}
	}
	return nil
}

// countAdditionRequests counts the pipeline runs a request tree will produce:
// the root plus every descendant with positive quantity. Skipped children do
// not count and are not visited.
func countAdditionRequests(req *ItemRequest) int {
	count := 1
	for _, child := range req.Children {
		if child == nil || child.Quantity <= 0 {
			continue
		}
		count += countAdditionRequests(child)
	}
	return count
}

// UpdateItemQuantity changes a line item's quantity, delegating to RemoveItem
// when the requested quantity is exactly zero.
func (s *orderService) UpdateItemQuantity(ctx context.Context, orderID string, req *ItemRequest, priceOrder bool) (Order, error) {
	order, err := s.findRequired(ctx, orderID)
	if err != nil {
		return Order{}, err
	}
	if err := s.hooks.preValidateCartOperation(ctx, order); err != nil {
		return Order{}, err
	}
	if req == nil {
		return Order{}, fmt.Errorf("%w: item request is required", ErrInvalidInput)
	}
	if strings.TrimSpace(req.ItemID) == "" {
		// Requests referencing a product instead of a line id resolve against
		// the newest matching line.
		match := findLastMatchingItem(&order, req)
		if match == nil {
			return Order{}, fmt.Errorf("%w: no line matches the requested product", ErrItemNotFound)
		}
		resolved := *req
		resolved.ItemID = match.ID
		req = &resolved
	}
	if err := s.hooks.preValidateQuantityChange(ctx, order, req); err != nil {
		return Order{}, err
	}

	if req.Quantity == 0 {
		return s.RemoveItem(ctx, orderID, req.ItemID, priceOrder)
	}

	op := &CartOperation{Order: &order, Request: req, PriceOrder: priceOrder}
	if err := s.updateItemWorkflow.DoActivities(ctx, op); err != nil {
		cause := workflow.RootCause(err)
		if errors.Is(cause, ErrItemNotFound) {
			return Order{}, cause
		}
		return Order{}, &UpdateCartError{Message: "could not update cart quantity", Cause: cause}
	}

	order.Messages = append(order.Messages, op.Messages...)
	return order, nil
}

// RemoveItem deletes the item and its entire descendant tree. Descendants are
// removed first, each in its own unpriced pipeline run; the target's final run
// carries the caller's pricing flag so repricing happens exactly once, after
// the subtree is fully gone.
func (s *orderService) RemoveItem(ctx context.Context, orderID string, itemID string, priceOrder bool) (Order, error) {
	order, err := s.findRequired(ctx, orderID)
	if err != nil {
		return Order{}, err
	}
	if err := s.hooks.preValidateCartOperation(ctx, order); err != nil {
		return Order{}, err
	}

	target := order.Item(itemID)
	if target == nil {
		return Order{}, fmt.Errorf("%w: %s", ErrItemNotFound, itemID)
	}

	var descendants []string
	findAllChildrenToRemove(&order, target.ID, &descendants)

	var messages []ActivityMessage
	for _, childID := range descendants {
		op := &CartOperation{Order: &order, Request: &ItemRequest{ItemID: childID}, PriceOrder: false}
		if err := s.removeItemWorkflow.DoActivities(ctx, op); err != nil {
			return Order{}, &RemoveFromCartError{Message: "could not remove from cart", Cause: workflow.RootCause(err)}
		}
		messages = append(messages, op.Messages...)
	}

	op := &CartOperation{Order: &order, Request: &ItemRequest{ItemID: itemID}, PriceOrder: priceOrder}
	if err := s.removeItemWorkflow.DoActivities(ctx, op); err != nil {
		return Order{}, &RemoveFromCartError{Message: "could not remove from cart", Cause: workflow.RootCause(err)}
	}
	messages = append(messages, op.Messages...)

	order.Messages = append(order.Messages, messages...)
	return order, nil
}

// findAllChildrenToRemove collects descendant item ids deepest-first, so each
// removal run only ever deletes a leaf of the remaining tree.
func findAllChildrenToRemove(order *Order, itemID string, acc *[]string) {
	for _, child := range order.ChildrenOf(itemID) {
		findAllChildrenToRemove(order, child.ID, acc)
		*acc = append(*acc, child.ID)
	}
}

// AddAllItemsFromNamedOrder moves (or copies, per settings) every item of the
// named order into the customer's cart, creating the cart when absent.
func (s *orderService) AddAllItemsFromNamedOrder(ctx context.Context, namedOrder Order, priceOrder bool) (Order, error) {
	cart, err := s.cartForNamedOrder(ctx, namedOrder)
	if err != nil {
		return Order{}, err
	}

	items := namedOrder.TopLevelItems()
	for _, item := range items {
		if s.settings.MoveNamedOrderItems() {
			if _, err := s.RemoveItem(ctx, namedOrder.ID, item.ID, false); err != nil {
				return Order{}, err
			}
		}
		req := buildItemRequest(&namedOrder, &item)
		cart, err = s.AddItem(ctx, cart.ID, req, priceOrder)
		if err != nil {
			return Order{}, err
		}
	}

	if s.settings.DeleteEmptyNamedOrders() {
		if err := s.CancelOrder(ctx, namedOrder); err != nil {
			return Order{}, err
		}
	}
	return cart, nil
}

// AddItemFromNamedOrder moves quantity units of one named-order item into the
// customer's cart. Moving the full quantity removes the named item entirely;
// a partial move decrements it.
func (s *orderService) AddItemFromNamedOrder(ctx context.Context, namedOrder Order, itemID string, quantity int, priceOrder bool) (Order, error) {
	item := namedOrder.Item(itemID)
	if item == nil {
		return Order{}, fmt.Errorf("%w: %s", ErrItemNotFound, itemID)
	}
	if quantity < 1 || quantity > item.Quantity {
		return Order{}, fmt.Errorf("%w: cannot move %d of %d units", ErrInvalidInput, quantity, item.Quantity)
	}

	cart, err := s.cartForNamedOrder(ctx, namedOrder)
	if err != nil {
		return Order{}, err
	}

	if s.settings.MoveNamedOrderItems() {
		if quantity == item.Quantity {
			if _, err := s.RemoveItem(ctx, namedOrder.ID, item.ID, false); err != nil {
				return Order{}, err
			}
		} else {
			remainder := &ItemRequest{ItemID: item.ID, Quantity: item.Quantity - quantity}
			if _, err := s.UpdateItemQuantity(ctx, namedOrder.ID, remainder, false); err != nil {
				return Order{}, err
			}
		}
	}

	req := buildItemRequest(&namedOrder, item)
	req.Quantity = quantity
	cart, err = s.AddItem(ctx, cart.ID, req, priceOrder)
	if err != nil {
		return Order{}, err
	}

	if quantity == item.Quantity && s.settings.DeleteEmptyNamedOrders() {
		// The snapshot predates the move and counts child lines, so emptiness
		// is decided on the freshly persisted state.
		refreshed, err := s.orders.FindByID(ctx, namedOrder.ID)
		if err != nil {
			return Order{}, s.translateRepoError(err)
		}
		if len(refreshed.Items) == 0 {
			if err := s.CancelOrder(ctx, refreshed); err != nil {
				return Order{}, err
			}
		}
	}
	return cart, nil
}

func (s *orderService) cartForNamedOrder(ctx context.Context, namedOrder Order) (Order, error) {
	cart, err := s.orders.FindCartForCustomer(ctx, namedOrder.CustomerID)
	if err != nil {
		if isRepoNotFound(err) {
			return s.CreateCartForCustomer(ctx, namedOrder.CustomerID)
		}
		return Order{}, s.translateRepoError(err)
	}
	return cart, nil
}

// buildItemRequest reconstructs an add request from a persisted item,
// including its descendant tree.
func buildItemRequest(order *Order, item *OrderItem) *ItemRequest {
	req := &ItemRequest{
		ProductID:  item.ProductID,
		SKU:        item.SKU,
		Kind:       item.Kind,
		Quantity:   item.Quantity,
		UnitPrice:  item.UnitPrice,
		Attributes: cloneAttributes(item.Attributes),
	}
	for _, child := range order.ChildrenOf(item.ID) {
		req.Children = append(req.Children, buildItemRequest(order, &child))
	}
	return req
}

// Save persists the order in its own transaction, then runs the
// reprice-and-resave unit when pricing is requested. Lock conflicts during
// that unit are retried with a bounded budget, reloading the order fresh from
// storage between attempts; any other cause surfaces immediately.
func (s *orderService) Save(ctx context.Context, order Order, priceOrder bool) (Order, error) {
	persisted, err := s.orders.Save(ctx, order)
	if err != nil {
		return Order{}, s.translateRepoError(err)
	}

	if !priceOrder || s.pricing == nil {
		return persisted, nil
	}

	current := persisted
	retryCount := 0
	for {
		saved, err := s.repriceAndResave(ctx, current)
		if err == nil {
			return saved, nil
		}
		if !isPricingLockConflict(err) {
			return Order{}, &PricingError{Message: "repricing failed", Cause: workflow.RootCause(err)}
		}
		if retryCount >= s.retryMax {
			s.logger(ctx, "pricing.lock_retry_exhausted", map[string]any{
				"orderID": current.ID,
				"retries": retryCount,
			})
			return Order{}, &PricingError{
				Message: fmt.Sprintf("lock retry limit exceeded at %d", retryCount),
				Cause:   err,
			}
		}
		s.logger(ctx, "pricing.lock_retry", map[string]any{
			"orderID": current.ID,
			"attempt": retryCount + 1,
		})
		fresh, ferr := s.orders.FindByID(ctx, current.ID)
		if ferr != nil {
			return Order{}, s.translateRepoError(ferr)
		}
		current = fresh
		retryCount++
		s.sleep(s.retryBackoff)
	}
}

func (s *orderService) repriceAndResave(ctx context.Context, order Order) (Order, error) {
	priced, err := s.pricing.Reprice(ctx, order)
	if err != nil {
		return Order{}, err
	}
	return s.orders.Save(ctx, priced)
}

// CancelOrder deletes the order outright. No pipeline is involved.
func (s *orderService) CancelOrder(ctx context.Context, order Order) error {
	if err := s.orders.Delete(ctx, order.ID); err != nil {
		return s.translateRepoError(err)
	}
	return nil
}

// ConfirmOrder submits the order, assigning its order number.
func (s *orderService) ConfirmOrder(ctx context.Context, order Order) (Order, error) {
	submitted, err := s.orders.Submit(ctx, order)
	if err != nil {
		return Order{}, s.translateRepoError(err)
	}
	return submitted, nil
}

// Refresh reloads the order's persistent state, discarding local mutation.
func (s *orderService) Refresh(ctx context.Context, order Order) (Order, error) {
	fresh, err := s.orders.Refresh(ctx, order)
	if err != nil {
		return Order{}, s.translateRepoError(err)
	}
	return fresh, nil
}

func (s *orderService) findRequired(ctx context.Context, orderID string) (Order, error) {
	id := strings.TrimSpace(orderID)
	if id == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrInvalidInput)
	}
	order, err := s.orders.FindByID(ctx, id)
	if err != nil {
		return Order{}, s.translateRepoError(err)
	}
	return order, nil
}

func (s *orderService) translateRepoError(err error) error {
	if err == nil {
		return nil
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		if repoErr.IsNotFound() {
			return fmt.Errorf("%w: %v", ErrOrderNotFound, err)
		}
		// Conflicts and outages keep their categorisation for callers that
		// inspect the chain.
		return err
	}
	return fmt.Errorf("%w: %v", ErrInternal, err)
}

func isRepoNotFound(err error) bool {
	var repoErr repositories.RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsNotFound()
}

// rewrapAsAddFailure converts update/remove failures raised on the merge path
// back into add failures, since the caller asked to add. Vetoes and invalid
// input pass through typed.
func rewrapAsAddFailure(err error) error {
	var remErr *RemoveFromCartError
	if errors.As(err, &remErr) {
		return &AddToCartError{Message: "unexpected removal while adding to cart", Cause: remErr.Cause}
	}
	var updErr *UpdateCartError
	if errors.As(err, &updErr) {
		return &AddToCartError{Message: "could not update quantity for matched item", Cause: updErr.Cause}
	}
	return err
}
