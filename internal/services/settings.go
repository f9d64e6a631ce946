package services

import "sync/atomic"

// Settings holds the runtime-mutable behaviour toggles. Static defaults come
// from configuration; operators may flip them on a live process. Operations
// read the current value at their start and never cache it across calls.
type Settings struct {
	mergeLikeItems         atomic.Bool
	moveNamedOrderItems    atomic.Bool
	deleteEmptyNamedOrders atomic.Bool
}

// NewSettings seeds the toggles with their configured defaults.
func NewSettings(mergeLikeItems, moveNamedOrderItems, deleteEmptyNamedOrders bool) *Settings {
	s := &Settings{}
	s.mergeLikeItems.Store(mergeLikeItems)
	s.moveNamedOrderItems.Store(moveNamedOrderItems)
	s.deleteEmptyNamedOrders.Store(deleteEmptyNamedOrders)
	return s
}

// AutomaticallyMergeLikeItems reports whether add requests merge into
// matching existing line items instead of creating new lines.
func (s *Settings) AutomaticallyMergeLikeItems() bool {
	return s.mergeLikeItems.Load()
}

// SetAutomaticallyMergeLikeItems flips the merge toggle at runtime.
func (s *Settings) SetAutomaticallyMergeLikeItems(v bool) {
	s.mergeLikeItems.Store(v)
}

// MoveNamedOrderItems reports whether items are removed from a named order
// as they are added to the cart.
func (s *Settings) MoveNamedOrderItems() bool {
	return s.moveNamedOrderItems.Load()
}

// SetMoveNamedOrderItems flips the move-items toggle at runtime.
func (s *Settings) SetMoveNamedOrderItems(v bool) {
	s.moveNamedOrderItems.Store(v)
}

// DeleteEmptyNamedOrders reports whether a named order is cancelled once all
// of its items have been moved to a cart.
func (s *Settings) DeleteEmptyNamedOrders() bool {
	return s.deleteEmptyNamedOrders.Load()
}

// SetDeleteEmptyNamedOrders flips the cleanup toggle at runtime.
func (s *Settings) SetDeleteEmptyNamedOrders(v bool) {
	s.deleteEmptyNamedOrders.Store(v)
}
