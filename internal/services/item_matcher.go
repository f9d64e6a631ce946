package services

import domain "github.com/fieldstone/cartops/internal/domain"

// findMatchingItem returns the existing line item an incoming add request
// should merge into, or nil. Only discrete top-level items are candidates:
// composite sub-items are managed by their parent's lifecycle and never merge
// targets, and bundles or gift wraps never match an incoming request.
func findMatchingItem(order *Order, req *ItemRequest) *OrderItem {
	if order == nil || req == nil {
		return nil
	}
	for i := range order.Items {
		candidate := &order.Items[i]
		if candidate.ParentItemID != "" {
			continue
		}
		if candidate.Kind != domain.ItemKindDiscrete {
			continue
		}
		if itemMatches(candidate, req) {
			return candidate
		}
	}
	return nil
}

// findLastMatchingItem is the reverse-order variant: it returns the most
// recently added matching line. Update requests that reference a product
// instead of a line id resolve against the newest line.
func findLastMatchingItem(order *Order, req *ItemRequest) *OrderItem {
	if order == nil || req == nil {
		return nil
	}
	for i := len(order.Items) - 1; i >= 0; i-- {
		candidate := &order.Items[i]
		if candidate.ParentItemID != "" {
			continue
		}
		if candidate.Kind != domain.ItemKindDiscrete {
			continue
		}
		if itemMatches(candidate, req) {
			return candidate
		}
	}
	return nil
}

// itemMatches matches on SKU first, falling back to product identity plus an
// exact attribute comparison.
func itemMatches(item *OrderItem, req *ItemRequest) bool {
	if item.SKU != "" && req.SKU != "" {
		return item.SKU == req.SKU
	}
	if item.ProductID != "" && req.ProductID != "" && item.ProductID == req.ProductID {
		return compareAttributes(item.Attributes, req.Attributes)
	}
	return false
}

// compareAttributes reports whether the two attribute mappings match exactly:
// same key set, same value per key. A missing value is unequal to any present
// value.
func compareAttributes(itemAttrs, reqAttrs map[string]string) bool {
	if len(itemAttrs) != len(reqAttrs) {
		return false
	}
	for key, reqValue := range reqAttrs {
		itemValue, ok := itemAttrs[key]
		if !ok || itemValue != reqValue {
			return false
		}
	}
	return true
}
