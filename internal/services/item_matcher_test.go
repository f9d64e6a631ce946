package services

import (
	"testing"

	domain "github.com/fieldstone/cartops/internal/domain"
)

func matcherOrder(items ...OrderItem) *Order {
	return &Order{ID: "order-1", Items: items}
}

func TestFindMatchingItemFirstMatchWins(t *testing.T) {
	order := matcherOrder(
		OrderItem{ID: "item-1", SKU: "SKU-1", Kind: domain.ItemKindDiscrete},
		OrderItem{ID: "item-2", SKU: "SKU-1", Kind: domain.ItemKindDiscrete},
	)

	match := findMatchingItem(order, &ItemRequest{SKU: "SKU-1"})
	if match == nil || match.ID != "item-1" {
		t.Fatalf("expected first matching line, got %+v", match)
	}
}

func TestFindMatchingItemSKUTakesPriorityOverAttributes(t *testing.T) {
	order := matcherOrder(OrderItem{
		ID:         "item-1",
		SKU:        "SKU-1",
		ProductID:  "prod-1",
		Kind:       domain.ItemKindDiscrete,
		Attributes: map[string]string{"color": "red"},
	})

	// When both sides carry a SKU, attributes are not consulted at all.
	match := findMatchingItem(order, &ItemRequest{
		SKU:        "SKU-1",
		ProductID:  "prod-1",
		Attributes: map[string]string{"color": "blue"},
	})
	if match == nil {
		t.Fatalf("expected SKU identity to match despite differing attributes")
	}
}

func TestFindMatchingItemProductRequiresExactAttributes(t *testing.T) {
	order := matcherOrder(OrderItem{
		ID:         "item-1",
		ProductID:  "prod-1",
		Kind:       domain.ItemKindDiscrete,
		Attributes: map[string]string{"color": "red", "size": "M"},
	})

	cases := []struct {
		name  string
		attrs map[string]string
		want  bool
	}{
		{"exact", map[string]string{"color": "red", "size": "M"}, true},
		{"differentValue", map[string]string{"color": "blue", "size": "M"}, false},
		{"missingKey", map[string]string{"color": "red"}, false},
		{"extraKey", map[string]string{"color": "red", "size": "M", "gift": "yes"}, false},
	}
	for _, tc := range cases {
		match := findMatchingItem(order, &ItemRequest{ProductID: "prod-1", Attributes: tc.attrs})
		if got := match != nil; got != tc.want {
			t.Fatalf("%s: expected match=%v, got %v", tc.name, tc.want, got)
		}
	}
}

func TestFindMatchingItemSkipsNonCandidates(t *testing.T) {
	order := matcherOrder(
		OrderItem{ID: "item-child", SKU: "SKU-1", Kind: domain.ItemKindDiscrete, ParentItemID: "item-parent"},
		OrderItem{ID: "item-bundle", SKU: "SKU-1", Kind: domain.ItemKindBundle},
		OrderItem{ID: "item-wrap", SKU: "SKU-1", Kind: domain.ItemKindGiftWrap},
	)

	if match := findMatchingItem(order, &ItemRequest{SKU: "SKU-1"}); match != nil {
		t.Fatalf("children, bundles, and gift wraps must never merge, got %+v", match)
	}
}

func TestFindMatchingItemNoSharedIdentity(t *testing.T) {
	order := matcherOrder(OrderItem{ID: "item-1", SKU: "SKU-1", Kind: domain.ItemKindDiscrete})

	// A SKU-less request cannot match a product-less comparison either.
	if match := findMatchingItem(order, &ItemRequest{ProductID: "prod-1"}); match != nil {
		t.Fatalf("expected no match without shared identity, got %+v", match)
	}
}

func TestFindLastMatchingItemReturnsNewestLine(t *testing.T) {
	order := matcherOrder(
		OrderItem{ID: "item-old", SKU: "SKU-1", Kind: domain.ItemKindDiscrete},
		OrderItem{ID: "item-mid", SKU: "SKU-2", Kind: domain.ItemKindDiscrete},
		OrderItem{ID: "item-new", SKU: "SKU-1", Kind: domain.ItemKindDiscrete},
	)

	match := findLastMatchingItem(order, &ItemRequest{SKU: "SKU-1"})
	if match == nil || match.ID != "item-new" {
		t.Fatalf("expected newest matching line, got %+v", match)
	}
}

func TestFindMatchingItemNilInputs(t *testing.T) {
	if findMatchingItem(nil, &ItemRequest{SKU: "SKU-1"}) != nil {
		t.Fatalf("nil order must not match")
	}
	if findMatchingItem(matcherOrder(), nil) != nil {
		t.Fatalf("nil request must not match")
	}
}
