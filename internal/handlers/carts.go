package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/fieldstone/cartops/internal/platform/httpx"
	"github.com/fieldstone/cartops/internal/services"
)

// CartHandlers exposes the customer-scoped cart and named-order endpoints.
type CartHandlers struct {
	orders services.OrderService
}

// NewCartHandlers constructs handlers over the order service.
func NewCartHandlers(orders services.OrderService) *CartHandlers {
	return &CartHandlers{orders: orders}
}

// Routes wires the /customers endpoints onto the provided router.
func (h *CartHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/{customerID}/cart", h.createCart)
	r.Get("/{customerID}/cart", h.getCart)
	r.Post("/{customerID}/named-orders", h.createNamedOrder)
	r.Get("/{customerID}/named-orders/{name}", h.getNamedOrder)
	r.Post("/{customerID}/named-orders/{name}/move-all", h.moveAllNamedItems)
	r.Post("/{customerID}/named-orders/{name}/items/{itemID}/move", h.moveNamedItem)
}

func (h *CartHandlers) createCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	cart, err := h.orders.CreateCartForCustomer(ctx, chi.URLParam(r, "customerID"))
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, orderResponse{Order: buildOrderPayload(cart)})
}

func (h *CartHandlers) getCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	cart, err := h.orders.FindCartForCustomerWithEnhancements(ctx, chi.URLParam(r, "customerID"))
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(cart)})
}

func (h *CartHandlers) createNamedOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	body, err := readLimitedBody(r, maxMutationBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	var payload struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON payload", http.StatusBadRequest))
		return
	}

	named, err := h.orders.CreateNamedOrderForCustomer(ctx, payload.Name, chi.URLParam(r, "customerID"))
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, orderResponse{Order: buildOrderPayload(named)})
}

func (h *CartHandlers) getNamedOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	named, err := h.orders.FindNamedOrderForCustomer(ctx, chi.URLParam(r, "name"), chi.URLParam(r, "customerID"))
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(named)})
}

func (h *CartHandlers) moveAllNamedItems(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	named, err := h.orders.FindNamedOrderForCustomer(ctx, chi.URLParam(r, "name"), chi.URLParam(r, "customerID"))
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	cart, err := h.orders.AddAllItemsFromNamedOrder(ctx, named, priceOrderParam(r))
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(cart)})
}

func (h *CartHandlers) moveNamedItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	named, err := h.orders.FindNamedOrderForCustomer(ctx, chi.URLParam(r, "name"), chi.URLParam(r, "customerID"))
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	quantity := 0
	if body, err := readLimitedBody(r, maxMutationBodySize); err == nil {
		var payload struct {
			Quantity int `json:"quantity"`
		}
		if err := json.Unmarshal(body, &payload); err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON payload", http.StatusBadRequest))
			return
		}
		quantity = payload.Quantity
	}
	itemID := strings.TrimSpace(chi.URLParam(r, "itemID"))
	if quantity == 0 {
		// An omitted quantity moves the whole line.
		if item := named.Item(itemID); item != nil {
			quantity = item.Quantity
		}
	}

	cart, err := h.orders.AddItemFromNamedOrder(ctx, named, itemID, quantity, priceOrderParam(r))
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(cart)})
}
