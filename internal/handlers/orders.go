package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/fieldstone/cartops/internal/platform/httpx"
	"github.com/fieldstone/cartops/internal/repositories"
	"github.com/fieldstone/cartops/internal/services"
)

// OrderHandlers exposes the order lookup and mutation endpoints.
type OrderHandlers struct {
	orders services.OrderService
}

// NewOrderHandlers constructs handlers over the order service.
func NewOrderHandlers(orders services.OrderService) *OrderHandlers {
	return &OrderHandlers{orders: orders}
}

// Routes wires the /orders endpoints onto the provided router.
func (h *OrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/", h.listOrders)
	r.Get("/{orderID}", h.getOrder)
	r.Delete("/{orderID}", h.cancelOrder)
	r.Post("/{orderID}/confirm", h.confirmOrder)
	r.Post("/{orderID}/items", h.addItem)
	r.Patch("/{orderID}/items/{itemID}", h.updateItem)
	r.Delete("/{orderID}/items/{itemID}", h.removeItem)
}

func (h *OrderHandlers) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	query := r.URL.Query()

	if number := strings.TrimSpace(query.Get("number")); number != "" {
		order, err := h.orders.FindOrderByOrderNumber(ctx, number)
		if err != nil {
			writeOrderError(ctx, w, err)
			return
		}
		writeJSONResponse(w, http.StatusOK, ordersResponse{Orders: []orderPayload{buildOrderPayload(order)}})
		return
	}

	if customerID := strings.TrimSpace(query.Get("customer_id")); customerID != "" {
		var status *services.OrderStatus
		if raw := strings.TrimSpace(query.Get("status")); raw != "" {
			parsed := services.OrderStatus(strings.ToUpper(raw))
			status = &parsed
		}
		orders, err := h.orders.FindOrdersForCustomer(ctx, customerID, status)
		if err != nil {
			writeOrderError(ctx, w, err)
			return
		}
		writeJSONResponse(w, http.StatusOK, buildOrdersResponse(orders))
		return
	}

	start := strings.TrimSpace(query.Get("submitted_after"))
	end := strings.TrimSpace(query.Get("submitted_before"))
	if start != "" && end != "" {
		startTime, err := time.Parse(time.RFC3339, start)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "submitted_after must be an RFC3339 timestamp", http.StatusBadRequest))
			return
		}
		endTime, err := time.Parse(time.RFC3339, end)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "submitted_before must be an RFC3339 timestamp", http.StatusBadRequest))
			return
		}
		orders, err := h.orders.FindOrdersByDateRange(ctx, startTime, endTime)
		if err != nil {
			writeOrderError(ctx, w, err)
			return
		}
		writeJSONResponse(w, http.StatusOK, buildOrdersResponse(orders))
		return
	}

	httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "provide number, customer_id, or a submitted_after/submitted_before range", http.StatusBadRequest))
}

func (h *OrderHandlers) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	order, err := h.orders.FindOrderByID(ctx, chi.URLParam(r, "orderID"))
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

func (h *OrderHandlers) cancelOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	order, err := h.orders.FindOrderByID(ctx, chi.URLParam(r, "orderID"))
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	if err := h.orders.CancelOrder(ctx, order); err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *OrderHandlers) confirmOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	order, err := h.orders.FindOrderByID(ctx, chi.URLParam(r, "orderID"))
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	confirmed, err := h.orders.ConfirmOrder(ctx, order)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(confirmed)})
}

func (h *OrderHandlers) addItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	body, err := readLimitedBody(r, maxMutationBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	var payload itemRequestPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON payload", http.StatusBadRequest))
		return
	}

	order, err := h.orders.AddItem(ctx, chi.URLParam(r, "orderID"), payload.toItemRequest(), priceOrderParam(r))
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, orderResponse{Order: buildOrderPayload(order)})
}

func (h *OrderHandlers) updateItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	body, err := readLimitedBody(r, maxMutationBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	var payload updateItemPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON payload", http.StatusBadRequest))
		return
	}
	if payload.Quantity == nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "quantity is required", http.StatusBadRequest))
		return
	}

	req := &services.ItemRequest{
		ItemID:   chi.URLParam(r, "itemID"),
		Quantity: *payload.Quantity,
	}
	order, err := h.orders.UpdateItemQuantity(ctx, chi.URLParam(r, "orderID"), req, priceOrderParam(r))
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

func (h *OrderHandlers) removeItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	order, err := h.orders.RemoveItem(ctx, chi.URLParam(r, "orderID"), chi.URLParam(r, "itemID"), priceOrderParam(r))
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

func writeBodyError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errBodyTooLarge):
		httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "request body exceeds allowed size", http.StatusRequestEntityTooLarge))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	}
}

// writeOrderError maps service failures onto the JSON error envelope. Hook
// vetoes and exhausted pricing retries are conflicts; lookups that missed are
// not found; bad requests are invalid input.
func writeOrderError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}

	var pricingErr *services.PricingError
	var repoErr repositories.RepositoryError

	switch {
	case errors.Is(err, services.ErrIllegalCartOperation):
		httpx.WriteError(ctx, w, httpx.NewError("operation_vetoed", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrItemNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("item_not_found", err.Error(), http.StatusNotFound))
	case errors.Is(err, services.ErrOrderNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("order_not_found", "order not found", http.StatusNotFound))
	case errors.As(err, &pricingErr):
		httpx.WriteError(ctx, w, httpx.NewError("pricing_conflict", "pricing conflict; retry later", http.StatusConflict))
	case errors.As(err, &repoErr) && repoErr.IsConflict():
		httpx.WriteError(ctx, w, httpx.NewError("order_conflict", "order has been modified; refresh and retry", http.StatusConflict))
	case errors.As(err, &repoErr) && repoErr.IsUnavailable():
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service is unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("order_error", "order operation failed", http.StatusInternalServerError))
	}
}

type orderResponse struct {
	Order orderPayload `json:"order"`
}

type ordersResponse struct {
	Orders []orderPayload `json:"orders"`
}

func buildOrdersResponse(orders []services.Order) ordersResponse {
	out := ordersResponse{Orders: make([]orderPayload, 0, len(orders))}
	for _, order := range orders {
		out.Orders = append(out.Orders, buildOrderPayload(order))
	}
	return out
}

type orderPayload struct {
	ID          string           `json:"id"`
	CustomerID  string           `json:"customer_id"`
	Name        string           `json:"name,omitempty"`
	OrderNumber string           `json:"order_number,omitempty"`
	Status      string           `json:"status"`
	Items       []itemPayload    `json:"items"`
	Messages    []messagePayload `json:"messages,omitempty"`
	Subtotal    int64            `json:"subtotal"`
	Tax         int64            `json:"tax"`
	Total       int64            `json:"total"`
	SubmittedAt string           `json:"submitted_at,omitempty"`
	CreatedAt   string           `json:"created_at,omitempty"`
	UpdatedAt   string           `json:"updated_at,omitempty"`
}

type itemPayload struct {
	ID           string            `json:"id"`
	ProductID    string            `json:"product_id,omitempty"`
	SKU          string            `json:"sku,omitempty"`
	Kind         string            `json:"kind"`
	Quantity     int               `json:"quantity"`
	UnitPrice    int64             `json:"unit_price"`
	ParentItemID string            `json:"parent_item_id,omitempty"`
	Attributes   map[string]string `json:"attributes,omitempty"`
	AddedAt      string            `json:"added_at,omitempty"`
	UpdatedAt    string            `json:"updated_at,omitempty"`
}

type messagePayload struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func buildOrderPayload(order services.Order) orderPayload {
	payload := orderPayload{
		ID:          order.ID,
		CustomerID:  order.CustomerID,
		Name:        order.Name,
		OrderNumber: order.OrderNumber,
		Status:      string(order.Status),
		Items:       make([]itemPayload, 0, len(order.Items)),
		Subtotal:    order.Subtotal,
		Tax:         order.Tax,
		Total:       order.Total,
	}
	for _, item := range order.Items {
		entry := itemPayload{
			ID:           item.ID,
			ProductID:    item.ProductID,
			SKU:          item.SKU,
			Kind:         string(item.Kind),
			Quantity:     item.Quantity,
			UnitPrice:    item.UnitPrice,
			ParentItemID: item.ParentItemID,
			Attributes:   item.Attributes,
		}
		if !item.AddedAt.IsZero() {
			entry.AddedAt = formatTime(item.AddedAt)
		}
		if !item.UpdatedAt.IsZero() {
			entry.UpdatedAt = formatTime(item.UpdatedAt)
		}
		payload.Items = append(payload.Items, entry)
	}
	for _, msg := range order.Messages {
		payload.Messages = append(payload.Messages, messagePayload{Type: msg.Type, Message: msg.Message})
	}
	if order.SubmittedAt != nil {
		payload.SubmittedAt = formatTime(*order.SubmittedAt)
	}
	if !order.CreatedAt.IsZero() {
		payload.CreatedAt = formatTime(order.CreatedAt)
	}
	if !order.UpdatedAt.IsZero() {
		payload.UpdatedAt = formatTime(order.UpdatedAt)
	}
	return payload
}

type itemRequestPayload struct {
	ProductID  string                `json:"product_id"`
	SKU        string                `json:"sku"`
	Kind       string                `json:"kind"`
	Quantity   int                   `json:"quantity"`
	UnitPrice  int64                 `json:"unit_price"`
	Attributes map[string]string     `json:"attributes"`
	Children   []*itemRequestPayload `json:"children"`
}

func (p *itemRequestPayload) toItemRequest() *services.ItemRequest {
	if p == nil {
		return nil
	}
	req := &services.ItemRequest{
		ProductID:  strings.TrimSpace(p.ProductID),
		SKU:        strings.TrimSpace(p.SKU),
		Kind:       services.ItemKind(strings.ToUpper(strings.TrimSpace(p.Kind))),
		Quantity:   p.Quantity,
		UnitPrice:  p.UnitPrice,
		Attributes: p.Attributes,
	}
	for _, child := range p.Children {
		if child == nil {
			continue
		}
		req.Children = append(req.Children, child.toItemRequest())
	}
	return req
}

type updateItemPayload struct {
	Quantity *int `json:"quantity"`
}
