package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/fieldstone/cartops/internal/services"
)

type stubOrderService struct {
	createCartFunc       func(ctx context.Context, customerID string) (services.Order, error)
	createNamedFunc      func(ctx context.Context, name string, customerID string) (services.Order, error)
	findByIDFunc         func(ctx context.Context, orderID string) (services.Order, error)
	findCartFunc         func(ctx context.Context, customerID string) (services.Order, error)
	findNamedFunc        func(ctx context.Context, name string, customerID string) (services.Order, error)
	findByNumberFunc     func(ctx context.Context, orderNumber string) (services.Order, error)
	findByDateRangeFunc  func(ctx context.Context, start, end time.Time) ([]services.Order, error)
	findForCustomerFunc  func(ctx context.Context, customerID string, status *services.OrderStatus) ([]services.Order, error)
	addItemFunc          func(ctx context.Context, orderID string, req *services.ItemRequest, priceOrder bool) (services.Order, error)
	updateItemFunc       func(ctx context.Context, orderID string, req *services.ItemRequest, priceOrder bool) (services.Order, error)
	removeItemFunc       func(ctx context.Context, orderID string, itemID string, priceOrder bool) (services.Order, error)
	addAllFromNamedFunc  func(ctx context.Context, namedOrder services.Order, priceOrder bool) (services.Order, error)
	addItemFromNamedFunc func(ctx context.Context, namedOrder services.Order, itemID string, quantity int, priceOrder bool) (services.Order, error)
	cancelFunc           func(ctx context.Context, order services.Order) error
	confirmFunc          func(ctx context.Context, order services.Order) (services.Order, error)
}

func (s *stubOrderService) CreateCartForCustomer(ctx context.Context, customerID string) (services.Order, error) {
	if s.createCartFunc != nil {
		return s.createCartFunc(ctx, customerID)
	}
	return services.Order{}, errors.New("not implemented")
}

func (s *stubOrderService) CreateNamedOrderForCustomer(ctx context.Context, name string, customerID string) (services.Order, error) {
	if s.createNamedFunc != nil {
		return s.createNamedFunc(ctx, name, customerID)
	}
	return services.Order{}, errors.New("not implemented")
}

func (s *stubOrderService) FindOrderByID(ctx context.Context, orderID string) (services.Order, error) {
	if s.findByIDFunc != nil {
		return s.findByIDFunc(ctx, orderID)
	}
	return services.Order{}, errors.New("not implemented")
}

func (s *stubOrderService) FindOrdersByIDs(context.Context, []string) ([]services.Order, error) {
	return nil, errors.New("not implemented")
}

func (s *stubOrderService) FindCartForCustomer(ctx context.Context, customerID string) (services.Order, error) {
	if s.findCartFunc != nil {
		return s.findCartFunc(ctx, customerID)
	}
	return services.Order{}, errors.New("not implemented")
}

func (s *stubOrderService) FindCartForCustomerWithEnhancements(ctx context.Context, customerID string) (services.Order, error) {
	if s.findCartFunc != nil {
		return s.findCartFunc(ctx, customerID)
	}
	return services.Order{}, errors.New("not implemented")
}

func (s *stubOrderService) FindNamedOrderForCustomer(ctx context.Context, name string, customerID string) (services.Order, error) {
	if s.findNamedFunc != nil {
		return s.findNamedFunc(ctx, name, customerID)
	}
	return services.Order{}, errors.New("not implemented")
}

func (s *stubOrderService) FindOrderByOrderNumber(ctx context.Context, orderNumber string) (services.Order, error) {
	if s.findByNumberFunc != nil {
		return s.findByNumberFunc(ctx, orderNumber)
	}
	return services.Order{}, errors.New("not implemented")
}

func (s *stubOrderService) FindOrdersByDateRange(ctx context.Context, start, end time.Time) ([]services.Order, error) {
	if s.findByDateRangeFunc != nil {
		return s.findByDateRangeFunc(ctx, start, end)
	}
	return nil, errors.New("not implemented")
}

func (s *stubOrderService) FindOrdersForCustomer(ctx context.Context, customerID string, status *services.OrderStatus) ([]services.Order, error) {
	if s.findForCustomerFunc != nil {
		return s.findForCustomerFunc(ctx, customerID, status)
	}
	return nil, errors.New("not implemented")
}

func (s *stubOrderService) AddItem(ctx context.Context, orderID string, req *services.ItemRequest, priceOrder bool) (services.Order, error) {
	if s.addItemFunc != nil {
		return s.addItemFunc(ctx, orderID, req, priceOrder)
	}
	return services.Order{}, errors.New("not implemented")
}

func (s *stubOrderService) UpdateItemQuantity(ctx context.Context, orderID string, req *services.ItemRequest, priceOrder bool) (services.Order, error) {
	if s.updateItemFunc != nil {
		return s.updateItemFunc(ctx, orderID, req, priceOrder)
	}
	return services.Order{}, errors.New("not implemented")
}

func (s *stubOrderService) RemoveItem(ctx context.Context, orderID string, itemID string, priceOrder bool) (services.Order, error) {
	if s.removeItemFunc != nil {
		return s.removeItemFunc(ctx, orderID, itemID, priceOrder)
	}
	return services.Order{}, errors.New("not implemented")
}

func (s *stubOrderService) AddAllItemsFromNamedOrder(ctx context.Context, namedOrder services.Order, priceOrder bool) (services.Order, error) {
	if s.addAllFromNamedFunc != nil {
		return s.addAllFromNamedFunc(ctx, namedOrder, priceOrder)
	}
	return services.Order{}, errors.New("not implemented")
}

func (s *stubOrderService) AddItemFromNamedOrder(ctx context.Context, namedOrder services.Order, itemID string, quantity int, priceOrder bool) (services.Order, error) {
	if s.addItemFromNamedFunc != nil {
		return s.addItemFromNamedFunc(ctx, namedOrder, itemID, quantity, priceOrder)
	}
	return services.Order{}, errors.New("not implemented")
}

func (s *stubOrderService) Save(context.Context, services.Order, bool) (services.Order, error) {
	return services.Order{}, errors.New("not implemented")
}

func (s *stubOrderService) CancelOrder(ctx context.Context, order services.Order) error {
	if s.cancelFunc != nil {
		return s.cancelFunc(ctx, order)
	}
	return errors.New("not implemented")
}

func (s *stubOrderService) ConfirmOrder(ctx context.Context, order services.Order) (services.Order, error) {
	if s.confirmFunc != nil {
		return s.confirmFunc(ctx, order)
	}
	return services.Order{}, errors.New("not implemented")
}

func (s *stubOrderService) Refresh(context.Context, services.Order) (services.Order, error) {
	return services.Order{}, errors.New("not implemented")
}

func newOrderRouter(service services.OrderService) chi.Router {
	router := chi.NewRouter()
	router.Route("/orders", NewOrderHandlers(service).Routes)
	return router
}

func decodeErrorEnvelope(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var payload map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &payload))
	return payload
}

func TestOrderHandlersAddItemSuccess(t *testing.T) {
	var gotOrderID string
	var gotReq *services.ItemRequest
	var gotPrice bool

	service := &stubOrderService{
		addItemFunc: func(_ context.Context, orderID string, req *services.ItemRequest, priceOrder bool) (services.Order, error) {
			gotOrderID = orderID
			gotReq = req
			gotPrice = priceOrder
			return services.Order{
				ID:         orderID,
				CustomerID: "cust-1",
				Status:     "IN_PROCESS",
				Items: []services.OrderItem{
					{ID: "item-1", SKU: "SKU-1", Kind: "DISCRETE", Quantity: 2, UnitPrice: 500},
				},
				Subtotal: 1000,
				Total:    1000,
			}, nil
		},
	}

	body := `{
		"sku": "SKU-1",
		"product_id": "prod-1",
		"quantity": 2,
		"unit_price": 500,
		"attributes": {"color": "red"},
		"children": [{"sku": "SKU-1a", "quantity": 1}]
	}`
	req := httptest.NewRequest(http.MethodPost, "/orders/order-1/items", strings.NewReader(body))
	rr := httptest.NewRecorder()
	newOrderRouter(service).ServeHTTP(rr, req)

	require.Equal(t, http.StatusCreated, rr.Code)
	require.Equal(t, "order-1", gotOrderID)
	require.True(t, gotPrice, "price flag defaults to true")
	require.NotNil(t, gotReq)
	require.Equal(t, "SKU-1", gotReq.SKU)
	require.Equal(t, map[string]string{"color": "red"}, gotReq.Attributes)
	require.Len(t, gotReq.Children, 1)
	require.Equal(t, "SKU-1a", gotReq.Children[0].SKU)

	var resp orderResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Equal(t, "order-1", resp.Order.ID)
	require.Len(t, resp.Order.Items, 1)
	require.Equal(t, int64(1000), resp.Order.Total)
}

func TestOrderHandlersAddItemPriceParamDisabled(t *testing.T) {
	var gotPrice bool
	service := &stubOrderService{
		addItemFunc: func(_ context.Context, orderID string, _ *services.ItemRequest, priceOrder bool) (services.Order, error) {
			gotPrice = priceOrder
			return services.Order{ID: orderID}, nil
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/orders/order-1/items?price=false", strings.NewReader(`{"sku":"SKU-1","quantity":1}`))
	rr := httptest.NewRecorder()
	newOrderRouter(service).ServeHTTP(rr, req)

	require.Equal(t, http.StatusCreated, rr.Code)
	require.False(t, gotPrice)
}

func TestOrderHandlersAddItemEmptyBody(t *testing.T) {
	service := &stubOrderService{}
	req := httptest.NewRequest(http.MethodPost, "/orders/order-1/items", strings.NewReader("  "))
	rr := httptest.NewRecorder()
	newOrderRouter(service).ServeHTTP(rr, req)

	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Equal(t, "invalid_request", decodeErrorEnvelope(t, rr)["error"])
}

func TestOrderHandlersErrorMapping(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"veto", fmt.Errorf("%w: locked", services.ErrIllegalCartOperation), http.StatusConflict, "operation_vetoed"},
		{"invalidInput", fmt.Errorf("%w: bad quantity", services.ErrInvalidInput), http.StatusBadRequest, "invalid_request"},
		{"itemNotFound", fmt.Errorf("%w: item-9", services.ErrItemNotFound), http.StatusNotFound, "item_not_found"},
		{"orderNotFound", fmt.Errorf("%w: gone", services.ErrOrderNotFound), http.StatusNotFound, "order_not_found"},
		{"pricing", &services.PricingError{Message: "lock retry limit exceeded at 3"}, http.StatusConflict, "pricing_conflict"},
		{"conflict", &stubRepositoryError{conflict: true}, http.StatusConflict, "order_conflict"},
		{"unavailable", &stubRepositoryError{unavailable: true}, http.StatusServiceUnavailable, "order_service_unavailable"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "order_error"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			service := &stubOrderService{
				addItemFunc: func(context.Context, string, *services.ItemRequest, bool) (services.Order, error) {
					return services.Order{}, tc.err
				},
			}
			req := httptest.NewRequest(http.MethodPost, "/orders/order-1/items", strings.NewReader(`{"sku":"SKU-1","quantity":1}`))
			rr := httptest.NewRecorder()
			newOrderRouter(service).ServeHTTP(rr, req)

			require.Equal(t, tc.wantStatus, rr.Code)
			require.Equal(t, tc.wantCode, decodeErrorEnvelope(t, rr)["error"])
		})
	}
}

type stubRepositoryError struct {
	notFound    bool
	conflict    bool
	unavailable bool
}

func (e *stubRepositoryError) Error() string       { return "stub repository error" }
func (e *stubRepositoryError) IsNotFound() bool    { return e.notFound }
func (e *stubRepositoryError) IsConflict() bool    { return e.conflict }
func (e *stubRepositoryError) IsUnavailable() bool { return e.unavailable }

func TestOrderHandlersUpdateItemRequiresQuantity(t *testing.T) {
	service := &stubOrderService{}
	req := httptest.NewRequest(http.MethodPatch, "/orders/order-1/items/item-1", strings.NewReader(`{}`))
	rr := httptest.NewRecorder()
	newOrderRouter(service).ServeHTTP(rr, req)

	require.Equal(t, http.StatusBadRequest, rr.Code)
	envelope := decodeErrorEnvelope(t, rr)
	require.Equal(t, "invalid_request", envelope["error"])
	require.Contains(t, envelope["message"], "quantity")
}

func TestOrderHandlersUpdateItemSuccess(t *testing.T) {
	var gotReq *services.ItemRequest
	service := &stubOrderService{
		updateItemFunc: func(_ context.Context, orderID string, req *services.ItemRequest, _ bool) (services.Order, error) {
			gotReq = req
			return services.Order{
				ID: orderID,
				Items: []services.OrderItem{
					{ID: req.ItemID, Quantity: req.Quantity, Kind: "DISCRETE"},
				},
				Messages: []services.ActivityMessage{
					{Type: "quantityUnchanged", Message: "item item-1 already at quantity 3"},
				},
			}, nil
		},
	}

	req := httptest.NewRequest(http.MethodPatch, "/orders/order-1/items/item-1", strings.NewReader(`{"quantity":3}`))
	rr := httptest.NewRecorder()
	newOrderRouter(service).ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	require.NotNil(t, gotReq)
	require.Equal(t, "item-1", gotReq.ItemID)
	require.Equal(t, 3, gotReq.Quantity)

	var resp orderResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Len(t, resp.Order.Messages, 1)
	require.Equal(t, "quantityUnchanged", resp.Order.Messages[0].Type)
}

func TestOrderHandlersRemoveItem(t *testing.T) {
	var gotItemID string
	service := &stubOrderService{
		removeItemFunc: func(_ context.Context, orderID string, itemID string, _ bool) (services.Order, error) {
			gotItemID = itemID
			return services.Order{ID: orderID}, nil
		},
	}

	req := httptest.NewRequest(http.MethodDelete, "/orders/order-1/items/item-7", nil)
	rr := httptest.NewRecorder()
	newOrderRouter(service).ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "item-7", gotItemID)
}

func TestOrderHandlersCancelOrder(t *testing.T) {
	cancelled := false
	service := &stubOrderService{
		findByIDFunc: func(_ context.Context, orderID string) (services.Order, error) {
			return services.Order{ID: orderID}, nil
		},
		cancelFunc: func(_ context.Context, order services.Order) error {
			cancelled = order.ID == "order-1"
			return nil
		},
	}

	req := httptest.NewRequest(http.MethodDelete, "/orders/order-1", nil)
	rr := httptest.NewRecorder()
	newOrderRouter(service).ServeHTTP(rr, req)

	require.Equal(t, http.StatusNoContent, rr.Code)
	require.True(t, cancelled)
}

func TestOrderHandlersConfirmOrder(t *testing.T) {
	service := &stubOrderService{
		findByIDFunc: func(_ context.Context, orderID string) (services.Order, error) {
			return services.Order{ID: orderID, Status: "IN_PROCESS"}, nil
		},
		confirmFunc: func(_ context.Context, order services.Order) (services.Order, error) {
			order.Status = "SUBMITTED"
			order.OrderNumber = "ORD-000042"
			return order, nil
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/orders/order-1/confirm", nil)
	rr := httptest.NewRecorder()
	newOrderRouter(service).ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var resp orderResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Equal(t, "SUBMITTED", resp.Order.Status)
	require.Equal(t, "ORD-000042", resp.Order.OrderNumber)
}

func TestOrderHandlersListByNumber(t *testing.T) {
	service := &stubOrderService{
		findByNumberFunc: func(_ context.Context, number string) (services.Order, error) {
			require.Equal(t, "ORD-000007", number)
			return services.Order{ID: "order-7", OrderNumber: number}, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/orders?number=ORD-000007", nil)
	rr := httptest.NewRecorder()
	newOrderRouter(service).ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var resp ordersResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Len(t, resp.Orders, 1)
	require.Equal(t, "order-7", resp.Orders[0].ID)
}

func TestOrderHandlersListForCustomerWithStatus(t *testing.T) {
	var gotStatus *services.OrderStatus
	service := &stubOrderService{
		findForCustomerFunc: func(_ context.Context, customerID string, status *services.OrderStatus) ([]services.Order, error) {
			require.Equal(t, "cust-1", customerID)
			gotStatus = status
			return []services.Order{{ID: "order-1", CustomerID: customerID}}, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/orders?customer_id=cust-1&status=submitted", nil)
	rr := httptest.NewRecorder()
	newOrderRouter(service).ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	require.NotNil(t, gotStatus)
	require.Equal(t, services.OrderStatus("SUBMITTED"), *gotStatus)
}

func TestOrderHandlersListByDateRange(t *testing.T) {
	var gotStart, gotEnd time.Time
	service := &stubOrderService{
		findByDateRangeFunc: func(_ context.Context, start, end time.Time) ([]services.Order, error) {
			gotStart, gotEnd = start, end
			return nil, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/orders?submitted_after=2025-04-01T00:00:00Z&submitted_before=2025-04-02T00:00:00Z", nil)
	rr := httptest.NewRecorder()
	newOrderRouter(service).ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC), gotStart)
	require.Equal(t, time.Date(2025, 4, 2, 0, 0, 0, 0, time.UTC), gotEnd)
}

func TestOrderHandlersListRequiresFilter(t *testing.T) {
	service := &stubOrderService{}
	req := httptest.NewRequest(http.MethodGet, "/orders", nil)
	rr := httptest.NewRecorder()
	newOrderRouter(service).ServeHTTP(rr, req)

	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Equal(t, "invalid_request", decodeErrorEnvelope(t, rr)["error"])
}

func TestOrderHandlersListBadTimestamp(t *testing.T) {
	service := &stubOrderService{}
	req := httptest.NewRequest(http.MethodGet, "/orders?submitted_after=yesterday&submitted_before=2025-04-02T00:00:00Z", nil)
	rr := httptest.NewRecorder()
	newOrderRouter(service).ServeHTTP(rr, req)

	require.Equal(t, http.StatusBadRequest, rr.Code)
}
