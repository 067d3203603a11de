package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	domain "github.com/luxury-beauty/api/internal/domain"
	"github.com/luxury-beauty/api/internal/platform/auth"
	"github.com/luxury-beauty/api/internal/services"
)

func newOrderRouter(svc services.OrderService, identity *auth.Identity) chi.Router {
	r := chi.NewRouter()
	if identity != nil {
		r.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
				next.ServeHTTP(w, req.WithContext(auth.WithIdentity(req.Context(), identity)))
			})
		})
	}
	h := NewOrderHandlers(nil, svc)
	r.Route("/orders", h.Routes)
	return r
}

func customerIdentity() *auth.Identity {
	return &auth.Identity{UID: "user-1", Email: "chanda@example.com", Roles: []string{auth.RoleUser}}
}

func TestListOrdersScopesToIdentity(t *testing.T) {
	var receivedUserID string
	var receivedQuery services.OrderListQuery
	svc := &stubOrderService{
		listUserOrdersFn: func(ctx context.Context, userID string, query services.OrderListQuery) (services.OrderPage, error) {
			receivedUserID = userID
			receivedQuery = query
			return services.OrderPage{Orders: []domain.Order{testDomainOrder()}, NextPageToken: "token-2"}, nil
		},
	}
	router := newOrderRouter(svc, customerIdentity())

	req := httptest.NewRequest(http.MethodGet, "/orders/?status=paid&pageSize=5", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if receivedUserID != "user-1" {
		t.Fatalf("expected listing scoped to user-1, got %s", receivedUserID)
	}
	if receivedQuery.Status != domain.OrderStatusPaid {
		t.Fatalf("expected status filter PAID, got %s", receivedQuery.Status)
	}
	if receivedQuery.PageSize != 5 {
		t.Fatalf("expected page size 5, got %d", receivedQuery.PageSize)
	}

	var resp orderListResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(resp.Items))
	}
	if resp.Items[0].OrderNumber != "LB-250309-A1B2C3" {
		t.Fatalf("unexpected order number: %s", resp.Items[0].OrderNumber)
	}
	if resp.NextPageToken != "token-2" {
		t.Fatalf("expected next page token, got %q", resp.NextPageToken)
	}
}

func TestListOrdersRequiresIdentity(t *testing.T) {
	router := newOrderRouter(&stubOrderService{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/orders/", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}

func TestListOrdersRejectsInvalidPageSize(t *testing.T) {
	router := newOrderRouter(&stubOrderService{}, customerIdentity())

	req := httptest.NewRequest(http.MethodGet, "/orders/?pageSize=abc", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestGetOrderReturnsOwnOrder(t *testing.T) {
	svc := &stubOrderService{
		getOrderForUserFn: func(ctx context.Context, userID, orderID string) (domain.Order, error) {
			if userID != "user-1" || orderID != "order-1" {
				t.Fatalf("unexpected lookup: user=%s order=%s", userID, orderID)
			}
			return testDomainOrder(), nil
		},
	}
	router := newOrderRouter(svc, customerIdentity())

	req := httptest.NewRequest(http.MethodGet, "/orders/order-1", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp orderResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Order.ID != "order-1" {
		t.Fatalf("unexpected order id: %s", resp.Order.ID)
	}
	if len(resp.Order.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(resp.Order.Items))
	}
	if resp.Order.Currency != "ZMW" {
		t.Fatalf("expected ZMW currency, got %s", resp.Order.Currency)
	}
}

func TestGetOrderHidesForeignOrders(t *testing.T) {
	svc := &stubOrderService{
		getOrderForUserFn: func(ctx context.Context, userID, orderID string) (domain.Order, error) {
			return domain.Order{}, fmt.Errorf("%w: order belongs to another user", services.ErrOrderAccessDenied)
		},
	}
	router := newOrderRouter(svc, customerIdentity())

	req := httptest.NewRequest(http.MethodGet, "/orders/order-2", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for foreign order, got %d", rr.Code)
	}

	var envelope map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("expected JSON error envelope: %v", err)
	}
	if envelope["error"] != "order_not_found" {
		t.Fatalf("expected order_not_found, got %v", envelope["error"])
	}
}

func TestGetOrderMapsNotFound(t *testing.T) {
	svc := &stubOrderService{
		getOrderForUserFn: func(ctx context.Context, userID, orderID string) (domain.Order, error) {
			return domain.Order{}, services.ErrOrderNotFound
		},
	}
	router := newOrderRouter(svc, customerIdentity())

	req := httptest.NewRequest(http.MethodGet, "/orders/missing", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}
