package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/luxury-beauty/api/internal/domain"
	"github.com/luxury-beauty/api/internal/platform/auth"
	"github.com/luxury-beauty/api/internal/platform/httpx"
	"github.com/luxury-beauty/api/internal/platform/pagination"
	"github.com/luxury-beauty/api/internal/services"
)

const (
	defaultOrderPageSize = 20
	maxOrderPageSize     = 100
)

// OrderHandlers exposes order reads for authenticated customers.
type OrderHandlers struct {
	authn  *auth.Authenticator
	orders services.OrderService
}

// NewOrderHandlers constructs a new OrderHandlers instance.
func NewOrderHandlers(authn *auth.Authenticator, orders services.OrderService) *OrderHandlers {
	return &OrderHandlers{
		authn:  authn,
		orders: orders,
	}
}

// Routes registers the customer /orders endpoints.
func (h *OrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	group := r
	if h.authn != nil {
		group = group.With(h.authn.RequireFirebaseAuth())
	}
	group.Get("/", h.listOrders)
	group.Get("/{orderID}", h.getOrder)
}

func (h *OrderHandlers) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}

	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil || strings.TrimSpace(identity.UID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return
	}

	query, err := parseOrderListQuery(r)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	page, err := h.orders.ListUserOrders(ctx, identity.UID, query)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, buildOrderListResponse(page))
}

func (h *OrderHandlers) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}

	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil || strings.TrimSpace(identity.UID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return
	}

	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	if orderID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "order id is required", http.StatusBadRequest))
		return
	}

	order, err := h.orders.GetOrderForUser(ctx, identity.UID, orderID)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

// parseOrderListQuery extracts status and paging parameters shared by the
// customer and admin listing endpoints.
func parseOrderListQuery(r *http.Request) (services.OrderListQuery, error) {
	params, err := pagination.FromRequest(r, pagination.Options{
		DefaultPageSize: defaultOrderPageSize,
		MaxPageSize:     maxOrderPageSize,
	})
	if err != nil {
		return services.OrderListQuery{}, err
	}

	return services.OrderListQuery{
		Status:    domain.OrderStatus(strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("status")))),
		PageSize:  params.PageSize,
		PageToken: params.PageToken,
	}, nil
}

type orderListResponse struct {
	Items         []orderSummaryPayload `json:"items"`
	NextPageToken string                `json:"nextPageToken,omitempty"`
}

type orderSummaryPayload struct {
	ID          string `json:"id"`
	OrderNumber string `json:"orderNumber"`
	Status      string `json:"status"`
	Method      string `json:"paymentMethod"`
	Currency    string `json:"currency"`
	Total       int64  `json:"total"`
	CreatedAt   string `json:"createdAt"`
}

type orderResponse struct {
	Order orderPayload `json:"order"`
}

type orderPayload struct {
	ID             string             `json:"id"`
	OrderNumber    string             `json:"orderNumber"`
	UserID         string             `json:"userId,omitempty"`
	Status         string             `json:"status"`
	Method         string             `json:"paymentMethod"`
	Currency       string             `json:"currency"`
	Subtotal       int64              `json:"subtotal"`
	Discount       int64              `json:"discount"`
	ShippingCost   int64              `json:"shippingCost"`
	Total          int64              `json:"total"`
	Items          []orderItemPayload `json:"items"`
	Shipping       shippingPayload    `json:"shipping"`
	DiscountCodeID string             `json:"discountCodeId,omitempty"`
	CustomerNotes  string             `json:"customerNotes,omitempty"`
	TrackingNumber string             `json:"trackingNumber,omitempty"`
	CreatedAt      string             `json:"createdAt"`
	UpdatedAt      string             `json:"updatedAt,omitempty"`
	PaidAt         string             `json:"paidAt,omitempty"`
	PackedAt       string             `json:"packedAt,omitempty"`
	ShippedAt      string             `json:"shippedAt,omitempty"`
	DeliveredAt    string             `json:"deliveredAt,omitempty"`
	CancelledAt    string             `json:"cancelledAt,omitempty"`
	RefundedAt     string             `json:"refundedAt,omitempty"`
}

type orderItemPayload struct {
	ProductID   string `json:"productId"`
	VariantID   string `json:"variantId,omitempty"`
	ProductName string `json:"productName"`
	VariantName string `json:"variantName,omitempty"`
	Quantity    int    `json:"quantity"`
	UnitPrice   int64  `json:"unitPrice"`
	LineTotal   int64  `json:"lineTotal"`
}

type shippingPayload struct {
	Name     string `json:"name"`
	Email    string `json:"email,omitempty"`
	Phone    string `json:"phone,omitempty"`
	Address  string `json:"address,omitempty"`
	Town     string `json:"town,omitempty"`
	Province string `json:"province,omitempty"`
}

func buildOrderListResponse(page services.OrderPage) orderListResponse {
	items := make([]orderSummaryPayload, 0, len(page.Orders))
	for _, order := range page.Orders {
		items = append(items, buildOrderSummary(order))
	}
	return orderListResponse{
		Items:         items,
		NextPageToken: strings.TrimSpace(page.NextPageToken),
	}
}

func buildOrderSummary(order domain.Order) orderSummaryPayload {
	return orderSummaryPayload{
		ID:          strings.TrimSpace(order.ID),
		OrderNumber: strings.TrimSpace(order.OrderNumber),
		Status:      string(order.Status),
		Method:      string(order.Method),
		Currency:    domain.Currency,
		Total:       order.Total,
		CreatedAt:   formatTime(order.CreatedAt),
	}
}

func buildOrderPayload(order domain.Order) orderPayload {
	payload := orderPayload{
		ID:           strings.TrimSpace(order.ID),
		OrderNumber:  strings.TrimSpace(order.OrderNumber),
		UserID:       strings.TrimSpace(order.UserID),
		Status:       string(order.Status),
		Method:       string(order.Method),
		Currency:     domain.Currency,
		Subtotal:     order.Subtotal,
		Discount:     order.Discount,
		ShippingCost: order.ShippingCost,
		Total:        order.Total,
		Items:        make([]orderItemPayload, 0, len(order.Items)),
		Shipping: shippingPayload{
			Name:     strings.TrimSpace(order.Shipping.Name),
			Email:    strings.TrimSpace(order.Shipping.Email),
			Phone:    strings.TrimSpace(order.Shipping.Phone),
			Address:  strings.TrimSpace(order.Shipping.Address),
			Town:     strings.TrimSpace(order.Shipping.Town),
			Province: string(order.Shipping.Province),
		},
		DiscountCodeID: strings.TrimSpace(order.DiscountCodeID),
		CustomerNotes:  strings.TrimSpace(order.CustomerNotes),
		TrackingNumber: strings.TrimSpace(order.TrackingNumber),
		CreatedAt:      formatTime(order.CreatedAt),
		UpdatedAt:      formatTime(order.UpdatedAt),
		PaidAt:         formatTime(pointerTime(order.PaidAt)),
		PackedAt:       formatTime(pointerTime(order.PackedAt)),
		ShippedAt:      formatTime(pointerTime(order.ShippedAt)),
		DeliveredAt:    formatTime(pointerTime(order.DeliveredAt)),
		CancelledAt:    formatTime(pointerTime(order.CancelledAt)),
		RefundedAt:     formatTime(pointerTime(order.RefundedAt)),
	}

	for _, item := range order.Items {
		payload.Items = append(payload.Items, orderItemPayload{
			ProductID:   strings.TrimSpace(item.ProductID),
			VariantID:   strings.TrimSpace(item.VariantID),
			ProductName: strings.TrimSpace(item.ProductName),
			VariantName: strings.TrimSpace(item.VariantName),
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			LineTotal:   item.LineTotal,
		})
	}

	return payload
}

func writeOrderError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, pagination.ErrInvalidPageToken), errors.Is(err, pagination.ErrInvalidPageSize):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrOrderInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrOrderNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("order_not_found", "order not found", http.StatusNotFound))
	case errors.Is(err, services.ErrOrderAccessDenied):
		// Hide foreign orders rather than acknowledging they exist.
		httpx.WriteError(ctx, w, httpx.NewError("order_not_found", "order not found", http.StatusNotFound))
	case errors.Is(err, services.ErrOrderInvalidTransition):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_transition", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrOrderConflict):
		httpx.WriteError(ctx, w, httpx.NewError("order_conflict", "order was modified concurrently; retry", http.StatusConflict))
	case errors.Is(err, services.ErrServiceUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("service_unavailable", "service temporarily unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("order_error", "failed to process order request", http.StatusInternalServerError))
	}
}
