package handlers

import (
	"context"
	"time"

	domain "github.com/luxury-beauty/api/internal/domain"
	"github.com/luxury-beauty/api/internal/services"
)

type stubCheckoutService struct {
	placeOrderFn func(ctx context.Context, cmd services.CheckoutCommand) (services.CheckoutResult, error)
	lastCommand  *services.CheckoutCommand
}

func (s *stubCheckoutService) PlaceOrder(ctx context.Context, cmd services.CheckoutCommand) (services.CheckoutResult, error) {
	s.lastCommand = &cmd
	if s.placeOrderFn != nil {
		return s.placeOrderFn(ctx, cmd)
	}
	return services.CheckoutResult{Order: testDomainOrder()}, nil
}

type stubOrderService struct {
	getOrderFn        func(ctx context.Context, orderID string) (domain.Order, error)
	getOrderForUserFn func(ctx context.Context, userID, orderID string) (domain.Order, error)
	lookupGuestFn     func(ctx context.Context, orderNumber, email string) (domain.Order, error)
	listUserOrdersFn  func(ctx context.Context, userID string, query services.OrderListQuery) (services.OrderPage, error)
	listOrdersFn      func(ctx context.Context, query services.OrderListQuery) (services.OrderPage, error)
	updateStatusFn    func(ctx context.Context, cmd services.UpdateOrderStatusCommand) (domain.Order, error)
}

func (s *stubOrderService) GetOrder(ctx context.Context, orderID string) (domain.Order, error) {
	if s.getOrderFn != nil {
		return s.getOrderFn(ctx, orderID)
	}
	return testDomainOrder(), nil
}

func (s *stubOrderService) GetOrderForUser(ctx context.Context, userID, orderID string) (domain.Order, error) {
	if s.getOrderForUserFn != nil {
		return s.getOrderForUserFn(ctx, userID, orderID)
	}
	return testDomainOrder(), nil
}

func (s *stubOrderService) LookupGuestOrder(ctx context.Context, orderNumber, email string) (domain.Order, error) {
	if s.lookupGuestFn != nil {
		return s.lookupGuestFn(ctx, orderNumber, email)
	}
	return testDomainOrder(), nil
}

func (s *stubOrderService) ListUserOrders(ctx context.Context, userID string, query services.OrderListQuery) (services.OrderPage, error) {
	if s.listUserOrdersFn != nil {
		return s.listUserOrdersFn(ctx, userID, query)
	}
	return services.OrderPage{Orders: []domain.Order{testDomainOrder()}}, nil
}

func (s *stubOrderService) ListOrders(ctx context.Context, query services.OrderListQuery) (services.OrderPage, error) {
	if s.listOrdersFn != nil {
		return s.listOrdersFn(ctx, query)
	}
	return services.OrderPage{Orders: []domain.Order{testDomainOrder()}}, nil
}

func (s *stubOrderService) UpdateStatus(ctx context.Context, cmd services.UpdateOrderStatusCommand) (domain.Order, error) {
	if s.updateStatusFn != nil {
		return s.updateStatusFn(ctx, cmd)
	}
	order := testDomainOrder()
	order.Status = cmd.Status
	return order, nil
}

type stubPaymentService struct {
	initializeFn func(ctx context.Context, cmd services.InitializePaymentCommand) (services.PaymentInitialization, error)
	verifyFn     func(ctx context.Context, reference string) (services.ReconcileOutcome, error)
	webhookFn    func(ctx context.Context, payload []byte, signature string) (services.ReconcileOutcome, error)
}

func (s *stubPaymentService) InitializePayment(ctx context.Context, cmd services.InitializePaymentCommand) (services.PaymentInitialization, error) {
	if s.initializeFn != nil {
		return s.initializeFn(ctx, cmd)
	}
	return services.PaymentInitialization{Reference: "LB-1741516200000-123456", AuthorizationURL: "https://pay.lenco.co/LB-1741516200000-123456"}, nil
}

func (s *stubPaymentService) VerifyPayment(ctx context.Context, reference string) (services.ReconcileOutcome, error) {
	if s.verifyFn != nil {
		return s.verifyFn(ctx, reference)
	}
	return services.ReconcileOutcome{Reference: reference, OrderID: "order-1", OrderNumber: "LB-250309-A1B2C3", Succeeded: true}, nil
}

func (s *stubPaymentService) HandleWebhook(ctx context.Context, payload []byte, signature string) (services.ReconcileOutcome, error) {
	if s.webhookFn != nil {
		return s.webhookFn(ctx, payload, signature)
	}
	return services.ReconcileOutcome{Reference: "LB-1741516200000-123456", OrderID: "order-1", Succeeded: true}, nil
}

func testDomainOrder() domain.Order {
	createdAt := time.Date(2025, 3, 9, 10, 30, 0, 0, time.UTC)
	return domain.Order{
		ID:           "order-1",
		OrderNumber:  "LB-250309-A1B2C3",
		UserID:       "user-1",
		Status:       domain.OrderStatusAwaitingPayment,
		Method:       domain.PaymentMethodLenco,
		Subtotal:     285000,
		Discount:     0,
		ShippingCost: 5000,
		Total:        290000,
		Shipping: domain.ShippingSnapshot{
			Name:     "Chanda Mwila",
			Email:    "chanda@example.com",
			Phone:    "+260971234567",
			Address:  "Plot 5, Addis Ababa Drive",
			Town:     "Lusaka",
			Province: domain.ProvinceLusaka,
		},
		Items: []domain.OrderItem{
			{
				ID:          "item-1",
				OrderID:     "order-1",
				ProductID:   "prod-serum",
				ProductName: "Vitamin C Serum",
				Quantity:    1,
				UnitPrice:   85000,
				LineTotal:   85000,
			},
			{
				ID:          "item-2",
				OrderID:     "order-1",
				ProductID:   "prod-cream",
				VariantID:   "var-50ml",
				ProductName: "Night Cream",
				VariantName: "50ml",
				Quantity:    2,
				UnitPrice:   100000,
				LineTotal:   200000,
			},
		},
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
}
