package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/luxury-beauty/api/internal/domain"
	"github.com/luxury-beauty/api/internal/repositories"
)

// PaymentInitializer starts a gateway collection for a freshly committed
// order. Implemented by the payment service; split out so checkout does not
// depend on the full reconciliation surface.
type PaymentInitializer interface {
	InitializeForOrder(ctx context.Context, order domain.Order, callbackURL, idempotencyKey string) (PaymentInitialization, error)
}

// CheckoutServiceDeps lists collaborators for NewCheckoutService.
type CheckoutServiceDeps struct {
	Orders        repositories.OrderRepository
	Catalog       repositories.CatalogRepository
	DiscountCodes repositories.DiscountCodeRepository
	ShippingRates repositories.ShippingRateRepository
	Payments      PaymentInitializer
	Notifications NotificationService
	Clock         func() time.Time
	IDGenerator   func() string
	Logger        func(ctx context.Context, event string, fields map[string]any)
}

type checkoutService struct {
	orders        repositories.OrderRepository
	catalog       repositories.CatalogRepository
	discountCodes repositories.DiscountCodeRepository
	shippingRates repositories.ShippingRateRepository
	payments      PaymentInitializer
	notifications NotificationService
	clock         func() time.Time
	idgen         func() string
	logger        func(ctx context.Context, event string, fields map[string]any)
}

// NewCheckoutService builds the order assembler.
func NewCheckoutService(deps CheckoutServiceDeps) (CheckoutService, error) {
	if deps.Orders == nil {
		return nil, errors.New("checkout service: order repository is required")
	}
	if deps.Catalog == nil {
		return nil, errors.New("checkout service: catalog repository is required")
	}
	if deps.DiscountCodes == nil {
		return nil, errors.New("checkout service: discount code repository is required")
	}
	if deps.ShippingRates == nil {
		return nil, errors.New("checkout service: shipping rate repository is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idgen := deps.IDGenerator
	if idgen == nil {
		idgen = func() string { return ulid.Make().String() }
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &checkoutService{
		orders:        deps.Orders,
		catalog:       deps.Catalog,
		discountCodes: deps.DiscountCodes,
		shippingRates: deps.ShippingRates,
		payments:      deps.Payments,
		notifications: deps.Notifications,
		clock: func() time.Time {
			return clock().UTC()
		},
		idgen:  idgen,
		logger: logger,
	}, nil
}

// PlaceOrder assembles and commits an order. All validation happens before
// the transaction opens; a failure leaves no partial stock decrement and no
// partial order. Gateway initialization runs after the commit and its
// failure is reported via PaymentPending, never by rolling back the order.
func (s *checkoutService) PlaceOrder(ctx context.Context, cmd CheckoutCommand) (CheckoutResult, error) {
	now := s.clock()

	province, err := s.validate(&cmd)
	if err != nil {
		return CheckoutResult{}, err
	}

	products, err := s.catalog.FindProducts(ctx, productIDs(cmd.Items))
	if err != nil {
		return CheckoutResult{}, mapRepositoryError(err, ErrProductUnavailable)
	}

	items, subtotal, err := s.priceItems(cmd.Items, products)
	if err != nil {
		return CheckoutResult{}, err
	}

	shippingCost := s.resolveShipping(ctx, cmd.ShippingRateID, province)

	discountAmount, discountCodeID := s.applyDiscount(ctx, cmd.DiscountCode, subtotal, now)

	orderID := s.idgen()
	order := domain.Order{
		ID:           orderID,
		OrderNumber:  domain.GenerateOrderNumber(now),
		UserID:       strings.TrimSpace(cmd.UserID),
		Method:       cmd.Method,
		Subtotal:     subtotal,
		Discount:     discountAmount,
		ShippingCost: shippingCost,
		Total:        domain.OrderTotal(subtotal, discountAmount, shippingCost),
		Shipping: domain.ShippingSnapshot{
			Name:     strings.TrimSpace(cmd.Name),
			Email:    strings.TrimSpace(cmd.Email),
			Phone:    strings.TrimSpace(cmd.Phone),
			Address:  strings.TrimSpace(cmd.Address),
			Town:     strings.TrimSpace(cmd.Town),
			Province: province,
		},
		DiscountCodeID: discountCodeID,
		CustomerNotes:  strings.TrimSpace(cmd.CustomerNotes),
		Status:         domain.OrderStatusPlaced,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if cmd.Method == domain.PaymentMethodLenco {
		order.Status = domain.OrderStatusAwaitingPayment
	}
	for i := range items {
		items[i].ID = s.idgen()
		items[i].OrderID = orderID
	}
	order.Items = items

	created, err := s.orders.Create(ctx, order, repositories.OrderCreateOptions{DiscountCodeID: discountCodeID})
	if err != nil {
		return CheckoutResult{}, s.mapCreateError(err)
	}

	s.logger(ctx, "checkout.order.created", map[string]any{
		"orderId":     created.ID,
		"orderNumber": created.OrderNumber,
		"total":       created.Total,
		"method":      string(created.Method),
	})

	result := CheckoutResult{Order: created}

	if created.Method == domain.PaymentMethodLenco {
		if s.payments == nil {
			result.PaymentPending = true
			return result, nil
		}
		init, err := s.payments.InitializeForOrder(ctx, created, cmd.CallbackURL, created.ID+"-init")
		if err != nil {
			// The order is committed; surface a retryable condition instead
			// of failing the checkout.
			s.logger(ctx, "checkout.payment.init_failed", map[string]any{
				"orderId": created.ID,
				"error":   err.Error(),
			})
			result.PaymentPending = true
			return result, nil
		}
		result.AuthorizationURL = init.AuthorizationURL
		result.PaymentReference = init.Reference
		return result, nil
	}

	if s.notifications != nil {
		if err := s.notifications.SendOrderConfirmation(ctx, created); err != nil {
			s.logger(ctx, "checkout.notification.failed", map[string]any{
				"orderId": created.ID,
				"error":   err.Error(),
			})
		}
	}
	return result, nil
}

func (s *checkoutService) validate(cmd *CheckoutCommand) (domain.Province, error) {
	if len(cmd.Items) == 0 {
		return "", fmt.Errorf("%w: cart is empty", ErrCheckoutInvalidInput)
	}
	for i, item := range cmd.Items {
		if strings.TrimSpace(item.ProductID) == "" {
			return "", fmt.Errorf("%w: item %d is missing a product id", ErrCheckoutInvalidInput, i)
		}
		if item.Quantity <= 0 {
			return "", fmt.Errorf("%w: item %d has a non-positive quantity", ErrCheckoutInvalidInput, i)
		}
	}
	for field, value := range map[string]string{
		"name":    cmd.Name,
		"email":   cmd.Email,
		"phone":   cmd.Phone,
		"address": cmd.Address,
		"town":    cmd.Town,
	} {
		if strings.TrimSpace(value) == "" {
			return "", fmt.Errorf("%w: %s is required", ErrCheckoutInvalidInput, field)
		}
	}
	if _, err := mail.ParseAddress(strings.TrimSpace(cmd.Email)); err != nil {
		return "", fmt.Errorf("%w: invalid email address", ErrCheckoutInvalidInput)
	}
	switch cmd.Method {
	case domain.PaymentMethodLenco, domain.PaymentMethodManualMomo, domain.PaymentMethodPayOnDelivery:
	default:
		return "", fmt.Errorf("%w: unknown payment method %q", ErrCheckoutInvalidInput, cmd.Method)
	}
	province, ok := domain.ParseProvince(cmd.Province)
	if !ok {
		return "", fmt.Errorf("%w: unknown province %q", ErrCheckoutInvalidInput, cmd.Province)
	}
	return province, nil
}

// priceItems resolves each line against the live catalog. Client-submitted
// prices are never trusted; unit prices and name snapshots come from the
// product records read here.
func (s *checkoutService) priceItems(inputs []CheckoutItemInput, products map[string]domain.Product) ([]domain.OrderItem, int64, error) {
	items := make([]domain.OrderItem, 0, len(inputs))
	var subtotal int64
	for _, input := range inputs {
		product, ok := products[input.ProductID]
		if !ok || !product.Active {
			return nil, 0, fmt.Errorf("%w: product %s", ErrProductUnavailable, input.ProductID)
		}

		unitPrice := product.Price
		available := product.StockQty
		variantName := ""
		if input.VariantID != "" {
			variant := findProductVariant(product, input.VariantID)
			if variant == nil || !variant.Active {
				return nil, 0, fmt.Errorf("%w: variant %s of product %s", ErrProductUnavailable, input.VariantID, input.ProductID)
			}
			unitPrice = variant.Price
			available = variant.StockQty
			variantName = variant.Name
		}
		if input.Quantity > available {
			return nil, 0, fmt.Errorf("%w: %s: have %d, want %d", ErrInsufficientStock, itemLabel(product.Name, variantName), available, input.Quantity)
		}

		lineTotal := unitPrice * int64(input.Quantity)
		subtotal += lineTotal
		items = append(items, domain.OrderItem{
			ProductID:   input.ProductID,
			VariantID:   input.VariantID,
			ProductName: product.Name,
			VariantName: variantName,
			Quantity:    input.Quantity,
			UnitPrice:   unitPrice,
			LineTotal:   lineTotal,
		})
	}
	return items, subtotal, nil
}

// resolveShipping prefers an explicit rate id, falls back to the province's
// region tier, and degrades to zero when no active rate exists.
func (s *checkoutService) resolveShipping(ctx context.Context, rateID string, province domain.Province) int64 {
	if rateID = strings.TrimSpace(rateID); rateID != "" {
		rate, err := s.shippingRates.FindByID(ctx, rateID)
		if err == nil && rate.Active {
			return rate.Amount
		}
	}
	rate, err := s.shippingRates.FindActiveByRegion(ctx, domain.RegionForProvince(province))
	if err != nil {
		return 0
	}
	return rate.Amount
}

// applyDiscount evaluates a submitted code and silently ignores any code that
// does not apply. The customer validated the code before reaching submission;
// this late re-check must not hard-fail the checkout.
func (s *checkoutService) applyDiscount(ctx context.Context, code string, subtotal int64, now time.Time) (int64, string) {
	code = strings.TrimSpace(code)
	if code == "" {
		return 0, ""
	}
	record, err := s.discountCodes.FindByCode(ctx, code)
	if err != nil {
		s.logger(ctx, "checkout.discount.ignored", map[string]any{"code": code, "error": err.Error()})
		return 0, ""
	}
	result := domain.EvaluateDiscount(&record, subtotal, now)
	if !result.OK {
		s.logger(ctx, "checkout.discount.ignored", map[string]any{"code": code, "reason": string(result.Reason)})
		return 0, ""
	}
	return result.Amount, record.ID
}

func (s *checkoutService) mapCreateError(err error) error {
	var stockErr *repositories.StockError
	if errors.As(err, &stockErr) {
		switch stockErr.Code {
		case repositories.StockErrorInsufficient:
			return fmt.Errorf("%w: %s", ErrInsufficientStock, stockErr.Message)
		case repositories.StockErrorProductNotFound, repositories.StockErrorVariantNotFound:
			return fmt.Errorf("%w: %s", ErrProductUnavailable, stockErr.Message)
		}
	}
	return mapRepositoryError(err, ErrProductUnavailable)
}

func productIDs(items []CheckoutItemInput) []string {
	ids := make([]string, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ProductID)
	}
	return ids
}

func findProductVariant(product domain.Product, variantID string) *domain.ProductVariant {
	for i := range product.Variants {
		if product.Variants[i].ID == variantID {
			return &product.Variants[i]
		}
	}
	return nil
}

func itemLabel(productName, variantName string) string {
	if variantName != "" {
		return productName + " (" + variantName + ")"
	}
	return productName
}
