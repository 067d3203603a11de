package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	domain "github.com/luxury-beauty/api/internal/domain"
	"github.com/luxury-beauty/api/internal/payments"
	"github.com/luxury-beauty/api/internal/repositories"
)

const paymentMetricNamespace = "github.com/luxury-beauty/api/internal/services/payments"

// PaymentServiceDeps lists collaborators for NewPaymentService.
type PaymentServiceDeps struct {
	Payments      repositories.PaymentRepository
	Orders        repositories.OrderRepository
	Providers     *payments.Registry
	Notifications NotificationService
	Clock         func() time.Time
	IDGenerator   func() string
	Logger        func(ctx context.Context, event string, fields map[string]any)
	Meter         metric.Meter
}

type paymentService struct {
	payments      repositories.PaymentRepository
	orders        repositories.OrderRepository
	providers     *payments.Registry
	notifications NotificationService
	clock         func() time.Time
	idgen         func() string
	logger        func(ctx context.Context, event string, fields map[string]any)

	outcomes        metric.Int64Counter
	outcomesEnabled bool
}

// NewPaymentService builds the payment initialization and reconciliation service.
func NewPaymentService(deps PaymentServiceDeps) (PaymentService, error) {
	if deps.Payments == nil {
		return nil, errors.New("payment service: payment repository is required")
	}
	if deps.Orders == nil {
		return nil, errors.New("payment service: order repository is required")
	}
	if deps.Providers == nil {
		return nil, errors.New("payment service: provider registry is required")
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

	meter := deps.Meter
	if meter == nil {
		meter = otel.GetMeterProvider().Meter(paymentMetricNamespace)
	}
	outcomes, metricErr := meter.Int64Counter(
		"payments.reconcile.outcomes",
		metric.WithDescription("Count of reconciliation outcomes by entry point"),
	)

	return &paymentService{
		payments:      deps.Payments,
		orders:        deps.Orders,
		providers:     deps.Providers,
		notifications: deps.Notifications,
		clock: func() time.Time {
			return clock().UTC()
		},
		idgen:           idgen,
		logger:          logger,
		outcomes:        outcomes,
		outcomesEnabled: metricErr == nil,
	}, nil
}

// InitializeForOrder starts a collection for a committed order and records
// the PENDING transaction keyed by the gateway reference.
func (s *paymentService) InitializeForOrder(ctx context.Context, order domain.Order, callbackURL, idempotencyKey string) (PaymentInitialization, error) {
	provider, err := s.providers.Resolve("")
	if err != nil {
		return PaymentInitialization{}, fmt.Errorf("%w: %v", ErrPaymentInitFailed, err)
	}

	reference := provider.GenerateReference(order.ID)
	collection, err := provider.InitializeCollection(ctx, payments.InitializeRequest{
		OrderID:       order.ID,
		Reference:     reference,
		Amount:        order.Total,
		Currency:      domain.Currency,
		CustomerEmail: order.Shipping.Email,
		CallbackURL:   callbackURL,
	})
	if err != nil {
		return PaymentInitialization{}, fmt.Errorf("%w: %v", ErrPaymentInitFailed, err)
	}

	now := s.clock()
	transaction := domain.PaymentTransaction{
		ID:             s.idgen(),
		OrderID:        order.ID,
		Reference:      reference,
		Provider:       provider.Name(),
		Amount:         order.Total,
		Currency:       domain.Currency,
		Status:         domain.PaymentStatusPending,
		CustomerEmail:  order.Shipping.Email,
		IdempotencyKey: idempotencyKey,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.payments.Insert(ctx, transaction); err != nil {
		return PaymentInitialization{}, fmt.Errorf("%w: %v", ErrPaymentInitFailed, err)
	}

	s.logger(ctx, "payments.collection.initialized", map[string]any{
		"orderId":   order.ID,
		"reference": reference,
		"amount":    order.Total,
	})
	return PaymentInitialization{
		Reference:        reference,
		AuthorizationURL: collection.AuthorizationURL,
	}, nil
}

// InitializePayment creates a fresh collection attempt for an order whose
// earlier initialization failed or was abandoned.
func (s *paymentService) InitializePayment(ctx context.Context, cmd InitializePaymentCommand) (PaymentInitialization, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return PaymentInitialization{}, fmt.Errorf("%w: order id is required", ErrPaymentInvalidInput)
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return PaymentInitialization{}, mapRepositoryError(err, ErrOrderNotFound)
	}
	if userID := strings.TrimSpace(cmd.UserID); userID != "" && order.UserID != "" && order.UserID != userID {
		return PaymentInitialization{}, ErrOrderAccessDenied
	}
	if order.Method != domain.PaymentMethodLenco || order.Status != domain.OrderStatusAwaitingPayment {
		return PaymentInitialization{}, fmt.Errorf("%w: order %s is %s", ErrPaymentNotInitializable, order.OrderNumber, order.Status)
	}

	key := fmt.Sprintf("%s-reinit-%d", order.ID, s.clock().UnixMilli())
	return s.InitializeForOrder(ctx, order, cmd.CallbackURL, key)
}

// VerifyPayment is the reconciliation entry point for the client redirect
// callback and the bounded poll loop. It never forces a FAILED terminal
// state: a gateway answer other than success is ambiguous without the
// webhook's explicit failed-collection signal.
func (s *paymentService) VerifyPayment(ctx context.Context, reference string) (ReconcileOutcome, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return ReconcileOutcome{}, fmt.Errorf("%w: reference is required", ErrPaymentInvalidInput)
	}

	transaction, err := s.payments.FindByReference(ctx, reference)
	if err != nil {
		return ReconcileOutcome{}, mapRepositoryError(err, ErrPaymentNotFound)
	}

	// Idempotency guard: a terminal transaction short-circuits before any
	// gateway call or side effect.
	if outcome, done := s.shortCircuit(ctx, transaction, "verify"); done {
		return outcome, nil
	}

	provider, err := s.providers.Resolve(transaction.Provider)
	if err != nil {
		return ReconcileOutcome{}, fmt.Errorf("%w: %v", ErrPaymentInvalidInput, err)
	}
	result, err := provider.Verify(ctx, reference)
	if err != nil {
		return ReconcileOutcome{}, fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}

	switch {
	case result.Succeeded:
		return s.commitSuccess(ctx, transaction, result.Amount, result.Raw, "verify")
	case result.Pending:
		s.recordOutcome(ctx, "verify", "pending")
		return ReconcileOutcome{
			Reference: reference,
			OrderID:   transaction.OrderID,
			Pending:   true,
		}, nil
	default:
		// Not success, not pending. Without the webhook's explicit failure
		// event this is indistinguishable from "still settling": report a
		// generic failure and leave all state untouched so a retry can win.
		s.recordOutcome(ctx, "verify", "unresolved")
		return ReconcileOutcome{
			Reference: reference,
			OrderID:   transaction.OrderID,
			Failed:    true,
		}, nil
	}
}

// HandleWebhook is the reconciliation entry point for the gateway push. The
// signature is verified before the payload is trusted; the failed-collection
// event is the only signal that drives a transaction to FAILED.
func (s *paymentService) HandleWebhook(ctx context.Context, payload []byte, signature string) (ReconcileOutcome, error) {
	provider, err := s.providers.Resolve("")
	if err != nil {
		return ReconcileOutcome{}, fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}
	if !provider.VerifyWebhookSignature(payload, signature) {
		s.recordOutcome(ctx, "webhook", "invalid_signature")
		return ReconcileOutcome{}, ErrPaymentInvalidSignature
	}

	event, err := provider.ParseWebhook(payload)
	if err != nil {
		return ReconcileOutcome{}, fmt.Errorf("%w: %v", ErrPaymentInvalidInput, err)
	}
	if event.Type == payments.WebhookIgnored {
		return ReconcileOutcome{}, nil
	}

	transaction, err := s.payments.FindByReference(ctx, event.Reference)
	if err != nil {
		return ReconcileOutcome{}, mapRepositoryError(err, ErrPaymentNotFound)
	}

	if outcome, done := s.shortCircuit(ctx, transaction, "webhook"); done {
		return outcome, nil
	}

	switch event.Type {
	case payments.WebhookCollectionSucceeded:
		return s.commitSuccess(ctx, transaction, event.Amount, event.Raw, "webhook")
	case payments.WebhookCollectionFailed:
		return s.commitFailure(ctx, transaction, event.Raw)
	default:
		return ReconcileOutcome{}, nil
	}
}

// shortCircuit returns the stored outcome for transactions already in a
// terminal state. No gateway call, no state change, no notification.
func (s *paymentService) shortCircuit(ctx context.Context, transaction domain.PaymentTransaction, entry string) (ReconcileOutcome, bool) {
	switch transaction.Status {
	case domain.PaymentStatusSuccess:
		outcome := ReconcileOutcome{
			Reference:    transaction.Reference,
			OrderID:      transaction.OrderID,
			Succeeded:    true,
			AlreadyFinal: true,
		}
		if order, err := s.orders.FindByID(ctx, transaction.OrderID); err == nil {
			outcome.OrderNumber = order.OrderNumber
		}
		s.recordOutcome(ctx, entry, "short_circuit")
		return outcome, true
	case domain.PaymentStatusFailed:
		s.recordOutcome(ctx, entry, "short_circuit")
		return ReconcileOutcome{
			Reference:    transaction.Reference,
			OrderID:      transaction.OrderID,
			Failed:       true,
			AlreadyFinal: true,
		}, true
	}
	return ReconcileOutcome{}, false
}

// commitSuccess reconciles the reported amount and commits the
// transaction-SUCCESS / order-PAID pair. The conditional write in the
// repository guarantees at most one of any number of racing callers commits;
// the losers read the terminal state back and skip the notification.
func (s *paymentService) commitSuccess(ctx context.Context, transaction domain.PaymentTransaction, reportedAmount int64, raw map[string]any, entry string) (ReconcileOutcome, error) {
	order, err := s.orders.FindByID(ctx, transaction.OrderID)
	if err != nil {
		return ReconcileOutcome{}, mapRepositoryError(err, ErrOrderNotFound)
	}
	if !domain.AmountsMatch(order.Total, reportedAmount) {
		s.recordOutcome(ctx, entry, "amount_mismatch")
		s.logger(ctx, "payments.reconcile.amount_mismatch", map[string]any{
			"reference": transaction.Reference,
			"orderId":   order.ID,
			"expected":  order.Total,
			"reported":  reportedAmount,
		})
		return ReconcileOutcome{}, fmt.Errorf("%w: expected %d, gateway reported %d",
			ErrPaymentAmountMismatch, order.Total, reportedAmount)
	}

	commit, err := s.payments.MarkSucceeded(ctx, transaction.Reference, raw, s.clock())
	if err != nil {
		return ReconcileOutcome{}, mapRepositoryError(err, ErrPaymentNotFound)
	}

	outcome := ReconcileOutcome{
		Reference:    transaction.Reference,
		OrderID:      commit.Order.ID,
		OrderNumber:  commit.Order.OrderNumber,
		Succeeded:    true,
		AlreadyFinal: commit.AlreadyFinal,
	}
	if commit.AlreadyFinal {
		s.recordOutcome(ctx, entry, "short_circuit")
		return outcome, nil
	}

	s.recordOutcome(ctx, entry, "success")
	s.logger(ctx, "payments.reconcile.succeeded", map[string]any{
		"reference":   transaction.Reference,
		"orderId":     commit.Order.ID,
		"orderNumber": commit.Order.OrderNumber,
	})
	s.dispatchConfirmation(ctx, commit.Order)
	return outcome, nil
}

// commitFailure records the explicit failed collection: transaction FAILED,
// order CANCELLED, stock restored, all in one transaction in the repository.
func (s *paymentService) commitFailure(ctx context.Context, transaction domain.PaymentTransaction, raw map[string]any) (ReconcileOutcome, error) {
	commit, err := s.payments.MarkFailed(ctx, transaction.Reference, raw, s.clock())
	if err != nil {
		return ReconcileOutcome{}, mapRepositoryError(err, ErrPaymentNotFound)
	}

	if commit.AlreadyFinal {
		s.recordOutcome(ctx, "webhook", "short_circuit")
		return ReconcileOutcome{
			Reference:    transaction.Reference,
			OrderID:      commit.Order.ID,
			OrderNumber:  commit.Order.OrderNumber,
			Succeeded:    commit.Transaction.Status == domain.PaymentStatusSuccess,
			Failed:       commit.Transaction.Status == domain.PaymentStatusFailed,
			AlreadyFinal: true,
		}, nil
	}

	s.recordOutcome(ctx, "webhook", "failure")
	s.logger(ctx, "payments.reconcile.failed", map[string]any{
		"reference": transaction.Reference,
		"orderId":   commit.Order.ID,
	})
	return ReconcileOutcome{
		Reference:   transaction.Reference,
		OrderID:     commit.Order.ID,
		OrderNumber: commit.Order.OrderNumber,
		Failed:      true,
	}, nil
}

// dispatchConfirmation sends the order confirmation after the payment state
// is committed. Failures are logged and swallowed.
func (s *paymentService) dispatchConfirmation(ctx context.Context, order domain.Order) {
	if s.notifications == nil {
		return
	}
	if err := s.notifications.SendOrderConfirmation(ctx, order); err != nil {
		s.logger(ctx, "payments.notification.failed", map[string]any{
			"orderId": order.ID,
			"error":   err.Error(),
		})
	}
}

func (s *paymentService) recordOutcome(ctx context.Context, entry, outcome string) {
	if !s.outcomesEnabled {
		return
	}
	s.outcomes.Add(ctx, 1, metric.WithAttributes(
		attribute.String("entry", entry),
		attribute.String("outcome", outcome),
	))
}
