package services

import (
	"errors"
	"fmt"

	"github.com/luxury-beauty/api/internal/repositories"
)

// Sentinel errors surfaced to handlers. Wrapped with fmt.Errorf("%w: ...")
// where detail helps the caller fix the request.
var (
	// ErrCheckoutInvalidInput indicates a malformed or incomplete cart payload.
	ErrCheckoutInvalidInput = errors.New("checkout service: invalid input")
	// ErrProductUnavailable indicates a referenced product or variant no longer resolves.
	ErrProductUnavailable = errors.New("checkout service: product unavailable")
	// ErrInsufficientStock indicates a requested quantity exceeds current stock.
	ErrInsufficientStock = errors.New("checkout service: insufficient stock")

	// ErrPaymentInvalidInput indicates a malformed payment request.
	ErrPaymentInvalidInput = errors.New("payment service: invalid input")
	// ErrPaymentNotFound indicates no transaction exists for the reference.
	ErrPaymentNotFound = errors.New("payment service: transaction not found")
	// ErrPaymentInvalidSignature indicates a webhook signature failed verification.
	ErrPaymentInvalidSignature = errors.New("payment service: invalid webhook signature")
	// ErrPaymentAmountMismatch indicates the gateway-reported amount does not
	// reconcile with the order total. Always fails closed.
	ErrPaymentAmountMismatch = errors.New("payment service: amount mismatch")
	// ErrPaymentInitFailed indicates the gateway rejected or never answered an
	// initialization attempt. The order itself is unaffected.
	ErrPaymentInitFailed = errors.New("payment service: initialization failed")
	// ErrPaymentNotInitializable indicates the order is not awaiting an online payment.
	ErrPaymentNotInitializable = errors.New("payment service: order not awaiting payment")

	// ErrOrderInvalidInput indicates a malformed order request.
	ErrOrderInvalidInput = errors.New("order service: invalid input")
	// ErrOrderNotFound indicates the order does not exist.
	ErrOrderNotFound = errors.New("order service: order not found")
	// ErrOrderAccessDenied indicates the caller does not own the order.
	ErrOrderAccessDenied = errors.New("order service: access denied")
	// ErrOrderInvalidTransition indicates the requested status change is not a
	// legal edge of the fulfillment state machine.
	ErrOrderInvalidTransition = errors.New("order service: invalid status transition")
	// ErrOrderConflict indicates a concurrent mutation won the race.
	ErrOrderConflict = errors.New("order service: conflicting update")

	// ErrServiceUnavailable indicates a transient backend outage.
	ErrServiceUnavailable = errors.New("service temporarily unavailable")
)

// mapRepositoryError converts categorised persistence failures into service
// sentinels, defaulting not-found to the supplied sentinel.
func mapRepositoryError(err error, notFound error) error {
	if err == nil {
		return nil
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", notFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %v", ErrOrderConflict, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
		}
	}
	return err
}
