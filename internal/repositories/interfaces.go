package repositories

import (
	"context"
	"time"

	domain "github.com/luxury-beauty/api/internal/domain"
)

// Registry exposes typed repository accessors and lifecycle hooks for dependency injection.
type Registry interface {
	Close(ctx context.Context) error

	Orders() OrderRepository
	Payments() PaymentRepository
	Catalog() CatalogRepository
	DiscountCodes() DiscountCodeRepository
	ShippingRates() ShippingRateRepository
	AuditLogs() AuditLogRepository
}

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// OrderCreateOptions carries the side effects committed together with a new order.
type OrderCreateOptions struct {
	// DiscountCodeID, when set, has its used-count incremented in the same
	// transaction that persists the order.
	DiscountCodeID string
}

// OrderListFilter narrows order listings.
type OrderListFilter struct {
	UserID string
	Status domain.OrderStatus
	Pager  domain.Pagination
}

// OrderTransition describes a conditional status change. The write only
// commits when the stored status still equals From.
type OrderTransition struct {
	From           domain.OrderStatus
	To             domain.OrderStatus
	TrackingNumber string
	At             time.Time
}

// OrderRepository persists order aggregates. Creation and transitions are
// transactional: order, items, stock counters and discount usage commit
// together or not at all.
type OrderRepository interface {
	// Create persists the order and its items, decrements stock per line and
	// increments discount usage inside one transaction. The store re-checks
	// stock and rejects any decrement that would cross zero.
	Create(ctx context.Context, order domain.Order, opts OrderCreateOptions) (domain.Order, error)
	FindByID(ctx context.Context, orderID string) (domain.Order, error)
	FindByNumber(ctx context.Context, orderNumber string) (domain.Order, error)
	List(ctx context.Context, filter OrderListFilter) ([]domain.Order, string, error)
	// Transition applies a conditional status change, stamps the matching
	// lifecycle timestamp and, when To is CANCELLED, restores stock for every
	// order item in the same transaction.
	Transition(ctx context.Context, orderID string, update OrderTransition) (domain.Order, error)
}

// PaymentCommit is the outcome of a terminal payment write. AlreadyFinal is
// set when a concurrent caller won the race and the stored state was simply
// read back, making repeated calls side-effect free.
type PaymentCommit struct {
	Transaction  domain.PaymentTransaction
	Order        domain.Order
	AlreadyFinal bool
}

// PaymentRepository persists payment transactions keyed by their gateway
// reference. Terminal writes are conditional on the stored status still being
// PENDING so that racing reconciliation callers commit at most once.
type PaymentRepository interface {
	Insert(ctx context.Context, transaction domain.PaymentTransaction) error
	FindByReference(ctx context.Context, reference string) (domain.PaymentTransaction, error)
	ListByOrder(ctx context.Context, orderID string) ([]domain.PaymentTransaction, error)
	// MarkSucceeded flips the transaction to SUCCESS and the order to PAID in
	// one transaction. If the transaction is already SUCCESS the stored
	// outcome is returned with AlreadyFinal set and nothing is written.
	MarkSucceeded(ctx context.Context, reference string, raw map[string]any, at time.Time) (PaymentCommit, error)
	// MarkFailed flips the transaction to FAILED, the order to CANCELLED and
	// restores stock for every order item in one transaction. A transaction
	// already in a terminal state is returned with AlreadyFinal set.
	MarkFailed(ctx context.Context, reference string, raw map[string]any, at time.Time) (PaymentCommit, error)
}

// CatalogRepository is the read-only view of products the order core consumes.
type CatalogRepository interface {
	// FindProducts resolves products with their variants by id. Missing ids
	// are simply absent from the result map.
	FindProducts(ctx context.Context, productIDs []string) (map[string]domain.Product, error)
}

// DiscountCodeRepository resolves promotional codes for evaluation.
type DiscountCodeRepository interface {
	FindByCode(ctx context.Context, code string) (domain.DiscountCode, error)
}

// ShippingRateRepository resolves flat-rate shipping prices.
type ShippingRateRepository interface {
	FindByID(ctx context.Context, rateID string) (domain.ShippingRate, error)
	// FindActiveByRegion returns the active rate for a region. Not-found is a
	// RepositoryError with IsNotFound; callers degrade to zero shipping.
	FindActiveByRegion(ctx context.Context, region domain.Region) (domain.ShippingRate, error)
}

// AuditLogRepository appends immutable records of staff actions.
type AuditLogRepository interface {
	Append(ctx context.Context, record domain.AuditRecord) error
}
