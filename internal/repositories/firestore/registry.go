package firestore

import (
	"context"
	"errors"

	platform "github.com/luxury-beauty/api/internal/platform/firestore"
	"github.com/luxury-beauty/api/internal/repositories"
)

// Registry bundles every Firestore-backed repository behind the
// repositories.Registry interface.
type Registry struct {
	provider *platform.Provider

	orders        *OrderRepository
	payments      *PaymentRepository
	catalog       *CatalogRepository
	discountCodes *DiscountRepository
	shippingRates *ShippingRateRepository
	auditLogs     *AuditLogRepository
}

// NewRegistry constructs the repository registry over a shared provider.
func NewRegistry(provider *platform.Provider) (*Registry, error) {
	if provider == nil {
		return nil, errors.New("firestore: registry requires provider")
	}

	orders, err := NewOrderRepository(provider)
	if err != nil {
		return nil, err
	}
	payments, err := NewPaymentRepository(provider)
	if err != nil {
		return nil, err
	}
	catalog, err := NewCatalogRepository(provider)
	if err != nil {
		return nil, err
	}
	discounts, err := NewDiscountRepository(provider)
	if err != nil {
		return nil, err
	}
	shipping, err := NewShippingRateRepository(provider)
	if err != nil {
		return nil, err
	}
	audits, err := NewAuditLogRepository(provider)
	if err != nil {
		return nil, err
	}

	return &Registry{
		provider:      provider,
		orders:        orders,
		payments:      payments,
		catalog:       catalog,
		discountCodes: discounts,
		shippingRates: shipping,
		auditLogs:     audits,
	}, nil
}

// Close releases the underlying Firestore client.
func (r *Registry) Close(ctx context.Context) error {
	if r == nil || r.provider == nil {
		return nil
	}
	return r.provider.Close(ctx)
}

// Orders returns the order repository.
func (r *Registry) Orders() repositories.OrderRepository { return r.orders }

// Payments returns the payment transaction repository.
func (r *Registry) Payments() repositories.PaymentRepository { return r.payments }

// Catalog returns the read-only catalog repository.
func (r *Registry) Catalog() repositories.CatalogRepository { return r.catalog }

// DiscountCodes returns the discount code repository.
func (r *Registry) DiscountCodes() repositories.DiscountCodeRepository { return r.discountCodes }

// ShippingRates returns the shipping rate repository.
func (r *Registry) ShippingRates() repositories.ShippingRateRepository { return r.shippingRates }

// AuditLogs returns the audit log repository.
func (r *Registry) AuditLogs() repositories.AuditLogRepository { return r.auditLogs }
