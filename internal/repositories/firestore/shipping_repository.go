package firestore

import (
	"context"
	"errors"

	"cloud.google.com/go/firestore"

	domain "github.com/luxury-beauty/api/internal/domain"
	platform "github.com/luxury-beauty/api/internal/platform/firestore"
)

// ShippingRateRepository resolves flat-rate shipping prices per region.
type ShippingRateRepository struct {
	base *platform.BaseRepository[shippingRateDocument]
}

// NewShippingRateRepository builds a shipping rate repository bound to the provider.
func NewShippingRateRepository(provider *platform.Provider) (*ShippingRateRepository, error) {
	if provider == nil {
		return nil, errors.New("firestore: shipping rate repository requires provider")
	}
	return &ShippingRateRepository{
		base: platform.NewBaseRepository[shippingRateDocument](provider, shippingRatesCollection, nil, nil),
	}, nil
}

// FindByID fetches a shipping rate by document id.
func (r *ShippingRateRepository) FindByID(ctx context.Context, rateID string) (domain.ShippingRate, error) {
	doc, err := r.base.Get(ctx, rateID)
	if err != nil {
		return domain.ShippingRate{}, err
	}
	return doc.Data.toDomain(doc.ID), nil
}

// FindActiveByRegion returns the active rate for a region. When no active
// rate exists the error reports not-found and callers degrade to zero
// shipping.
func (r *ShippingRateRepository) FindActiveByRegion(ctx context.Context, region domain.Region) (domain.ShippingRate, error) {
	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("region", "==", string(region)).Where("active", "==", true).Limit(1)
	})
	if err != nil {
		return domain.ShippingRate{}, err
	}
	if len(docs) == 0 {
		return domain.ShippingRate{}, grpcNotFound("shipping_rates.find_active", "no active rate for region")
	}
	return docs[0].Data.toDomain(docs[0].ID), nil
}
