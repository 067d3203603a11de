package firestore

import (
	"context"
	"errors"

	domain "github.com/luxury-beauty/api/internal/domain"
	platform "github.com/luxury-beauty/api/internal/platform/firestore"
)

// DiscountRepository resolves discount codes. Documents are keyed by the
// upper-cased code so the usage increment at order commit can address them
// without a query.
type DiscountRepository struct {
	base *platform.BaseRepository[discountDocument]
}

// NewDiscountRepository builds a discount repository bound to the provider.
func NewDiscountRepository(provider *platform.Provider) (*DiscountRepository, error) {
	if provider == nil {
		return nil, errors.New("firestore: discount repository requires provider")
	}
	return &DiscountRepository{
		base: platform.NewBaseRepository[discountDocument](provider, discountCodesCollection, nil, nil),
	}, nil
}

// FindByCode fetches a discount code, case-insensitively.
func (r *DiscountRepository) FindByCode(ctx context.Context, code string) (domain.DiscountCode, error) {
	id := discountDocID(code)
	if id == "" {
		return domain.DiscountCode{}, grpcNotFound("discounts.find_by_code", "code is required")
	}
	doc, err := r.base.Get(ctx, id)
	if err != nil {
		return domain.DiscountCode{}, err
	}
	return doc.Data.toDomain(doc.ID), nil
}
