package firestore

import (
	"context"
	"errors"
	"strings"

	domain "github.com/luxury-beauty/api/internal/domain"
	platform "github.com/luxury-beauty/api/internal/platform/firestore"
)

// CatalogRepository is the read-only product view consumed at checkout.
type CatalogRepository struct {
	base *platform.BaseRepository[productDocument]
}

// NewCatalogRepository builds a catalog repository bound to the provider.
func NewCatalogRepository(provider *platform.Provider) (*CatalogRepository, error) {
	if provider == nil {
		return nil, errors.New("firestore: catalog repository requires provider")
	}
	return &CatalogRepository{
		base: platform.NewBaseRepository[productDocument](provider, productsCollection, nil, nil),
	}, nil
}

// FindProducts resolves products with their variants by id. Missing ids are
// absent from the result map; the caller decides whether that is an error.
func (r *CatalogRepository) FindProducts(ctx context.Context, productIDs []string) (map[string]domain.Product, error) {
	products := make(map[string]domain.Product, len(productIDs))
	seen := make(map[string]struct{}, len(productIDs))
	for _, id := range productIDs {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}

		doc, err := r.base.Get(ctx, id)
		if err != nil {
			if isNotFound(err) {
				continue
			}
			return nil, err
		}
		products[id] = doc.Data.toDomain(doc.ID)
	}
	return products, nil
}

func isNotFound(err error) bool {
	var repoErr *platform.Error
	return errors.As(err, &repoErr) && repoErr.IsNotFound()
}
