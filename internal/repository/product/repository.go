package product

import (
	"context"

	"storefront/internal/domain"
)

// Repository reads and writes purchasable product variants.
type Repository interface {
	List(ctx context.Context) ([]domain.ProductVariant, error)
	GetByID(ctx context.Context, id string) (*domain.ProductVariant, error)
	Upsert(ctx context.Context, v domain.ProductVariant) (*domain.ProductVariant, error)
}
