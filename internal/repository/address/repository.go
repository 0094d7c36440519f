package address

import (
	"context"

	"storefront/internal/domain"
)

// Repository stores shipping addresses owned by customers.
type Repository interface {
	Create(ctx context.Context, a domain.ShippingAddress) (*domain.ShippingAddress, error)
	GetByID(ctx context.Context, id string) (*domain.ShippingAddress, error)
	ListByUser(ctx context.Context, userID string) ([]domain.ShippingAddress, error)
}
