package order

import (
	"context"

	"storefront/internal/domain"
)

// Repository reads orders and runs finalization inside one transaction.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	ListByUser(ctx context.Context, userID string) ([]domain.Order, error)
	// RunInTx commits when fn returns nil and rolls back otherwise.
	RunInTx(ctx context.Context, fn func(tx Tx) error) error
}

// Tx covers the reads and writes of a cart to order conversion.
type Tx interface {
	LockCart(ctx context.Context, userID string) (*domain.Cart, error)
	GetAddress(ctx context.Context, id string) (*domain.ShippingAddress, error)
	InsertOrder(ctx context.Context, o domain.Order) (*domain.Order, error)
	DeleteCart(ctx context.Context, cartID string) error
}
