package cart

import (
	"context"

	"storefront/internal/domain"
)

// Repository reads server carts and runs cart mutations inside a transaction.
type Repository interface {
	GetByUser(ctx context.Context, userID string) (*domain.Cart, error)
	GetByID(ctx context.Context, id string) (*domain.Cart, error)
	// RunInTx commits when fn returns nil and rolls back otherwise.
	RunInTx(ctx context.Context, fn func(tx Tx) error) error
}

// Tx is the set of cart operations available inside one transaction. Lock
// methods hold the cart row until the transaction ends.
type Tx interface {
	LockCart(ctx context.Context, userID string) (*domain.Cart, error)
	LockCartByID(ctx context.Context, cartID string) (*domain.Cart, error)
	LockOrCreateCart(ctx context.Context, userID string) (*domain.Cart, error)
	// AddToLine adds line.Quantity to the existing line for the variant, or
	// inserts the line with its price snapshot when there is none.
	AddToLine(ctx context.Context, cartID string, line domain.CartLine) error
	// SetLineQuantity overwrites a line quantity; zero or less deletes it.
	SetLineQuantity(ctx context.Context, cartID, variantID string, quantity int) error
	RemoveLine(ctx context.Context, cartID, variantID string) error
	SetShippingAddress(ctx context.Context, cartID string, addressID *string) error
	// RecordMerge stores a merge attempt token and reports false when the
	// same token was already recorded for the user.
	RecordMerge(ctx context.Context, userID, token string) (bool, error)
	DeleteCart(ctx context.Context, cartID string) error
	Load(ctx context.Context, cartID string) (*domain.Cart, error)
}
