package cart

import (
	"context"
	"errors"

	"storefront/internal/domain"
	"storefront/internal/guestcart"
	cartrepo "storefront/internal/repository/cart"
)

type guestCart struct {
	store *guestcart.Store
}

func (g *guestCart) Kind() Kind { return KindGuest }

func (g *guestCart) Lines(context.Context) ([]domain.CartLine, error) {
	return g.store.Lines(), nil
}

func (g *guestCart) AddLine(ctx context.Context, v domain.ProductVariant, quantity int) error {
	return g.store.AddItem(ctx, v, quantity)
}

func (g *guestCart) UpdateQuantity(ctx context.Context, variantID string, quantity int) error {
	return g.store.UpdateQuantity(ctx, variantID, quantity)
}

func (g *guestCart) RemoveLine(ctx context.Context, variantID string) error {
	return g.store.RemoveItem(ctx, variantID)
}

func (g *guestCart) Clear(ctx context.Context) error {
	return g.store.Clear(ctx)
}

// serverCart never stores a zero line: setting a quantity of zero or less
// removes the line. Updates of absent lines are no-ops, as in the guest cart.
type serverCart struct {
	repo   cartrepo.Repository
	userID string
}

func (c *serverCart) Kind() Kind { return KindServer }

// load returns nil without error when the user has no cart yet.
func (c *serverCart) load(ctx context.Context) (*domain.Cart, error) {
	cart, err := c.repo.GetByUser(ctx, c.userID)
	if errors.Is(err, domain.ErrCartNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, domain.AsTransactionFailure(err)
	}
	return cart, nil
}

func (c *serverCart) Lines(ctx context.Context) ([]domain.CartLine, error) {
	cart, err := c.load(ctx)
	if err != nil || cart == nil {
		return nil, err
	}
	return cart.Lines, nil
}

func (c *serverCart) AddLine(ctx context.Context, v domain.ProductVariant, quantity int) error {
	if quantity <= 0 {
		return domain.ErrInvalidQuantity
	}
	err := c.repo.RunInTx(ctx, func(tx cartrepo.Tx) error {
		cart, err := tx.LockOrCreateCart(ctx, c.userID)
		if err != nil {
			return err
		}
		return tx.AddToLine(ctx, cart.ID, domain.CartLine{
			ProductVariantID: v.ID,
			Quantity:         quantity,
			UnitPriceCents:   v.PriceCents,
			Snapshot:         v.Snapshot(),
		})
	})
	return domain.AsTransactionFailure(err)
}

func (c *serverCart) UpdateQuantity(ctx context.Context, variantID string, quantity int) error {
	return c.onExisting(ctx, func(tx cartrepo.Tx, cart *domain.Cart) error {
		return tx.SetLineQuantity(ctx, cart.ID, variantID, quantity)
	})
}

func (c *serverCart) RemoveLine(ctx context.Context, variantID string) error {
	return c.onExisting(ctx, func(tx cartrepo.Tx, cart *domain.Cart) error {
		return tx.RemoveLine(ctx, cart.ID, variantID)
	})
}

func (c *serverCart) Clear(ctx context.Context) error {
	return c.onExisting(ctx, func(tx cartrepo.Tx, cart *domain.Cart) error {
		return tx.DeleteCart(ctx, cart.ID)
	})
}

// onExisting runs fn on the locked cart, treating a missing cart or line as
// nothing to do.
func (c *serverCart) onExisting(ctx context.Context, fn func(tx cartrepo.Tx, cart *domain.Cart) error) error {
	err := c.repo.RunInTx(ctx, func(tx cartrepo.Tx) error {
		cart, err := tx.LockCart(ctx, c.userID)
		if err != nil {
			return err
		}
		return fn(tx, cart)
	})
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	return domain.AsTransactionFailure(err)
}
