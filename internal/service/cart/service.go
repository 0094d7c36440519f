// Package cart serves the shopper's cart whatever their sign-in state. Guest
// and server carts share the Cart interface and Resolve picks one from the
// caller's Identity.
package cart

import (
	"context"
	"errors"
	"io"
	"log"
	"strings"

	"storefront/internal/domain"
	"storefront/internal/guestcart"
	cartrepo "storefront/internal/repository/cart"
)

type Kind string

const (
	KindGuest  Kind = "guest"
	KindServer Kind = "server"
)

// Identity is the caller as established by authentication. UserID wins when
// both are set.
type Identity struct {
	UserID      string
	AnonymousID string
}

// Cart is the capability shared by guest and server carts.
type Cart interface {
	Kind() Kind
	Lines(ctx context.Context) ([]domain.CartLine, error)
	AddLine(ctx context.Context, v domain.ProductVariant, quantity int) error
	UpdateQuantity(ctx context.Context, variantID string, quantity int) error
	RemoveLine(ctx context.Context, variantID string) error
	Clear(ctx context.Context) error
}

// View is a cart with its derived totals.
type View struct {
	Kind              Kind              `json:"kind"`
	CartID            string            `json:"cartId,omitempty"`
	AnonymousID       string            `json:"anonymousId,omitempty"`
	ShippingAddressID *string           `json:"shippingAddressId,omitempty"`
	Lines             []domain.CartLine `json:"lineItems"`
	TotalCents        int64             `json:"totalInCents"`
	TotalItems        int               `json:"totalItems"`
}

type variantLookup interface {
	GetByID(ctx context.Context, id string) (*domain.ProductVariant, error)
}

type Service struct {
	repo      cartrepo.Repository
	variants  variantLookup
	guests    guestcart.Storage
	guestOpts []guestcart.Option
	logger    *log.Logger
}

func New(repo cartrepo.Repository, variants variantLookup, guests guestcart.Storage, logger *log.Logger, opts ...guestcart.Option) *Service {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Service{repo: repo, variants: variants, guests: guests, guestOpts: opts, logger: logger}
}

// Resolve returns the server cart of a signed-in user or the guest cart of
// an anonymous session.
func (s *Service) Resolve(ctx context.Context, id Identity) (Cart, error) {
	switch {
	case strings.TrimSpace(id.UserID) != "":
		return &serverCart{repo: s.repo, userID: id.UserID}, nil
	case strings.TrimSpace(id.AnonymousID) != "":
		store, err := s.OpenGuest(ctx, id.AnonymousID)
		if err != nil {
			return nil, err
		}
		return &guestCart{store: store}, nil
	default:
		return nil, domain.ErrUnauthorized
	}
}

// OpenGuest opens the guest cart of an anonymous session.
func (s *Service) OpenGuest(ctx context.Context, anonymousID string) (*guestcart.Store, error) {
	opts := append([]guestcart.Option{guestcart.WithAnonymousID(anonymousID)}, s.guestOpts...)
	return guestcart.Open(ctx, s.guests, anonymousID, opts...)
}

func (s *Service) Get(ctx context.Context, id Identity) (*View, error) {
	c, err := s.Resolve(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.view(ctx, c)
}

// Add puts quantity units of a variant in the cart at its current price.
func (s *Service) Add(ctx context.Context, id Identity, variantID string, quantity int) (*View, error) {
	if quantity <= 0 {
		return nil, domain.ErrInvalidQuantity
	}
	v, err := s.variants.GetByID(ctx, strings.TrimSpace(variantID))
	if err != nil {
		return nil, err
	}
	return s.apply(ctx, id, func(c Cart) error { return c.AddLine(ctx, *v, quantity) })
}

func (s *Service) SetQuantity(ctx context.Context, id Identity, variantID string, quantity int) (*View, error) {
	return s.apply(ctx, id, func(c Cart) error { return c.UpdateQuantity(ctx, variantID, quantity) })
}

func (s *Service) Remove(ctx context.Context, id Identity, variantID string) (*View, error) {
	return s.apply(ctx, id, func(c Cart) error { return c.RemoveLine(ctx, variantID) })
}

func (s *Service) Clear(ctx context.Context, id Identity) (*View, error) {
	return s.apply(ctx, id, func(c Cart) error { return c.Clear(ctx) })
}

// LineInput is a client-supplied line; its price is taken from the catalog.
type LineInput struct {
	ProductVariantID string `json:"productVariantId"`
	Quantity         int    `json:"quantity"`
}

// PriceLines captures the current catalog price of each input line. Unknown
// variants and non-positive quantities are dropped.
func (s *Service) PriceLines(ctx context.Context, in []LineInput) ([]domain.CartLine, error) {
	out := make([]domain.CartLine, 0, len(in))
	for _, l := range in {
		if l.Quantity <= 0 {
			continue
		}
		v, err := s.variants.GetByID(ctx, strings.TrimSpace(l.ProductVariantID))
		if errors.Is(err, domain.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, domain.CartLine{
			ProductVariantID: v.ID,
			Quantity:         l.Quantity,
			UnitPriceCents:   v.PriceCents,
			Snapshot:         v.Snapshot(),
		})
	}
	return out, nil
}

func (s *Service) apply(ctx context.Context, id Identity, fn func(c Cart) error) (*View, error) {
	c, err := s.Resolve(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := fn(c); err != nil {
		s.logger.Printf("cart: %s cart user_id=%s anonymous_id=%s error=%v", c.Kind(), id.UserID, id.AnonymousID, err)
		return nil, err
	}
	return s.view(ctx, c)
}

func (s *Service) view(ctx context.Context, c Cart) (*View, error) {
	v := &View{Kind: c.Kind()}
	switch t := c.(type) {
	case *serverCart:
		cart, err := t.load(ctx)
		if err != nil {
			return nil, err
		}
		if cart != nil {
			v.CartID = cart.ID
			v.ShippingAddressID = cart.ShippingAddressID
			v.Lines = cart.Lines
		}
	case *guestCart:
		v.AnonymousID = t.store.AnonymousID()
		v.Lines = t.store.Lines()
	}
	if v.Lines == nil {
		v.Lines = []domain.CartLine{}
	}
	v.TotalCents = domain.LinesTotalCents(v.Lines)
	v.TotalItems = domain.LinesTotalItems(v.Lines)
	return v, nil
}
