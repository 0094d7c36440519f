// Package address manages shipping addresses and binds them to server carts.
package address

import (
	"context"
	"errors"
	"io"
	"log"
	"net/mail"
	"strings"
	"unicode"

	"storefront/internal/domain"
	addressrepo "storefront/internal/repository/address"
	cartrepo "storefront/internal/repository/cart"
)

type Service struct {
	repo   addressrepo.Repository
	carts  cartrepo.Repository
	logger *log.Logger
}

func New(repo addressrepo.Repository, carts cartrepo.Repository, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Service{repo: repo, carts: carts, logger: logger}
}

// CreateInput is the address form as submitted by the shopper.
type CreateInput struct {
	RecipientName string `json:"recipientName"`
	Street        string `json:"street"`
	Number        string `json:"number"`
	Complement    string `json:"complement"`
	City          string `json:"city"`
	Province      string `json:"province"`
	PostalCode    string `json:"postalCode"`
	Country       string `json:"country"`
	Phone         string `json:"phone"`
	Email         string `json:"email"`
	TaxID         string `json:"taxId"`
}

func (in CreateInput) fields() domain.AddressFields {
	return domain.AddressFields{
		RecipientName: strings.TrimSpace(in.RecipientName),
		Street:        strings.TrimSpace(in.Street),
		Number:        strings.TrimSpace(in.Number),
		Complement:    strings.TrimSpace(in.Complement),
		City:          strings.TrimSpace(in.City),
		Province:      strings.TrimSpace(in.Province),
		PostalCode:    strings.TrimSpace(in.PostalCode),
		Country:       strings.TrimSpace(in.Country),
		Phone:         strings.TrimSpace(in.Phone),
		Email:         strings.ToLower(strings.TrimSpace(in.Email)),
		TaxID:         strings.TrimSpace(in.TaxID),
	}
}

func validate(f domain.AddressFields) error {
	if _, err := mail.ParseAddress(f.Email); err != nil {
		return domain.Validationf("invalid email")
	}
	required := []struct{ name, value string }{
		{"recipientName", f.RecipientName},
		{"street", f.Street},
		{"number", f.Number},
		{"city", f.City},
		{"province", f.Province},
		{"country", f.Country},
	}
	for _, r := range required {
		if r.value == "" {
			return domain.Validationf("%s required", r.name)
		}
	}
	if len(f.TaxID) < 9 {
		return domain.Validationf("invalid taxId")
	}
	if countDigits(f.Phone) < 9 {
		return domain.Validationf("invalid phone")
	}
	if len(f.PostalCode) < 4 {
		return domain.Validationf("invalid postalCode")
	}
	return nil
}

func countDigits(s string) int {
	n := 0
	for _, r := range s {
		if unicode.IsDigit(r) {
			n++
		}
	}
	return n
}

// Create validates and stores an address owned by userID.
func (s *Service) Create(ctx context.Context, userID string, in CreateInput) (*domain.ShippingAddress, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, domain.ErrUnauthorized
	}
	f := in.fields()
	if err := validate(f); err != nil {
		return nil, err
	}
	return s.repo.Create(ctx, domain.ShippingAddress{UserID: userID, AddressFields: f})
}

// List returns the addresses of userID, newest first.
func (s *Service) List(ctx context.Context, userID string) ([]domain.ShippingAddress, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, domain.ErrUnauthorized
	}
	return s.repo.ListByUser(ctx, userID)
}

// Bind sets the shipping address of a cart. The address must belong to the
// cart owner.
func (s *Service) Bind(ctx context.Context, cartID, addressID string) (*domain.Cart, error) {
	return s.bind(ctx, addressID, func(tx cartrepo.Tx) (*domain.Cart, error) {
		return tx.LockCartByID(ctx, cartID)
	})
}

// BindForUser binds addressID to the open cart of userID.
func (s *Service) BindForUser(ctx context.Context, userID, addressID string) (*domain.Cart, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, domain.ErrUnauthorized
	}
	return s.bind(ctx, addressID, func(tx cartrepo.Tx) (*domain.Cart, error) {
		return tx.LockCart(ctx, userID)
	})
}

func (s *Service) bind(ctx context.Context, addressID string, lock func(tx cartrepo.Tx) (*domain.Cart, error)) (*domain.Cart, error) {
	var bound *domain.Cart
	err := s.carts.RunInTx(ctx, func(tx cartrepo.Tx) error {
		cart, err := lock(tx)
		if err != nil {
			return err
		}
		addr, err := s.repo.GetByID(ctx, addressID)
		if err != nil {
			return err
		}
		if addr.UserID != cart.UserID {
			return domain.ErrForbidden
		}
		if err := tx.SetShippingAddress(ctx, cart.ID, &addr.ID); err != nil {
			return err
		}
		bound, err = tx.Load(ctx, cart.ID)
		return err
	})
	if err != nil {
		if errors.Is(err, domain.ErrForbidden) {
			s.logger.Printf("address: bind address_id=%s rejected: foreign owner", addressID)
		}
		return nil, domain.AsTransactionFailure(err)
	}
	s.logger.Printf("address: bound address_id=%s cart_id=%s", addressID, bound.ID)
	return bound, nil
}
