// Package order converts a server cart into an immutable order.
//
// Finalize is one all-or-nothing transaction: it locks the user's cart,
// checks it has lines and a bound address, writes the order with a copy of
// the address and every line, and deletes the cart. A second call after
// success finds no cart and fails with domain.ErrCartNotFound, which is what
// makes a checkout produce exactly one order.
package order

import (
	"context"
	"errors"
	"io"
	"log"
	"strings"

	"storefront/internal/domain"
	"storefront/internal/payment"
	orderrepo "storefront/internal/repository/order"
)

type Service struct {
	repo     orderrepo.Repository
	notifier payment.Notifier
	logger   *log.Logger
}

func New(repo orderrepo.Repository, notifier payment.Notifier, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	if notifier == nil {
		notifier = payment.NopNotifier{}
	}
	return &Service{repo: repo, notifier: notifier, logger: logger}
}

// Finalize turns the cart of userID into an order. Preconditions are checked
// inside the transaction that writes the order. Store failures come back
// wrapped in domain.ErrTransactionFailed and can be retried from the top.
func (s *Service) Finalize(ctx context.Context, userID string) (*domain.Order, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, domain.ErrUnauthorized
	}

	var created *domain.Order
	err := s.repo.RunInTx(ctx, func(tx orderrepo.Tx) error {
		cart, err := tx.LockCart(ctx, userID)
		if err != nil {
			return err
		}
		if len(cart.Lines) == 0 {
			return domain.ErrEmptyCart
		}
		if !cart.HasShippingAddress() {
			return domain.ErrMissingShippingAddress
		}
		addr, err := tx.GetAddress(ctx, *cart.ShippingAddressID)
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrMissingShippingAddress
		}
		if err != nil {
			return err
		}
		if addr.UserID != cart.UserID {
			return domain.ErrForbidden
		}

		created, err = tx.InsertOrder(ctx, domain.NewOrder(*cart, *addr))
		if err != nil {
			return err
		}
		return tx.DeleteCart(ctx, cart.ID)
	})
	if err != nil {
		s.logger.Printf("order: finalize user_id=%s error=%v", userID, err)
		return nil, domain.AsTransactionFailure(err)
	}
	s.logger.Printf("order: finalized order_id=%s user_id=%s total_cents=%d lines=%d",
		created.ID, userID, created.TotalCents, len(created.Lines))

	// The order stands whatever the payment side does with it.
	if err := s.notifier.OrderFinalized(ctx, *created); err != nil {
		s.logger.Printf("order: notify payment order_id=%s error=%v", created.ID, err)
	}
	return created, nil
}

// Get returns an order owned by userID.
func (s *Service) Get(ctx context.Context, userID, orderID string) (*domain.Order, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, domain.ErrUnauthorized
	}
	o, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.UserID != userID {
		// Other users' orders are reported as missing.
		return nil, domain.ErrNotFound
	}
	return o, nil
}

// List returns the orders of userID, newest first.
func (s *Service) List(ctx context.Context, userID string) ([]domain.Order, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, domain.ErrUnauthorized
	}
	return s.repo.ListByUser(ctx, userID)
}
