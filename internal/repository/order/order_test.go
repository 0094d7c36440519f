package order

import (
	"context"
	"errors"
	"testing"

	"storefront/internal/db/dbtest"
	"storefront/internal/domain"
)

func TestPostgres_InsertOrderAndDeleteCart(t *testing.T) {
	ctx := context.Background()
	pool := dbtest.Pool(t)
	userID := dbtest.InsertCustomer(t, pool, "ana@example.com")
	tee := dbtest.InsertVariant(t, pool, "tee", 500)

	var addrID, cartID string
	if err := pool.QueryRow(ctx, `
INSERT INTO shipping_addresses (user_id, recipient_name, street, number, city, province, postal_code, country, phone, email, tax_id)
VALUES ($1, 'Ana', 'Main', '1', 'Porto', 'Porto', '4000', 'PT', '+351', 'ana@example.com', '123456789')
RETURNING id::text`, userID).Scan(&addrID); err != nil {
		t.Fatalf("insert address: %v", err)
	}
	if err := pool.QueryRow(ctx, `INSERT INTO carts (user_id, shipping_address_id) VALUES ($1, $2) RETURNING id::text`, userID, addrID).Scan(&cartID); err != nil {
		t.Fatalf("insert cart: %v", err)
	}
	if _, err := pool.Exec(ctx, `INSERT INTO cart_lines (cart_id, product_variant_id, quantity, unit_price_cents) VALUES ($1, $2, 2, 500)`, cartID, tee); err != nil {
		t.Fatalf("insert line: %v", err)
	}

	repo := NewPostgres(pool, nil)
	var created *domain.Order
	err := repo.RunInTx(ctx, func(tx Tx) error {
		cart, err := tx.LockCart(ctx, userID)
		if err != nil {
			return err
		}
		addr, err := tx.GetAddress(ctx, *cart.ShippingAddressID)
		if err != nil {
			return err
		}
		created, err = tx.InsertOrder(ctx, domain.NewOrder(*cart, *addr))
		if err != nil {
			return err
		}
		return tx.DeleteCart(ctx, cart.ID)
	})
	if err != nil {
		t.Fatalf("RunInTx: %v", err)
	}

	got, err := repo.GetByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.TotalCents != 1000 || len(got.Lines) != 1 || got.ShippingAddress.City != "Porto" {
		t.Fatalf("unexpected order %+v", got)
	}

	err = repo.RunInTx(ctx, func(tx Tx) error {
		_, err := tx.LockCart(ctx, userID)
		return err
	})
	if !errors.Is(err, domain.ErrCartNotFound) {
		t.Fatalf("expected ErrCartNotFound, got %v", err)
	}

	list, err := repo.ListByUser(ctx, userID)
	if err != nil {
		t.Fatalf("ListByUser: %v", err)
	}
	if len(list) != 1 || len(list[0].Lines) != 1 {
		t.Fatalf("unexpected list %+v", list)
	}
}
