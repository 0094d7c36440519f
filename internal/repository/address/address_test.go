package address

import (
	"context"
	"errors"
	"testing"

	"storefront/internal/db/dbtest"
	"storefront/internal/domain"
)

func TestPostgres_CreateGetList(t *testing.T) {
	ctx := context.Background()
	pool := dbtest.Pool(t)
	userID := dbtest.InsertCustomer(t, pool, "ana@example.com")
	repo := NewPostgres(pool, nil)

	created, err := repo.Create(ctx, domain.ShippingAddress{
		UserID: userID,
		AddressFields: domain.AddressFields{
			RecipientName: "Ana Lima",
			Street:        "Rua Augusta",
			Number:        "12",
			City:          "Lisboa",
			Province:      "Lisboa",
			PostalCode:    "1100-053",
			Country:       "PT",
			Phone:         "+351911111111",
			Email:         "ana@example.com",
			TaxID:         "123456789",
		},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := repo.GetByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.UserID != userID || got.City != "Lisboa" {
		t.Fatalf("unexpected address %+v", got)
	}

	list, err := repo.ListByUser(ctx, userID)
	if err != nil {
		t.Fatalf("ListByUser: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 address, got %d", len(list))
	}

	if _, err := repo.GetByID(ctx, "nope"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
