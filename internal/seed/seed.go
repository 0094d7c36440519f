package seed

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"
)

type variantSeed struct {
	Key         string
	SKU         string
	ProductName string
	VariantName string
	PriceCents  int64
}

// DemoEmail and DemoPassword sign in the seeded demo customer.
const (
	DemoEmail    = "demo@example.com"
	DemoPassword = "Demo12345"
)

// Apply inserts basic seed data for manual testing. It is idempotent via ON CONFLICT.
func Apply(ctx context.Context, pool *pgxpool.Pool) error {
	variants := []variantSeed{
		{Key: "demo-tee-m", SKU: "SKU-DEMO-TEE-M", ProductName: "Demo T-Shirt", VariantName: "M", PriceCents: 1999},
		{Key: "demo-tee-l", SKU: "SKU-DEMO-TEE-L", ProductName: "Demo T-Shirt", VariantName: "L", PriceCents: 1999},
		{Key: "demo-mug", SKU: "SKU-DEMO-MUG", ProductName: "Demo Mug", PriceCents: 1299},
	}

	for _, v := range variants {
		if err := upsertVariant(ctx, pool, v); err != nil {
			return fmt.Errorf("upsert variant %s: %w", v.Key, err)
		}
	}

	if err := ensureCustomer(ctx, pool, DemoEmail, DemoPassword); err != nil {
		return fmt.Errorf("ensure demo customer: %w", err)
	}
	return nil
}

func upsertVariant(ctx context.Context, pool *pgxpool.Pool, v variantSeed) error {
	const q = `
INSERT INTO product_variants (key, sku, product_name, variant_name, price_cents)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (key) DO UPDATE
SET sku = EXCLUDED.sku,
    product_name = EXCLUDED.product_name,
    variant_name = EXCLUDED.variant_name,
    price_cents = EXCLUDED.price_cents
`
	_, err := pool.Exec(ctx, q, v.Key, v.SKU, v.ProductName, v.VariantName, v.PriceCents)
	return err
}

func ensureCustomer(ctx context.Context, pool *pgxpool.Pool, email, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	const q = `
INSERT INTO customers (email, password_hash, first_name, last_name)
VALUES ($1, $2, 'Demo', 'Shopper')
ON CONFLICT DO NOTHING
`
	_, err = pool.Exec(ctx, q, email, string(hash))
	return err
}
