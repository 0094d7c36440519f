// Package dbtest connects integration tests to the database named by
// TEST_DB_DSN. Tests are skipped when the variable is unset.
package dbtest

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"

	"storefront/internal/db"
	"storefront/internal/migrate"
)

// Pool returns a migrated pool with every table truncated. The pool is
// closed when the test ends.
func Pool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("TEST_DB_DSN")
	if dsn == "" {
		t.Skip("TEST_DB_DSN not set")
	}
	ctx := context.Background()
	pool, err := db.Connect(ctx, dsn, db.WithMaxConns(8))
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	t.Cleanup(pool.Close)

	if err := migrate.Apply(ctx, pool); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	if _, err := pool.Exec(ctx, `
TRUNCATE order_lines, orders, cart_merges, cart_lines, carts, shipping_addresses,
         product_variants, tokens, customers
RESTART IDENTITY CASCADE`); err != nil {
		t.Fatalf("truncate tables: %v", err)
	}
	return pool
}

// InsertCustomer adds a customer row and returns its id.
func InsertCustomer(t *testing.T, pool *pgxpool.Pool, email string) string {
	t.Helper()
	var id string
	err := pool.QueryRow(context.Background(),
		`INSERT INTO customers (email, password_hash) VALUES ($1, 'x') RETURNING id::text`, email).Scan(&id)
	if err != nil {
		t.Fatalf("insert customer: %v", err)
	}
	return id
}

// InsertVariant adds a product variant row and returns its id.
func InsertVariant(t *testing.T, pool *pgxpool.Pool, key string, priceCents int64) string {
	t.Helper()
	var id string
	err := pool.QueryRow(context.Background(), `
INSERT INTO product_variants (key, sku, product_name, variant_name, price_cents)
VALUES ($1, upper($1), 'Product ' || $1, 'Default', $2)
RETURNING id::text`, key, priceCents).Scan(&id)
	if err != nil {
		t.Fatalf("insert variant: %v", err)
	}
	return id
}
