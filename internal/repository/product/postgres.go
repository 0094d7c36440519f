package product

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"storefront/internal/domain"
)

type postgresRepo struct {
	pool   *pgxpool.Pool
	logger *log.Logger
}

func NewPostgres(pool *pgxpool.Pool, logger *log.Logger) Repository {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &postgresRepo{pool: pool, logger: logger}
}

const variantColumns = `id::text, key, sku, product_name, variant_name, price_cents, image_url, created_at`

func scanVariant(row pgx.Row) (domain.ProductVariant, error) {
	var v domain.ProductVariant
	err := row.Scan(&v.ID, &v.Key, &v.SKU, &v.ProductName, &v.VariantName, &v.PriceCents, &v.ImageURL, &v.CreatedAt)
	return v, err
}

func (r *postgresRepo) List(ctx context.Context) ([]domain.ProductVariant, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+variantColumns+` FROM product_variants ORDER BY product_name, variant_name`)
	if err != nil {
		r.logger.Printf("product repo: list error=%v", err)
		return nil, err
	}
	defer rows.Close()

	var result []domain.ProductVariant
	for rows.Next() {
		v, err := scanVariant(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, v)
	}
	if err := rows.Err(); err != nil {
		r.logger.Printf("product repo: list rows error=%v", err)
		return nil, err
	}
	r.logger.Printf("product repo: list count=%d", len(result))
	return result, nil
}

func (r *postgresRepo) GetByID(ctx context.Context, id string) (*domain.ProductVariant, error) {
	v, err := scanVariant(r.pool.QueryRow(ctx, `SELECT `+variantColumns+` FROM product_variants WHERE id = $1`, id))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.Is(err, pgx.ErrNoRows) || (errors.As(err, &pgErr) && pgErr.Code == "22P02") {
			r.logger.Printf("product repo: get id=%s not found", id)
			return nil, domain.ErrNotFound
		}
		r.logger.Printf("product repo: get id=%s error=%v", id, err)
		return nil, err
	}
	return &v, nil
}

func (r *postgresRepo) Upsert(ctx context.Context, v domain.ProductVariant) (*domain.ProductVariant, error) {
	const q = `
INSERT INTO product_variants (id, key, sku, product_name, variant_name, price_cents, image_url)
VALUES (COALESCE(NULLIF($1, '')::uuid, gen_random_uuid()), $2, $3, $4, $5, $6, $7)
ON CONFLICT (key) DO UPDATE SET
    sku = EXCLUDED.sku,
    product_name = EXCLUDED.product_name,
    variant_name = EXCLUDED.variant_name,
    price_cents = EXCLUDED.price_cents,
    image_url = EXCLUDED.image_url
RETURNING ` + variantColumns
	res, err := scanVariant(r.pool.QueryRow(ctx, q, v.ID, v.Key, v.SKU, v.ProductName, v.VariantName, v.PriceCents, v.ImageURL))
	if err != nil {
		r.logger.Printf("product repo: upsert key=%s error=%v", v.Key, err)
		return nil, err
	}
	if v.ID != "" && res.ID != v.ID {
		return nil, fmt.Errorf("product repo: id mismatch for key=%s existing_id=%s import_id=%s", v.Key, res.ID, v.ID)
	}
	r.logger.Printf("product repo: upserted key=%s id=%s", res.Key, res.ID)
	return &res, nil
}
