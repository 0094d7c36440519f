package address

import (
	"context"
	"errors"
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

// Columns is the select list understood by Scan.
const Columns = `id::text, user_id::text, recipient_name, street, number, complement, city, province,
       postal_code, country, phone, email, tax_id, created_at`

// Scan reads one address row selected with Columns.
func Scan(row pgx.Row) (*domain.ShippingAddress, error) {
	var a domain.ShippingAddress
	err := row.Scan(
		&a.ID,
		&a.UserID,
		&a.RecipientName,
		&a.Street,
		&a.Number,
		&a.Complement,
		&a.City,
		&a.Province,
		&a.PostalCode,
		&a.Country,
		&a.Phone,
		&a.Email,
		&a.TaxID,
		&a.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.Is(err, pgx.ErrNoRows) || (errors.As(err, &pgErr) && pgErr.Code == "22P02") {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}

func (r *postgresRepo) Create(ctx context.Context, a domain.ShippingAddress) (*domain.ShippingAddress, error) {
	const q = `
INSERT INTO shipping_addresses (
    user_id, recipient_name, street, number, complement, city, province,
    postal_code, country, phone, email, tax_id
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
RETURNING ` + Columns
	out, err := Scan(r.pool.QueryRow(ctx, q,
		a.UserID,
		a.RecipientName,
		a.Street,
		a.Number,
		a.Complement,
		a.City,
		a.Province,
		a.PostalCode,
		a.Country,
		a.Phone,
		a.Email,
		a.TaxID,
	))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return nil, domain.ErrNotFound
		}
		r.logger.Printf("address repo: create user_id=%s error=%v", a.UserID, err)
		return nil, err
	}
	r.logger.Printf("address repo: created id=%s user_id=%s", out.ID, out.UserID)
	return out, nil
}

func (r *postgresRepo) GetByID(ctx context.Context, id string) (*domain.ShippingAddress, error) {
	return Scan(r.pool.QueryRow(ctx, `SELECT `+Columns+` FROM shipping_addresses WHERE id = $1`, id))
}

func (r *postgresRepo) ListByUser(ctx context.Context, userID string) ([]domain.ShippingAddress, error) {
	rows, err := r.pool.Query(ctx, `
SELECT `+Columns+`
FROM shipping_addresses
WHERE user_id = $1
ORDER BY created_at DESC
`, userID)
	if err != nil {
		r.logger.Printf("address repo: list user_id=%s error=%v", userID, err)
		return nil, err
	}
	defer rows.Close()

	var out []domain.ShippingAddress
	for rows.Next() {
		a, err := Scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}
