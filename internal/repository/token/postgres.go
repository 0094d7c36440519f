package token

import (
	"context"
	"errors"
	"io"
	"log"
	"time"

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

func (r *postgresRepo) Create(ctx context.Context, token Token) error {
	const q = `
INSERT INTO tokens (token, customer_id, kind, expires_at)
VALUES ($1, $2, $3, $4)
`
	_, err := r.pool.Exec(ctx, q, token.Token, token.CustomerID, token.Kind, token.ExpiresAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case "23505":
				return domain.ErrAlreadyExists
			case "23503":
				return domain.ErrNotFound
			}
		}
		r.logger.Printf("token repo: create customer_id=%s kind=%s error=%v", token.CustomerID, token.Kind, err)
		return err
	}
	return nil
}

func (r *postgresRepo) Get(ctx context.Context, token string) (*Token, error) {
	const q = `
SELECT token, customer_id::text, kind, expires_at, created_at
FROM tokens
WHERE token = $1
LIMIT 1
`
	var out Token
	if err := r.pool.QueryRow(ctx, q, token).Scan(
		&out.Token,
		&out.CustomerID,
		&out.Kind,
		&out.ExpiresAt,
		&out.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &out, nil
}

func (r *postgresRepo) Delete(ctx context.Context, token string) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM tokens WHERE token = $1`, token)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *postgresRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM tokens WHERE expires_at <= $1`, now)
	if err != nil {
		r.logger.Printf("token repo: delete expired error=%v", err)
		return 0, err
	}
	return cmd.RowsAffected(), nil
}
