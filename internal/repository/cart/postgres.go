package cart

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

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

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

func (r *postgresRepo) GetByUser(ctx context.Context, userID string) (*domain.Cart, error) {
	return fetchCart(ctx, r.pool, `SELECT `+cartColumns+` FROM carts WHERE user_id = $1`, userID)
}

func (r *postgresRepo) GetByID(ctx context.Context, id string) (*domain.Cart, error) {
	return fetchCart(ctx, r.pool, `SELECT `+cartColumns+` FROM carts WHERE id = $1`, id)
}

func (r *postgresRepo) RunInTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		r.logger.Printf("cart repo: begin error=%v", err)
		return err
	}
	defer tx.Rollback(ctx)

	if err := fn(NewTx(tx)); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		r.logger.Printf("cart repo: commit error=%v", err)
		return err
	}
	return nil
}

// NewTx exposes cart operations on a transaction owned by the caller.
func NewTx(tx pgx.Tx) Tx {
	return &pgTx{q: tx}
}

type pgTx struct {
	q querier
}

const cartColumns = `id::text, user_id::text, shipping_address_id::text, created_at, updated_at`

func (t *pgTx) LockCart(ctx context.Context, userID string) (*domain.Cart, error) {
	return fetchCart(ctx, t.q, `SELECT `+cartColumns+` FROM carts WHERE user_id = $1 FOR UPDATE`, userID)
}

func (t *pgTx) LockCartByID(ctx context.Context, cartID string) (*domain.Cart, error) {
	return fetchCart(ctx, t.q, `SELECT `+cartColumns+` FROM carts WHERE id = $1 FOR UPDATE`, cartID)
}

func (t *pgTx) LockOrCreateCart(ctx context.Context, userID string) (*domain.Cart, error) {
	// The upsert takes the row lock in both branches.
	const q = `
INSERT INTO carts (user_id) VALUES ($1)
ON CONFLICT (user_id) DO UPDATE SET updated_at = now()
RETURNING ` + cartColumns
	return fetchCart(ctx, t.q, q, userID)
}

func (t *pgTx) AddToLine(ctx context.Context, cartID string, line domain.CartLine) error {
	if line.Quantity <= 0 {
		return domain.ErrInvalidQuantity
	}
	var lineID string
	var existing int
	err := t.q.QueryRow(ctx, `
SELECT id::text, quantity
FROM cart_lines
WHERE cart_id = $1 AND product_variant_id = $2
FOR UPDATE
`, cartID, line.ProductVariantID).Scan(&lineID, &existing)
	switch {
	case err == nil:
		_, err = t.q.Exec(ctx, `UPDATE cart_lines SET quantity = $1 WHERE id = $2`, existing+line.Quantity, lineID)
		return mapWriteErr(err)
	case errors.Is(err, pgx.ErrNoRows):
		// A failed foreign key would abort the whole transaction, so a
		// missing variant is detected up front and the row is held until commit.
		var one int
		err = t.q.QueryRow(ctx, `SELECT 1 FROM product_variants WHERE id::text = $1 FOR SHARE`, line.ProductVariantID).Scan(&one)
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrNotFound
		}
		if err != nil {
			return err
		}
		_, err = t.q.Exec(ctx, `
INSERT INTO cart_lines (cart_id, product_variant_id, quantity, unit_price_cents, snapshot)
VALUES ($1, $2, $3, $4, $5)
`, cartID, line.ProductVariantID, line.Quantity, line.UnitPriceCents, line.Snapshot)
		return mapWriteErr(err)
	default:
		return mapWriteErr(err)
	}
}

func (t *pgTx) SetLineQuantity(ctx context.Context, cartID, variantID string, quantity int) error {
	var (
		cmd pgconn.CommandTag
		err error
	)
	if quantity <= 0 {
		cmd, err = t.q.Exec(ctx, `DELETE FROM cart_lines WHERE cart_id = $1 AND product_variant_id = $2`, cartID, variantID)
	} else {
		cmd, err = t.q.Exec(ctx, `
UPDATE cart_lines SET quantity = $3
WHERE cart_id = $1 AND product_variant_id = $2
`, cartID, variantID, quantity)
	}
	if err != nil {
		return mapWriteErr(err)
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (t *pgTx) RemoveLine(ctx context.Context, cartID, variantID string) error {
	_, err := t.q.Exec(ctx, `DELETE FROM cart_lines WHERE cart_id = $1 AND product_variant_id = $2`, cartID, variantID)
	return mapWriteErr(err)
}

func (t *pgTx) SetShippingAddress(ctx context.Context, cartID string, addressID *string) error {
	cmd, err := t.q.Exec(ctx, `
UPDATE carts SET shipping_address_id = $2, updated_at = now()
WHERE id = $1
`, cartID, addressID)
	if err != nil {
		return mapWriteErr(err)
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrCartNotFound
	}
	return nil
}

func (t *pgTx) RecordMerge(ctx context.Context, userID, token string) (bool, error) {
	cmd, err := t.q.Exec(ctx, `
INSERT INTO cart_merges (user_id, token) VALUES ($1, $2)
ON CONFLICT (user_id, token) DO NOTHING
`, userID, token)
	if err != nil {
		return false, mapWriteErr(err)
	}
	return cmd.RowsAffected() == 1, nil
}

func (t *pgTx) DeleteCart(ctx context.Context, cartID string) error {
	cmd, err := t.q.Exec(ctx, `DELETE FROM carts WHERE id = $1`, cartID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrCartNotFound
	}
	return nil
}

func (t *pgTx) Load(ctx context.Context, cartID string) (*domain.Cart, error) {
	return fetchCart(ctx, t.q, `SELECT `+cartColumns+` FROM carts WHERE id = $1`, cartID)
}

func fetchCart(ctx context.Context, q querier, cartQuery string, args ...any) (*domain.Cart, error) {
	var cart domain.Cart
	err := q.QueryRow(ctx, cartQuery, args...).Scan(
		&cart.ID,
		&cart.UserID,
		&cart.ShippingAddressID,
		&cart.CreatedAt,
		&cart.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || isInvalidID(err) {
			return nil, domain.ErrCartNotFound
		}
		return nil, err
	}

	rows, err := q.Query(ctx, `
SELECT id::text, cart_id::text, product_variant_id::text, quantity, unit_price_cents, snapshot, created_at
FROM cart_lines
WHERE cart_id = $1
ORDER BY created_at ASC, id ASC
`, cart.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var line domain.CartLine
		if err := rows.Scan(
			&line.ID,
			&line.CartID,
			&line.ProductVariantID,
			&line.Quantity,
			&line.UnitPriceCents,
			&line.Snapshot,
			&line.CreatedAt,
		); err != nil {
			return nil, err
		}
		cart.Lines = append(cart.Lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &cart, nil
}

// mapWriteErr turns foreign key and malformed id failures into ErrNotFound.
func mapWriteErr(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && (pgErr.Code == "23503" || pgErr.Code == "22P02") {
		return domain.ErrNotFound
	}
	return err
}

func isInvalidID(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "22P02"
}
