package order

import (
	"context"
	"errors"
	"io"
	"log"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"storefront/internal/domain"
	addressrepo "storefront/internal/repository/address"
	cartrepo "storefront/internal/repository/cart"
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

func (r *postgresRepo) RunInTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		r.logger.Printf("order repo: begin error=%v", err)
		return err
	}
	defer tx.Rollback(ctx)

	if err := fn(&pgTx{tx: tx, carts: cartrepo.NewTx(tx)}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		r.logger.Printf("order repo: commit error=%v", err)
		return err
	}
	return nil
}

type pgTx struct {
	tx    pgx.Tx
	carts cartrepo.Tx
}

func (t *pgTx) LockCart(ctx context.Context, userID string) (*domain.Cart, error) {
	return t.carts.LockCart(ctx, userID)
}

func (t *pgTx) DeleteCart(ctx context.Context, cartID string) error {
	return t.carts.DeleteCart(ctx, cartID)
}

func (t *pgTx) GetAddress(ctx context.Context, id string) (*domain.ShippingAddress, error) {
	return addressrepo.Scan(t.tx.QueryRow(ctx,
		`SELECT `+addressrepo.Columns+` FROM shipping_addresses WHERE id = $1 FOR SHARE`, id))
}

func (t *pgTx) InsertOrder(ctx context.Context, o domain.Order) (*domain.Order, error) {
	a := o.ShippingAddress
	err := t.tx.QueryRow(ctx, `
INSERT INTO orders (
    user_id, shipping_address_id, recipient_name, street, number, complement, city, province,
    postal_code, country, phone, email, tax_id, total_cents
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
RETURNING id::text, created_at
`,
		o.UserID,
		o.ShippingAddressID,
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
		o.TotalCents,
	).Scan(&o.ID, &o.CreatedAt)
	if err != nil {
		return nil, err
	}

	// Lines go in one round trip, in cart order.
	batch := &pgx.Batch{}
	for i, l := range o.Lines {
		batch.Queue(`
INSERT INTO order_lines (order_id, position, product_variant_id, quantity, unit_price_cents, snapshot)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id::text
`, o.ID, i, l.ProductVariantID, l.Quantity, l.UnitPriceCents, l.Snapshot)
	}
	results := t.tx.SendBatch(ctx, batch)
	for i := range o.Lines {
		if err := results.QueryRow().Scan(&o.Lines[i].ID); err != nil {
			results.Close()
			return nil, err
		}
		o.Lines[i].OrderID = o.ID
	}
	if err := results.Close(); err != nil {
		return nil, err
	}
	return &o, nil
}

const orderColumns = `id::text, user_id::text, COALESCE(shipping_address_id::text, ''), recipient_name, street, number,
       complement, city, province, postal_code, country, phone, email, tax_id, total_cents, created_at`

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var o domain.Order
	a := &o.ShippingAddress
	err := row.Scan(
		&o.ID,
		&o.UserID,
		&o.ShippingAddressID,
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
		&o.TotalCents,
		&o.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.Is(err, pgx.ErrNoRows) || (errors.As(err, &pgErr) && pgErr.Code == "22P02") {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &o, nil
}

func (r *postgresRepo) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	o, err := scanOrder(r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}
	if err := r.loadLines(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

func (r *postgresRepo) ListByUser(ctx context.Context, userID string) ([]domain.Order, error) {
	rows, err := r.pool.Query(ctx, `
SELECT `+orderColumns+`
FROM orders
WHERE user_id = $1
ORDER BY created_at DESC
`, userID)
	if err != nil {
		r.logger.Printf("order repo: list user_id=%s error=%v", userID, err)
		return nil, err
	}
	var out []domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		out = append(out, *o)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		if err := r.loadLines(ctx, &out[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (r *postgresRepo) loadLines(ctx context.Context, o *domain.Order) error {
	rows, err := r.pool.Query(ctx, `
SELECT id::text, order_id::text, product_variant_id::text, quantity, unit_price_cents, snapshot
FROM order_lines
WHERE order_id = $1
ORDER BY position ASC
`, o.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var l domain.OrderLine
		if err := rows.Scan(&l.ID, &l.OrderID, &l.ProductVariantID, &l.Quantity, &l.UnitPriceCents, &l.Snapshot); err != nil {
			return err
		}
		o.Lines = append(o.Lines, l)
	}
	return rows.Err()
}
