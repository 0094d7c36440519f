// Package memory implements the cart, address and order repositories on a
// single in-process state. Transactions run against a copy of the state that
// replaces the original only when the callback succeeds, so a failure at any
// step leaves nothing behind.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"storefront/internal/domain"
	addressrepo "storefront/internal/repository/address"
	cartrepo "storefront/internal/repository/cart"
	orderrepo "storefront/internal/repository/order"
	productrepo "storefront/internal/repository/product"
)

type state struct {
	carts     map[string]domain.Cart // by id
	addresses map[string]domain.ShippingAddress
	orders    map[string]domain.Order
	merges    map[string]bool // user id + "\x00" + token
	variants  map[string]domain.ProductVariant
}

func (s *state) clone() *state {
	out := &state{
		carts:     make(map[string]domain.Cart, len(s.carts)),
		addresses: make(map[string]domain.ShippingAddress, len(s.addresses)),
		orders:    make(map[string]domain.Order, len(s.orders)),
		merges:    make(map[string]bool, len(s.merges)),
		variants:  make(map[string]domain.ProductVariant, len(s.variants)),
	}
	for k, v := range s.variants {
		out.variants[k] = v
	}
	for k, c := range s.carts {
		c.Lines = append([]domain.CartLine(nil), c.Lines...)
		out.carts[k] = c
	}
	for k, a := range s.addresses {
		out.addresses[k] = a
	}
	for k, o := range s.orders {
		out.orders[k] = o
	}
	for k, v := range s.merges {
		out.merges[k] = v
	}
	return out
}

// Store holds the shared state. The zero value is not usable; call New.
type Store struct {
	txMu  sync.Mutex
	mu    sync.Mutex
	st    *state
	seq   atomic.Int64
	now   func() time.Time
	fails map[string]error
}

func New() *Store {
	return &Store{
		st: &state{
			carts:     map[string]domain.Cart{},
			addresses: map[string]domain.ShippingAddress{},
			orders:    map[string]domain.Order{},
			merges:    map[string]bool{},
			variants:  map[string]domain.ProductVariant{},
		},
		now:   time.Now,
		fails: map[string]error{},
	}
}

// FailOn makes the named Tx operation (for example "InsertOrder" or
// "DeleteCart") return err until cleared with a nil err.
func (s *Store) FailOn(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.fails, op)
		return
	}
	s.fails[op] = err
}

// AddVariant registers a variant so cart lines may reference it.
func (s *Store) AddVariant(v domain.ProductVariant) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.variants[v.ID] = v
}

// Variants returns the product variant repository view of the store.
func (s *Store) Variants() productrepo.Repository { return variantView{s} }

// Carts returns the cart repository view of the store.
func (s *Store) Carts() cartrepo.Repository { return cartView{s} }

// Orders returns the order repository view of the store.
func (s *Store) Orders() orderrepo.Repository { return orderView{s} }

// Addresses returns the address repository view of the store.
func (s *Store) Addresses() addressrepo.Repository { return addressView{s} }

// CartCount reports how many carts exist.
func (s *Store) CartCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.st.carts)
}

// OrderCount reports how many orders exist.
func (s *Store) OrderCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.st.orders)
}

func (s *Store) nextID(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, s.seq.Add(1))
}

// runInTx serializes transactions, which stands in for row locks. Only the
// tables a transaction can write are copied back on commit.
func (s *Store) runInTx(fn func(tx *memTx) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	tx := &memTx{store: s, st: s.st.clone()}
	s.mu.Unlock()

	if err := fn(tx); err != nil {
		return err
	}

	s.mu.Lock()
	s.st.carts = tx.st.carts
	s.st.orders = tx.st.orders
	s.st.merges = tx.st.merges
	s.mu.Unlock()
	return nil
}

func (s *Store) read(fn func(st *state)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.st)
}

type memTx struct {
	store *Store
	st    *state
}

func (t *memTx) fail(op string) error {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	return t.store.fails[op]
}

func (t *memTx) cartByUser(userID string) (domain.Cart, bool) {
	for _, c := range t.st.carts {
		if c.UserID == userID {
			return c, true
		}
	}
	return domain.Cart{}, false
}

func (t *memTx) LockCart(_ context.Context, userID string) (*domain.Cart, error) {
	if err := t.fail("LockCart"); err != nil {
		return nil, err
	}
	c, ok := t.cartByUser(userID)
	if !ok {
		return nil, domain.ErrCartNotFound
	}
	return copyCart(c), nil
}

func (t *memTx) LockCartByID(_ context.Context, cartID string) (*domain.Cart, error) {
	c, ok := t.st.carts[cartID]
	if !ok {
		return nil, domain.ErrCartNotFound
	}
	return copyCart(c), nil
}

func (t *memTx) LockOrCreateCart(_ context.Context, userID string) (*domain.Cart, error) {
	if err := t.fail("LockOrCreateCart"); err != nil {
		return nil, err
	}
	if c, ok := t.cartByUser(userID); ok {
		return copyCart(c), nil
	}
	now := t.store.now()
	c := domain.Cart{ID: t.store.nextID("cart"), UserID: userID, CreatedAt: now, UpdatedAt: now}
	t.st.carts[c.ID] = c
	return copyCart(c), nil
}

func (t *memTx) AddToLine(_ context.Context, cartID string, line domain.CartLine) error {
	if err := t.fail("AddToLine"); err != nil {
		return err
	}
	if line.Quantity <= 0 {
		return domain.ErrInvalidQuantity
	}
	c, ok := t.st.carts[cartID]
	if !ok {
		return domain.ErrNotFound
	}
	if _, ok := t.st.variants[line.ProductVariantID]; !ok {
		return domain.ErrNotFound
	}
	for i := range c.Lines {
		if c.Lines[i].ProductVariantID == line.ProductVariantID {
			c.Lines[i].Quantity += line.Quantity
			t.st.carts[cartID] = c
			return nil
		}
	}
	line.ID = t.store.nextID("line")
	line.CartID = cartID
	line.CreatedAt = t.store.now()
	c.Lines = append(c.Lines, line)
	t.st.carts[cartID] = c
	return nil
}

func (t *memTx) SetLineQuantity(_ context.Context, cartID, variantID string, quantity int) error {
	c, ok := t.st.carts[cartID]
	if !ok {
		return domain.ErrNotFound
	}
	for i := range c.Lines {
		if c.Lines[i].ProductVariantID != variantID {
			continue
		}
		if quantity <= 0 {
			c.Lines = append(c.Lines[:i], c.Lines[i+1:]...)
		} else {
			c.Lines[i].Quantity = quantity
		}
		t.st.carts[cartID] = c
		return nil
	}
	return domain.ErrNotFound
}

func (t *memTx) RemoveLine(_ context.Context, cartID, variantID string) error {
	c, ok := t.st.carts[cartID]
	if !ok {
		return nil
	}
	out := c.Lines[:0]
	for _, l := range c.Lines {
		if l.ProductVariantID != variantID {
			out = append(out, l)
		}
	}
	c.Lines = out
	t.st.carts[cartID] = c
	return nil
}

func (t *memTx) SetShippingAddress(_ context.Context, cartID string, addressID *string) error {
	c, ok := t.st.carts[cartID]
	if !ok {
		return domain.ErrCartNotFound
	}
	if addressID != nil {
		id := *addressID
		addressID = &id
	}
	c.ShippingAddressID = addressID
	c.UpdatedAt = t.store.now()
	t.st.carts[cartID] = c
	return nil
}

func (t *memTx) RecordMerge(_ context.Context, userID, token string) (bool, error) {
	key := userID + "\x00" + token
	if t.st.merges[key] {
		return false, nil
	}
	t.st.merges[key] = true
	return true, nil
}

func (t *memTx) DeleteCart(_ context.Context, cartID string) error {
	if err := t.fail("DeleteCart"); err != nil {
		return err
	}
	if _, ok := t.st.carts[cartID]; !ok {
		return domain.ErrCartNotFound
	}
	delete(t.st.carts, cartID)
	return nil
}

func (t *memTx) Load(_ context.Context, cartID string) (*domain.Cart, error) {
	c, ok := t.st.carts[cartID]
	if !ok {
		return nil, domain.ErrCartNotFound
	}
	return copyCart(c), nil
}

func (t *memTx) GetAddress(_ context.Context, id string) (*domain.ShippingAddress, error) {
	a, ok := t.st.addresses[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &a, nil
}

func (t *memTx) InsertOrder(_ context.Context, o domain.Order) (*domain.Order, error) {
	if err := t.fail("InsertOrder"); err != nil {
		return nil, err
	}
	o.ID = t.store.nextID("order")
	o.CreatedAt = t.store.now()
	o.Lines = append([]domain.OrderLine(nil), o.Lines...)
	for i := range o.Lines {
		o.Lines[i].ID = t.store.nextID("orderline")
		o.Lines[i].OrderID = o.ID
	}
	t.st.orders[o.ID] = o
	out := o
	return &out, nil
}

func copyCart(c domain.Cart) *domain.Cart {
	c.Lines = append([]domain.CartLine(nil), c.Lines...)
	if c.ShippingAddressID != nil {
		id := *c.ShippingAddressID
		c.ShippingAddressID = &id
	}
	return &c
}

type cartView struct{ s *Store }

func (v cartView) GetByUser(_ context.Context, userID string) (*domain.Cart, error) {
	var out *domain.Cart
	v.s.read(func(st *state) {
		for _, c := range st.carts {
			if c.UserID == userID {
				out = copyCart(c)
			}
		}
	})
	if out == nil {
		return nil, domain.ErrCartNotFound
	}
	return out, nil
}

func (v cartView) GetByID(_ context.Context, id string) (*domain.Cart, error) {
	var out *domain.Cart
	v.s.read(func(st *state) {
		if c, ok := st.carts[id]; ok {
			out = copyCart(c)
		}
	})
	if out == nil {
		return nil, domain.ErrCartNotFound
	}
	return out, nil
}

func (v cartView) RunInTx(_ context.Context, fn func(tx cartrepo.Tx) error) error {
	return v.s.runInTx(func(tx *memTx) error { return fn(tx) })
}

type orderView struct{ s *Store }

func (v orderView) GetByID(_ context.Context, id string) (*domain.Order, error) {
	var out *domain.Order
	v.s.read(func(st *state) {
		if o, ok := st.orders[id]; ok {
			out = &o
		}
	})
	if out == nil {
		return nil, domain.ErrNotFound
	}
	return out, nil
}

func (v orderView) ListByUser(_ context.Context, userID string) ([]domain.Order, error) {
	var out []domain.Order
	v.s.read(func(st *state) {
		for _, o := range st.orders {
			if o.UserID == userID {
				out = append(out, o)
			}
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (v orderView) RunInTx(_ context.Context, fn func(tx orderrepo.Tx) error) error {
	return v.s.runInTx(func(tx *memTx) error { return fn(tx) })
}

type addressView struct{ s *Store }

func (v addressView) Create(_ context.Context, a domain.ShippingAddress) (*domain.ShippingAddress, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	a.ID = v.s.nextID("addr")
	a.CreatedAt = v.s.now()
	v.s.st.addresses[a.ID] = a
	return &a, nil
}

func (v addressView) GetByID(_ context.Context, id string) (*domain.ShippingAddress, error) {
	var out *domain.ShippingAddress
	v.s.read(func(st *state) {
		if a, ok := st.addresses[id]; ok {
			out = &a
		}
	})
	if out == nil {
		return nil, domain.ErrNotFound
	}
	return out, nil
}

func (v addressView) ListByUser(_ context.Context, userID string) ([]domain.ShippingAddress, error) {
	var out []domain.ShippingAddress
	v.s.read(func(st *state) {
		for _, a := range st.addresses {
			if a.UserID == userID {
				out = append(out, a)
			}
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type variantView struct{ s *Store }

func (v variantView) List(_ context.Context) ([]domain.ProductVariant, error) {
	var out []domain.ProductVariant
	v.s.read(func(st *state) {
		for _, pv := range st.variants {
			out = append(out, pv)
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (v variantView) GetByID(_ context.Context, id string) (*domain.ProductVariant, error) {
	var out *domain.ProductVariant
	v.s.read(func(st *state) {
		if pv, ok := st.variants[id]; ok {
			out = &pv
		}
	})
	if out == nil {
		return nil, domain.ErrNotFound
	}
	return out, nil
}

func (v variantView) Upsert(_ context.Context, pv domain.ProductVariant) (*domain.ProductVariant, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	for _, existing := range v.s.st.variants {
		if existing.Key == pv.Key {
			pv.ID = existing.ID
			pv.CreatedAt = existing.CreatedAt
		}
	}
	if pv.ID == "" {
		pv.ID = v.s.nextID("variant")
		pv.CreatedAt = v.s.now()
	}
	v.s.st.variants[pv.ID] = pv
	return &pv, nil
}
