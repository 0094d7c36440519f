package order

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/domain"
	cartrepo "storefront/internal/repository/cart"
	"storefront/internal/repository/memory"
)

type recordingNotifier struct {
	mu     sync.Mutex
	orders []domain.Order
	err    error
}

func (n *recordingNotifier) OrderFinalized(_ context.Context, o domain.Order) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.orders = append(n.orders, o)
	return n.err
}

type fixture struct {
	store    *memory.Store
	svc      *Service
	notifier *recordingNotifier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s := memory.New()
	s.AddVariant(domain.ProductVariant{ID: "A", PriceCents: 500})
	s.AddVariant(domain.ProductVariant{ID: "B", PriceCents: 1000})
	n := &recordingNotifier{}
	return &fixture{store: s, svc: New(s.Orders(), n, nil), notifier: n}
}

func (f *fixture) cart(t *testing.T, userID string, lines ...domain.CartLine) string {
	t.Helper()
	ctx := context.Background()
	var id string
	require.NoError(t, f.store.Carts().RunInTx(ctx, func(tx cartrepo.Tx) error {
		c, err := tx.LockOrCreateCart(ctx, userID)
		if err != nil {
			return err
		}
		id = c.ID
		for _, l := range lines {
			if err := tx.AddToLine(ctx, c.ID, l); err != nil {
				return err
			}
		}
		return nil
	}))
	return id
}

func (f *fixture) bindAddress(t *testing.T, cartID, owner string) *domain.ShippingAddress {
	t.Helper()
	ctx := context.Background()
	addr, err := f.store.Addresses().Create(ctx, domain.ShippingAddress{
		UserID:        owner,
		AddressFields: domain.AddressFields{RecipientName: "Ana", Street: "Main", City: "Porto", Country: "PT"},
	})
	require.NoError(t, err)
	require.NoError(t, f.store.Carts().RunInTx(ctx, func(tx cartrepo.Tx) error {
		return tx.SetShippingAddress(ctx, cartID, &addr.ID)
	}))
	return addr
}

var standardLines = []domain.CartLine{
	{ProductVariantID: "A", Quantity: 2, UnitPriceCents: 500},
	{ProductVariantID: "B", Quantity: 1, UnitPriceCents: 1000},
}

func TestFinalize_CreatesOneOrderAndRemovesCart(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	cartID := f.cart(t, "u1", standardLines...)
	addr := f.bindAddress(t, cartID, "u1")

	order, err := f.svc.Finalize(ctx, "u1")
	require.NoError(t, err)

	assert.Equal(t, int64(2000), order.TotalCents)
	require.Len(t, order.Lines, 2)
	assert.Equal(t, "A", order.Lines[0].ProductVariantID)
	assert.Equal(t, 2, order.Lines[0].Quantity)
	assert.Equal(t, int64(500), order.Lines[0].UnitPriceCents)
	assert.Equal(t, addr.ID, order.ShippingAddressID)
	assert.Equal(t, "Porto", order.ShippingAddress.City)

	assert.Equal(t, 1, f.store.OrderCount())
	assert.Equal(t, 0, f.store.CartCount())
	_, err = f.store.Carts().GetByUser(ctx, "u1")
	assert.ErrorIs(t, err, domain.ErrCartNotFound)

	require.Len(t, f.notifier.orders, 1)
	assert.Equal(t, order.ID, f.notifier.orders[0].ID)
}

func TestFinalize_SecondCallFailsWithCartNotFound(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	cartID := f.cart(t, "u1", standardLines...)
	f.bindAddress(t, cartID, "u1")

	_, err := f.svc.Finalize(ctx, "u1")
	require.NoError(t, err)
	_, err = f.svc.Finalize(ctx, "u1")
	assert.ErrorIs(t, err, domain.ErrCartNotFound)
	assert.Equal(t, 1, f.store.OrderCount())
}

func TestFinalize_ConcurrentCallsCreateOneOrder(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	cartID := f.cart(t, "u1", standardLines...)
	f.bindAddress(t, cartID, "u1")

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.Finalize(ctx, "u1")
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.ErrorIs(t, err, domain.ErrCartNotFound)
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, f.store.OrderCount())
}

func TestFinalize_MissingShippingAddressWritesNothing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	cartID := f.cart(t, "u1", standardLines...)

	_, err := f.svc.Finalize(ctx, "u1")
	assert.ErrorIs(t, err, domain.ErrMissingShippingAddress)
	assert.Equal(t, 0, f.store.OrderCount())

	cart, err := f.store.Carts().GetByUser(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, cart.Lines, 2)

	f.bindAddress(t, cartID, "u1")
	order, err := f.svc.Finalize(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(2000), order.TotalCents)
}

func TestFinalize_EmptyCart(t *testing.T) {
	f := newFixture(t)
	cartID := f.cart(t, "u1")
	f.bindAddress(t, cartID, "u1")

	_, err := f.svc.Finalize(context.Background(), "u1")
	assert.ErrorIs(t, err, domain.ErrEmptyCart)
	assert.Equal(t, 1, f.store.CartCount())
}

func TestFinalize_NoCart(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Finalize(context.Background(), "u1")
	assert.ErrorIs(t, err, domain.ErrCartNotFound)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestFinalize_Unauthorized(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Finalize(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestFinalize_ForeignAddressIsForbidden(t *testing.T) {
	f := newFixture(t)
	cartID := f.cart(t, "u1", standardLines...)
	f.bindAddress(t, cartID, "u2")

	_, err := f.svc.Finalize(context.Background(), "u1")
	assert.ErrorIs(t, err, domain.ErrForbidden)
	assert.Equal(t, 1, f.store.CartCount())
}

func TestFinalize_StoreFailureRollsBackEverything(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	cartID := f.cart(t, "u1", standardLines...)
	f.bindAddress(t, cartID, "u1")

	f.store.FailOn("DeleteCart", errors.New("deadlock detected"))
	_, err := f.svc.Finalize(ctx, "u1")
	require.ErrorIs(t, err, domain.ErrTransactionFailed)
	assert.Equal(t, 0, f.store.OrderCount(), "order insert rolled back")
	assert.Equal(t, 1, f.store.CartCount())
	assert.Empty(t, f.notifier.orders)

	f.store.FailOn("DeleteCart", nil)
	order, err := f.svc.Finalize(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(2000), order.TotalCents)
	assert.Equal(t, 1, f.store.OrderCount())
}

func TestFinalize_NotifierFailureKeepsOrder(t *testing.T) {
	f := newFixture(t)
	cartID := f.cart(t, "u1", standardLines...)
	f.bindAddress(t, cartID, "u1")
	f.notifier.err = errors.New("broker down")

	order, err := f.svc.Finalize(context.Background(), "u1")
	require.NoError(t, err)
	assert.NotEmpty(t, order.ID)
	assert.Equal(t, 1, f.store.OrderCount())
}

func TestFinalize_TotalIsFrozen(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	cartID := f.cart(t, "u1", standardLines...)
	f.bindAddress(t, cartID, "u1")

	order, err := f.svc.Finalize(ctx, "u1")
	require.NoError(t, err)

	// A price change after the fact does not touch the stored order.
	f.store.AddVariant(domain.ProductVariant{ID: "A", PriceCents: 9999})
	got, err := f.svc.Get(ctx, "u1", order.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2000), got.TotalCents)
	assert.Equal(t, int64(500), got.Lines[0].UnitPriceCents)
}

func TestGetAndList_ScopedToOwner(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	cartID := f.cart(t, "u1", standardLines...)
	f.bindAddress(t, cartID, "u1")
	order, err := f.svc.Finalize(ctx, "u1")
	require.NoError(t, err)

	_, err = f.svc.Get(ctx, "u2", order.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	list, err := f.svc.List(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, list, 1)

	list, err = f.svc.List(ctx, "u2")
	require.NoError(t, err)
	assert.Empty(t, list)
}
