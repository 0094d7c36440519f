package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollapseLines_OneLinePerVariant(t *testing.T) {
	lines := []CartLine{
		{ProductVariantID: "a", Quantity: 2, UnitPriceCents: 500},
		{ProductVariantID: "b", Quantity: 1, UnitPriceCents: 1000},
		{ProductVariantID: "a", Quantity: 3, UnitPriceCents: 700},
		{ProductVariantID: "c", Quantity: 0, UnitPriceCents: 100},
		{ProductVariantID: "", Quantity: 4},
	}

	got := CollapseLines(lines)

	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ProductVariantID)
	assert.Equal(t, 5, got[0].Quantity)
	assert.Equal(t, int64(500), got[0].UnitPriceCents, "first price snapshot wins")
	assert.Equal(t, "b", got[1].ProductVariantID)
}

func TestCartTotals(t *testing.T) {
	cart := Cart{Lines: []CartLine{
		{ProductVariantID: "a", Quantity: 2, UnitPriceCents: 500},
		{ProductVariantID: "b", Quantity: 1, UnitPriceCents: 1000},
	}}
	assert.Equal(t, int64(2000), cart.TotalCents())
	assert.Equal(t, 3, cart.TotalItems())

	line, ok := cart.Line("b")
	require.True(t, ok)
	assert.Equal(t, int64(1000), line.TotalCents())
	_, ok = cart.Line("missing")
	assert.False(t, ok)
}

func TestNewOrder_CopiesLinesAndAddress(t *testing.T) {
	addrID := "addr-1"
	cart := Cart{
		ID:                "cart-1",
		UserID:            "user-1",
		ShippingAddressID: &addrID,
		Lines: []CartLine{
			{ProductVariantID: "a", Quantity: 2, UnitPriceCents: 500, Snapshot: LineSnapshot{ProductName: "Tee"}},
			{ProductVariantID: "b", Quantity: 1, UnitPriceCents: 1000},
		},
	}
	addr := ShippingAddress{ID: addrID, UserID: "user-1", AddressFields: AddressFields{RecipientName: "Ana", City: "Porto"}}

	order := NewOrder(cart, addr)

	assert.Equal(t, "user-1", order.UserID)
	assert.Equal(t, addrID, order.ShippingAddressID)
	assert.Equal(t, "Porto", order.ShippingAddress.City)
	assert.Equal(t, int64(2000), order.TotalCents)
	require.Len(t, order.Lines, 2)
	assert.Equal(t, "Tee", order.Lines[0].Snapshot.ProductName)

	// The stored total does not follow later edits of the source cart.
	cart.Lines[0].Quantity = 10
	assert.Equal(t, int64(2000), order.TotalCents)
}

func TestErrorTaxonomy(t *testing.T) {
	assert.True(t, errors.Is(ErrCartNotFound, ErrNotFound))
	assert.Equal(t, "cart not found", ErrCartNotFound.Error())

	err := Validationf("email required")
	assert.True(t, errors.Is(err, ErrValidation))
	assert.Equal(t, "email required", err.Error())
}

func TestAsTransactionFailure(t *testing.T) {
	assert.NoError(t, AsTransactionFailure(nil))
	assert.Same(t, ErrEmptyCart, AsTransactionFailure(ErrEmptyCart))
	assert.ErrorIs(t, AsTransactionFailure(ErrCartNotFound), ErrNotFound)

	wrapped := AsTransactionFailure(errors.New("conn reset"))
	assert.ErrorIs(t, wrapped, ErrTransactionFailed)
	assert.Equal(t, "transaction failed: conn reset", wrapped.Error())
}
