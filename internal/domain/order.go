package domain

import "time"

// Order is the immutable result of finalizing a cart.
type Order struct {
	ID                string        `json:"id"`
	UserID            string        `json:"userId"`
	ShippingAddressID string        `json:"shippingAddressId"`
	ShippingAddress   AddressFields `json:"shippingAddress"`
	TotalCents        int64         `json:"totalInCents"`
	CreatedAt         time.Time     `json:"createdAt"`
	Lines             []OrderLine   `json:"lineItems"`
}

// OrderLine freezes quantity and unit price at order time.
type OrderLine struct {
	ID               string       `json:"id"`
	OrderID          string       `json:"orderId"`
	ProductVariantID string       `json:"productVariantId"`
	Quantity         int          `json:"quantity"`
	UnitPriceCents   int64        `json:"unitPriceInCents"`
	Snapshot         LineSnapshot `json:"snapshot"`
}

// NewOrder builds an order from a cart and its bound address. The total is
// computed here once and stored; it is never recomputed from the lines.
func NewOrder(cart Cart, address ShippingAddress) Order {
	lines := make([]OrderLine, 0, len(cart.Lines))
	for _, l := range cart.Lines {
		lines = append(lines, OrderLine{
			ProductVariantID: l.ProductVariantID,
			Quantity:         l.Quantity,
			UnitPriceCents:   l.UnitPriceCents,
			Snapshot:         l.Snapshot,
		})
	}
	return Order{
		UserID:            cart.UserID,
		ShippingAddressID: address.ID,
		ShippingAddress:   address.AddressFields,
		TotalCents:        cart.TotalCents(),
		Lines:             lines,
	}
}
