package domain

import "time"

// Cart is the server-side cart of an authenticated user. A user owns at most
// one cart; it is deleted when it is finalized into an Order.
type Cart struct {
	ID                string     `json:"id"`
	UserID            string     `json:"userId"`
	ShippingAddressID *string    `json:"shippingAddressId,omitempty"`
	CreatedAt         time.Time  `json:"createdAt"`
	UpdatedAt         time.Time  `json:"updatedAt"`
	Lines             []CartLine `json:"lineItems"`
}

// CartLine is one product variant held by a cart. UnitPriceCents is the price
// captured when the line was first added and never follows catalog changes.
type CartLine struct {
	ID               string       `json:"id,omitempty"`
	CartID           string       `json:"cartId,omitempty"`
	ProductVariantID string       `json:"productVariantId"`
	Quantity         int          `json:"quantity"`
	UnitPriceCents   int64        `json:"unitPriceInCents"`
	Snapshot         LineSnapshot `json:"snapshot"`
	CreatedAt        time.Time    `json:"createdAt,omitempty"`
}

// LineSnapshot keeps the display fields of a variant as they were at add time.
type LineSnapshot struct {
	ProductName string `json:"productName,omitempty"`
	VariantName string `json:"variantName,omitempty"`
	ImageURL    string `json:"imageUrl,omitempty"`
}

// TotalCents is quantity times the captured unit price.
func (l CartLine) TotalCents() int64 {
	return l.UnitPriceCents * int64(l.Quantity)
}

// TotalCents sums every line of the cart.
func (c Cart) TotalCents() int64 {
	return LinesTotalCents(c.Lines)
}

// TotalItems sums line quantities.
func (c Cart) TotalItems() int {
	return LinesTotalItems(c.Lines)
}

// HasShippingAddress reports whether an address is bound to the cart.
func (c Cart) HasShippingAddress() bool {
	return c.ShippingAddressID != nil && *c.ShippingAddressID != ""
}

// Line returns the line for the given variant, if any.
func (c Cart) Line(variantID string) (CartLine, bool) {
	for _, l := range c.Lines {
		if l.ProductVariantID == variantID {
			return l, true
		}
	}
	return CartLine{}, false
}

func LinesTotalCents(lines []CartLine) int64 {
	var total int64
	for _, l := range lines {
		total += l.TotalCents()
	}
	return total
}

func LinesTotalItems(lines []CartLine) int {
	total := 0
	for _, l := range lines {
		total += l.Quantity
	}
	return total
}

// CollapseLines folds lines for the same variant into one, keeping the first
// seen price snapshot and the first-seen order. Lines with a non-positive
// quantity are dropped.
func CollapseLines(lines []CartLine) []CartLine {
	out := make([]CartLine, 0, len(lines))
	index := make(map[string]int, len(lines))
	for _, l := range lines {
		if l.Quantity <= 0 || l.ProductVariantID == "" {
			continue
		}
		if i, ok := index[l.ProductVariantID]; ok {
			out[i].Quantity += l.Quantity
			continue
		}
		index[l.ProductVariantID] = len(out)
		out = append(out, l)
	}
	return out
}
