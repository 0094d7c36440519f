package domain

import "time"

// ProductVariant is the purchasable unit a cart line points at.
type ProductVariant struct {
	ID          string    `json:"id"`
	Key         string    `json:"key"`
	SKU         string    `json:"sku"`
	ProductName string    `json:"productName"`
	VariantName string    `json:"variantName,omitempty"`
	PriceCents  int64     `json:"priceInCents"`
	ImageURL    string    `json:"imageUrl,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Snapshot captures the display fields copied onto cart lines.
func (v ProductVariant) Snapshot() LineSnapshot {
	return LineSnapshot{
		ProductName: v.ProductName,
		VariantName: v.VariantName,
		ImageURL:    v.ImageURL,
	}
}
