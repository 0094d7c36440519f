package domain

import "time"

// AddressFields are the postal fields of a shipping address. Orders embed a
// copy of them so later edits never change a past order.
type AddressFields struct {
	RecipientName string `json:"recipientName"`
	Street        string `json:"street"`
	Number        string `json:"number"`
	Complement    string `json:"complement,omitempty"`
	City          string `json:"city"`
	Province      string `json:"province"`
	PostalCode    string `json:"postalCode"`
	Country       string `json:"country"`
	Phone         string `json:"phone"`
	Email         string `json:"email"`
	TaxID         string `json:"taxId"`
}

// ShippingAddress is an address owned by a customer.
type ShippingAddress struct {
	ID     string `json:"id"`
	UserID string `json:"userId"`
	AddressFields
	CreatedAt time.Time `json:"createdAt"`
}
