package domain

import "time"

// Customer represents a registered user.
type Customer struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	FirstName    string    `json:"firstName,omitempty"`
	LastName     string    `json:"lastName,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}
