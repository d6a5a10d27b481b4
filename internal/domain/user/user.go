// Package user holds customer accounts: credentials, profile, shipping
// addresses, and the favorites set.
package user

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
)

// Sentinel errors for user persistence.
var (
	ErrNotFound   = errors.New("user not found")
	ErrEmailTaken = errors.New("email already registered")
)

// Address is a saved shipping address. At most one address per user carries
// IsDefault; the service enforces that on every write.
type Address struct {
	ID         string `json:"id"`
	FullName   string `json:"fullName"`
	Street     string `json:"street"`
	City       string `json:"city"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
	Phone      string `json:"phone,omitempty"`
	IsDefault  bool   `json:"isDefault"`
}

// User is a registered customer account.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	FirstName    string
	LastName     string
	IsAdmin      bool
	Favorites    []string
	Addresses    []Address
	CreatedAt    time.Time
}

// DisplayName derives the name used on orders and mail from the stored
// profile, falling back to the email local part when the name is empty.
func (u *User) DisplayName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name != "" {
		return name
	}
	if at := strings.IndexByte(u.Email, '@'); at > 0 {
		return u.Email[:at]
	}
	return u.Email
}

// Repository defines persistence for user accounts.
type Repository interface {
	// Create inserts a new user. Returns ErrEmailTaken when the email is
	// already registered.
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	// Update replaces the mutable profile fields (favorites, addresses).
	Update(ctx context.Context, u *User) error
}
