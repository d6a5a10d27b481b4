// Package cart implements the per-identity shopping cart: a mutable list of
// variant-qualified line items owned by exactly one user or guest session.
package cart

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"

	"github.com/merchkit/storefront/internal/domain/identity"
)

// ErrNotFound is returned when no cart exists for an identity.
var ErrNotFound = errors.New("cart not found")

// Item is one cart line. Line identity is the (ProductID, Size, Color)
// tuple: the same product in a different size or color is a distinct line.
type Item struct {
	ProductID string `bson:"product_id" json:"productId"`
	Quantity  int    `bson:"quantity"   json:"quantity"`
	Size      string `bson:"size,omitempty"  json:"size,omitempty"`
	Color     string `bson:"color,omitempty" json:"color,omitempty"`
}

// SameLine reports whether two items belong to the same cart line. Missing
// size/color normalize to the empty string before comparison.
func (i Item) SameLine(other Item) bool {
	return i.ProductID == other.ProductID &&
		normalizeVariant(i.Size) == normalizeVariant(other.Size) &&
		normalizeVariant(i.Color) == normalizeVariant(other.Color)
}

func normalizeVariant(v string) string {
	return strings.TrimSpace(v)
}

// Cart is the stored aggregate. Owner is exactly one identity; an empty cart
// is never persisted, it is deleted instead.
type Cart struct {
	Owner     identity.Identity `bson:"-"`
	Items     []Item            `bson:"items"`
	CreatedAt time.Time         `bson:"created_at"`
	UpdatedAt time.Time         `bson:"updated_at"`
}

// Repository defines persistence for carts. Lookups key on the owner
// identity; how user and session owners are routed is the repository's
// concern, centralized there so the service operations cannot drift.
type Repository interface {
	// Get returns the cart for the identity or ErrNotFound.
	Get(ctx context.Context, owner identity.Identity) (*Cart, error)
	// Upsert creates or replaces the cart for cart.Owner. Last write wins;
	// there is no version guard on concurrent writers.
	Upsert(ctx context.Context, c *Cart) error
	// Delete removes the cart for the identity. Deleting an absent cart is
	// not an error.
	Delete(ctx context.Context, owner identity.Identity) error
}
