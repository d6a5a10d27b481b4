// Package order implements order placement and the order status lifecycle.
// Orders snapshot product prices at creation and stay immutable afterwards
// except for status and the payment flag.
package order

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/merchkit/storefront/internal/domain/identity"
)

// Status is the order lifecycle state. Cancelled is absorbing; the other
// states normally progress pending → processing → shipped → delivered,
// although UpdateStatus deliberately allows administrative jumps.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
)

// ParseStatus validates a wire status value.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusPending, StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled:
		return Status(s), nil
	}
	return "", &InvalidStatusError{Value: s}
}

// ErrNotFound is returned when an order does not exist for the caller.
var ErrNotFound = errors.New("order not found")

// InvalidStatusError indicates an unrecognized status value.
type InvalidStatusError struct {
	Value string
}

func (e *InvalidStatusError) Error() string {
	return fmt.Sprintf("invalid order status %q", e.Value)
}

// Item is one order line with the unit price snapshotted at placement time.
// Later product price changes never affect it.
type Item struct {
	ProductID string          `json:"productId"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	Size      string          `json:"size,omitempty"`
	Color     string          `json:"color,omitempty"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
}

// ShippingAddress is the destination captured on the order.
type ShippingAddress struct {
	FullName   string `json:"fullName"`
	Street     string `json:"street"`
	City       string `json:"city"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
	Phone      string `json:"phone,omitempty"`
}

// Order is a placed order. Owner is fixed at creation: a user id for
// authenticated placement, a guest session id otherwise, never both and
// never migrated.
type Order struct {
	ID              string
	Owner           identity.Identity
	Items           []Item
	ShippingAddress ShippingAddress
	PaymentMethod   string
	Email           string

	Subtotal decimal.Decimal
	Tax      decimal.Decimal
	Shipping decimal.Decimal
	Total    decimal.Decimal

	Status    Status
	IsPaid    bool
	PaidAt    *time.Time
	CreatedAt time.Time
}

// Repository defines persistence for orders.
type Repository interface {
	Create(ctx context.Context, o *Order) error
	// GetByID returns ErrNotFound for unknown ids.
	GetByID(ctx context.Context, id string) (*Order, error)
	ListByOwner(ctx context.Context, owner identity.Identity) ([]Order, error)
	ListAll(ctx context.Context) ([]Order, error)
	// Update persists the mutable fields only: status, payment flags, and
	// the monetary totals (for the legacy backfill path).
	Update(ctx context.Context, o *Order) error
}
