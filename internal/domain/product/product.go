package product

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// Product represents a catalog item available for purchase. Sizes and Colors
// list the variants a cart line may pick; both may be empty for products
// without variants.
type Product struct {
	ID          string
	SKU         string
	Name        string
	Description string
	Price       decimal.Decimal
	Category    string
	ImageURL    string
	Sizes       []string
	Colors      []string
}

// Repository defines read operations for the product catalog.
type Repository interface {
	List(ctx context.Context) ([]Product, error)
	GetByID(ctx context.Context, id string) (*Product, error)
	// GetByIDs fetches several products in one query. Missing ids are simply
	// absent from the result; callers decide whether that is an error.
	GetByIDs(ctx context.Context, ids []string) ([]Product, error)
}
