package cart

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/merchkit/storefront/internal/domain/identity"
	"github.com/merchkit/storefront/internal/domain/pricing"
	"github.com/merchkit/storefront/internal/domain/product"
)

// Sentinel errors for cart operations.
var (
	ErrIdentityRequired = errors.New("shopping identity required")
	ErrProductRequired  = errors.New("product id required")
	ErrItemNotFound     = errors.New("item not in cart")
)

// InvalidQuantityError indicates a non-positive requested quantity.
type InvalidQuantityError struct {
	Quantity int
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity must be at least 1, got %d", e.Quantity)
}

// ResolvedItem is a cart line joined with its catalog product.
type ResolvedItem struct {
	Product   product.Product
	Quantity  int
	Size      string
	Color     string
	LineTotal decimal.Decimal
}

// View is a cart ready for display: lines joined with products plus derived
// totals. Deleted reports that the operation removed the cart entirely; the
// distinction matters to callers that branch on it.
type View struct {
	Items   []ResolvedItem
	Totals  pricing.Totals
	Deleted bool
}

// Service implements the cart operations over a cart repository and the
// product catalog.
type Service struct {
	carts    Repository
	products product.Repository
	now      func() time.Time
}

// NewService creates a cart Service.
func NewService(carts Repository, products product.Repository) *Service {
	return &Service{carts: carts, products: products, now: time.Now}
}

// Get returns the identity's cart with product details resolved, or an
// empty view when no cart exists. It never creates a cart.
func (s *Service) Get(ctx context.Context, owner identity.Identity) (*View, error) {
	if owner.IsZero() {
		return emptyView(), nil
	}

	c, err := s.carts.Get(ctx, owner)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return emptyView(), nil
		}
		return nil, errors.Wrap(err, "get cart")
	}

	return s.resolve(ctx, c)
}

// Add puts quantity units of a product variant into the cart, creating the
// cart lazily and merging into an existing line when the exact
// (product, size, color) tuple is already present.
func (s *Service) Add(ctx context.Context, owner identity.Identity, productID string, quantity int, size, color string) (*View, error) {
	if owner.IsZero() {
		return nil, ErrIdentityRequired
	}
	if productID == "" {
		return nil, ErrProductRequired
	}
	if quantity < 1 {
		return nil, &InvalidQuantityError{Quantity: quantity}
	}

	// Resolve the product up front so a bad reference never lands in the cart.
	if _, err := s.products.GetByID(ctx, productID); err != nil {
		return nil, errors.Wrap(err, "resolve product")
	}

	c, err := s.carts.Get(ctx, owner)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			return nil, errors.Wrap(err, "get cart")
		}
		c = &Cart{Owner: owner, CreatedAt: s.now()}
	}

	line := Item{
		ProductID: productID,
		Quantity:  quantity,
		Size:      normalizeVariant(size),
		Color:     normalizeVariant(color),
	}

	merged := false
	for i := range c.Items {
		if c.Items[i].SameLine(line) {
			c.Items[i].Quantity += quantity
			merged = true
			break
		}
	}
	if !merged {
		c.Items = append(c.Items, line)
	}
	c.UpdatedAt = s.now()

	if err := s.carts.Upsert(ctx, c); err != nil {
		return nil, errors.Wrap(err, "save cart")
	}

	return s.resolve(ctx, c)
}

// UpdateQuantity overwrites the quantity on the first line matching the
// product id, regardless of variant. Both the cart and the line must exist.
func (s *Service) UpdateQuantity(ctx context.Context, owner identity.Identity, productID string, quantity int) (*View, error) {
	if owner.IsZero() {
		return nil, ErrIdentityRequired
	}
	if productID == "" {
		return nil, ErrProductRequired
	}
	if quantity < 1 {
		return nil, &InvalidQuantityError{Quantity: quantity}
	}

	c, err := s.carts.Get(ctx, owner)
	if err != nil {
		return nil, errors.Wrap(err, "get cart")
	}

	found := false
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			c.Items[i].Quantity = quantity
			found = true
			break
		}
	}
	if !found {
		return nil, ErrItemNotFound
	}
	c.UpdatedAt = s.now()

	if err := s.carts.Upsert(ctx, c); err != nil {
		return nil, errors.Wrap(err, "save cart")
	}

	return s.resolve(ctx, c)
}

// Remove drops every line for the product, variant-agnostic. Removing the
// last line deletes the cart record and the returned view reports Deleted.
func (s *Service) Remove(ctx context.Context, owner identity.Identity, productID string) (*View, error) {
	if owner.IsZero() {
		return nil, ErrIdentityRequired
	}
	if productID == "" {
		return nil, ErrProductRequired
	}

	c, err := s.carts.Get(ctx, owner)
	if err != nil {
		return nil, errors.Wrap(err, "get cart")
	}

	kept := c.Items[:0]
	for _, it := range c.Items {
		if it.ProductID != productID {
			kept = append(kept, it)
		}
	}
	c.Items = kept

	// An empty cart has no independent existence.
	if len(c.Items) == 0 {
		if err := s.carts.Delete(ctx, owner); err != nil {
			return nil, errors.Wrap(err, "delete emptied cart")
		}
		v := emptyView()
		v.Deleted = true
		return v, nil
	}

	c.UpdatedAt = s.now()
	if err := s.carts.Upsert(ctx, c); err != nil {
		return nil, errors.Wrap(err, "save cart")
	}

	return s.resolve(ctx, c)
}

// Clear deletes the identity's cart unconditionally. Clearing an absent cart
// is a no-op. Restricting this to verified users is the HTTP layer's job.
func (s *Service) Clear(ctx context.Context, owner identity.Identity) error {
	if owner.IsZero() {
		return ErrIdentityRequired
	}
	if err := s.carts.Delete(ctx, owner); err != nil {
		return errors.Wrap(err, "delete cart")
	}
	return nil
}

// resolve joins cart lines with the catalog and computes display totals.
// Lines whose product has since left the catalog are omitted from the view
// rather than failing the read.
func (s *Service) resolve(ctx context.Context, c *Cart) (*View, error) {
	ids := make([]string, len(c.Items))
	for i, it := range c.Items {
		ids[i] = it.ProductID
	}

	fetched, err := s.products.GetByIDs(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "resolve products")
	}
	byID := make(map[string]product.Product, len(fetched))
	for _, p := range fetched {
		byID[p.ID] = p
	}

	view := &View{Items: make([]ResolvedItem, 0, len(c.Items))}
	lines := make([]pricing.Line, 0, len(c.Items))
	for _, it := range c.Items {
		p, ok := byID[it.ProductID]
		if !ok {
			continue
		}
		qty := decimal.NewFromInt(int64(it.Quantity))
		view.Items = append(view.Items, ResolvedItem{
			Product:   p,
			Quantity:  it.Quantity,
			Size:      it.Size,
			Color:     it.Color,
			LineTotal: p.Price.Mul(qty).Round(2),
		})
		lines = append(lines, pricing.Line{UnitPrice: p.Price, Quantity: it.Quantity})
	}
	view.Totals = pricing.Quote(lines)

	return view, nil
}

func emptyView() *View {
	return &View{Items: []ResolvedItem{}, Totals: pricing.Quote(nil)}
}
