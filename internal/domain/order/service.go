package order

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/merchkit/storefront/internal/domain/cart"
	"github.com/merchkit/storefront/internal/domain/identity"
	"github.com/merchkit/storefront/internal/domain/pricing"
	"github.com/merchkit/storefront/internal/domain/product"
	"github.com/merchkit/storefront/internal/domain/user"
	"github.com/merchkit/storefront/internal/mail"
)

// Sentinel errors for order operations.
var (
	ErrEmptyItems  = errors.New("items required")
	ErrAlreadyPaid = errors.New("order already paid")
)

// ProductNotFoundError indicates a submitted item references a product that
// does not exist. Placement is all-or-nothing; one bad reference fails the
// whole order.
type ProductNotFoundError struct {
	ProductID string
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %s not found", e.ProductID)
}

// InvalidQuantityError indicates a line item with a non-positive quantity.
type InvalidQuantityError struct {
	ProductID string
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity must be greater than 0 for product %s", e.ProductID)
}

// MissingFieldError names a required shipping field absent from the input.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("shipping address %s is required", e.Field)
}

// ItemRequest is one submitted order line. Any client-supplied price rides
// along for display reconciliation but is never trusted: the snapshot always
// comes from the catalog.
type ItemRequest struct {
	ProductID string
	Quantity  int
	Size      string
	Color     string
}

// PlaceOrderRequest is the input for PlaceOrder.
type PlaceOrderRequest struct {
	Items           []ItemRequest
	ShippingAddress ShippingAddress
	PaymentMethod   string
	Email           string
}

// PlaceOrderResult is a placed order with its products resolved for display.
type PlaceOrderResult struct {
	Order    *Order
	Products []product.Product
}

// Service implements order placement and status transitions.
type Service struct {
	orders   Repository
	products product.Repository
	users    user.Repository
	carts    cart.Repository
	mailer   mail.Mailer
	lg       *zap.Logger
	now      func() time.Time

	// dispatch runs notification sends; asynchronous by default.
	dispatch func(func())
}

// NewService creates an order Service.
func NewService(
	orders Repository,
	products product.Repository,
	users user.Repository,
	carts cart.Repository,
	mailer mail.Mailer,
	lg *zap.Logger,
) *Service {
	return &Service{
		orders:   orders,
		products: products,
		users:    users,
		carts:    carts,
		mailer:   mailer,
		lg:       lg,
		now:      time.Now,
		dispatch: func(f func()) { go f() },
	}
}

// PlaceOrder validates the request, snapshots server-side prices, persists
// the order, consumes the caller's cart, and fires a confirmation mail.
func (s *Service) PlaceOrder(ctx context.Context, owner identity.Identity, req PlaceOrderRequest) (*PlaceOrderResult, error) {
	if len(req.Items) == 0 {
		return nil, ErrEmptyItems
	}
	if err := validateShipping(req.ShippingAddress); err != nil {
		return nil, err
	}

	ids := make([]string, len(req.Items))
	for i, item := range req.Items {
		if item.Quantity <= 0 {
			return nil, &InvalidQuantityError{ProductID: item.ProductID}
		}
		ids[i] = item.ProductID
	}

	shipping := req.ShippingAddress
	email := req.Email

	// An authenticated caller's stored name wins over whatever the client
	// sent; guests keep the submitted name verbatim.
	if userID, ok := owner.UserID(); ok {
		u, err := s.users.GetByID(ctx, userID)
		if err != nil {
			return nil, errors.Wrap(err, "resolve user")
		}
		shipping.FullName = u.DisplayName()
		if email == "" {
			email = u.Email
		}
	}

	// Batch product resolution, all-or-nothing. Prices come from here, never
	// from the client.
	fetched, err := s.products.GetByIDs(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "get products")
	}
	byID := make(map[string]product.Product, len(fetched))
	for _, p := range fetched {
		byID[p.ID] = p
	}

	items := make([]Item, len(req.Items))
	lines := make([]pricing.Line, len(req.Items))
	products := make([]product.Product, len(req.Items))
	for i, item := range req.Items {
		p, ok := byID[item.ProductID]
		if !ok {
			return nil, &ProductNotFoundError{ProductID: item.ProductID}
		}
		items[i] = Item{
			ProductID: p.ID,
			Name:      p.Name,
			Quantity:  item.Quantity,
			Size:      item.Size,
			Color:     item.Color,
			UnitPrice: p.Price,
		}
		lines[i] = pricing.Line{UnitPrice: p.Price, Quantity: item.Quantity}
		products[i] = p
	}

	totals := pricing.Quote(lines)

	o := &Order{
		ID:              uuid.New().String(),
		Owner:           owner,
		Items:           items,
		ShippingAddress: shipping,
		PaymentMethod:   req.PaymentMethod,
		Email:           email,
		Subtotal:        totals.Subtotal,
		Tax:             totals.Tax,
		Shipping:        totals.Shipping,
		Total:           totals.Total,
		Status:          StatusPending,
		CreatedAt:       s.now(),
	}
	if err := s.orders.Create(ctx, o); err != nil {
		return nil, errors.Wrap(err, "create order")
	}

	// The source cart is consumed by placement. Best effort: a failed delete
	// never rolls back or fails the order.
	if !owner.IsZero() {
		if err := s.carts.Delete(ctx, owner); err != nil {
			s.lg.Warn("cart cleanup after order failed",
				zap.String("order_id", o.ID),
				zap.Error(err),
			)
		}
	}

	if o.Email != "" {
		s.notify(ctx, mail.Message{
			To:      o.Email,
			Subject: fmt.Sprintf("Order %s confirmed", o.ID),
			Body:    fmt.Sprintf("Thanks %s! Your order total is %s.", shipping.FullName, o.Total.StringFixed(2)),
		}, o.ID)
	}

	return &PlaceOrderResult{Order: o, Products: products}, nil
}

// MarkPaid stamps the payment flag and timestamp without touching status.
// Calling it again simply re-stamps; SettlePayment is the guarded path.
func (s *Service) MarkPaid(ctx context.Context, orderID string) (*Order, error) {
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	paidAt := s.now()
	o.IsPaid = true
	o.PaidAt = &paidAt

	if err := s.orders.Update(ctx, o); err != nil {
		return nil, errors.Wrap(err, "update order")
	}
	return o, nil
}

// SettlePayment simulates payment for an order: it refuses double payment,
// backfills totals on legacy orders that predate the derived fields, clears
// any cart still held by the order's owner, and moves the order to
// processing with the payment flag set.
func (s *Service) SettlePayment(ctx context.Context, orderID string) (*Order, error) {
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.IsPaid {
		return nil, ErrAlreadyPaid
	}

	if o.Total.IsZero() && len(o.Items) > 0 {
		s.backfillTotals(o)
	}

	s.cleanupOwnerCart(ctx, o)

	paidAt := s.now()
	o.Status = StatusProcessing
	o.IsPaid = true
	o.PaidAt = &paidAt

	if err := s.orders.Update(ctx, o); err != nil {
		return nil, errors.Wrap(err, "update order")
	}
	return o, nil
}

// UpdateStatus overwrites the order status. Any recognized status is
// accepted, including backwards moves; adjacency is deliberately not
// enforced so operators can correct mistakes. An actual change with a known
// contact email triggers a notification; a no-op update does not.
func (s *Service) UpdateStatus(ctx context.Context, orderID, rawStatus string) (*Order, error) {
	status, err := ParseStatus(rawStatus)
	if err != nil {
		return nil, err
	}

	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	changed := o.Status != status
	o.Status = status

	if err := s.orders.Update(ctx, o); err != nil {
		return nil, errors.Wrap(err, "update order")
	}

	if changed && o.Email != "" {
		s.notify(ctx, mail.Message{
			To:      o.Email,
			Subject: fmt.Sprintf("Order %s is now %s", o.ID, status),
			Body:    fmt.Sprintf("Your order %s status changed to %s.", o.ID, status),
		}, o.ID)
	}

	return o, nil
}

// GetForOwner returns an order only when it belongs to the given identity.
// A mismatch reads as not-found so callers cannot probe other identities'
// orders.
func (s *Service) GetForOwner(ctx context.Context, owner identity.Identity, orderID string) (*Order, error) {
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if owner.IsZero() || o.Owner != owner {
		return nil, ErrNotFound
	}
	return o, nil
}

// Get returns an order by id without an ownership check. Privileged callers
// only.
func (s *Service) Get(ctx context.Context, orderID string) (*Order, error) {
	return s.orders.GetByID(ctx, orderID)
}

// ListForOwner returns the identity's order history, newest first.
func (s *Service) ListForOwner(ctx context.Context, owner identity.Identity) ([]Order, error) {
	if owner.IsZero() {
		return []Order{}, nil
	}
	out, err := s.orders.ListByOwner(ctx, owner)
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}
	return out, nil
}

// ListAll returns every order. Privileged callers only.
func (s *Service) ListAll(ctx context.Context) ([]Order, error) {
	out, err := s.orders.ListAll(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}
	return out, nil
}

// backfillTotals derives the monetary fields from the snapshotted item
// prices for orders persisted before those fields existed.
func (s *Service) backfillTotals(o *Order) {
	lines := make([]pricing.Line, len(o.Items))
	for i, it := range o.Items {
		lines[i] = pricing.Line{UnitPrice: it.UnitPrice, Quantity: it.Quantity}
	}
	totals := pricing.Quote(lines)
	o.Subtotal = totals.Subtotal
	o.Tax = totals.Tax
	o.Shipping = totals.Shipping
	o.Total = totals.Total

	s.lg.Info("backfilled order totals", zap.String("order_id", o.ID))
}

// cleanupOwnerCart defensively removes any cart still associated with the
// order's owner, verifies the delete took, and retries once if the cart is
// somehow still there. Failures are logged, never surfaced.
func (s *Service) cleanupOwnerCart(ctx context.Context, o *Order) {
	if o.Owner.IsZero() {
		return
	}

	if err := s.carts.Delete(ctx, o.Owner); err != nil {
		s.lg.Warn("cart cleanup on payment failed", zap.String("order_id", o.ID), zap.Error(err))
		return
	}

	// Verify by re-query; a surviving cart is an anomaly worth logging.
	if _, err := s.carts.Get(ctx, o.Owner); err == nil {
		s.lg.Warn("cart survived deletion, retrying", zap.String("order_id", o.ID))
		if err := s.carts.Delete(ctx, o.Owner); err != nil {
			s.lg.Warn("cart cleanup retry failed", zap.String("order_id", o.ID), zap.Error(err))
		}
	} else if !errors.Is(err, cart.ErrNotFound) {
		s.lg.Warn("cart cleanup verification failed", zap.String("order_id", o.ID), zap.Error(err))
	}
}

// notify dispatches mail without blocking the request and without letting a
// delivery failure propagate. The send outlives the request context.
func (s *Service) notify(ctx context.Context, msg mail.Message, orderID string) {
	sendCtx := context.WithoutCancel(ctx)
	s.dispatch(func() {
		if err := s.mailer.Send(sendCtx, msg); err != nil {
			s.lg.Warn("order notification failed",
				zap.String("order_id", orderID),
				zap.String("to", msg.To),
				zap.Error(err),
			)
		}
	})
}

func validateShipping(a ShippingAddress) error {
	switch {
	case a.FullName == "":
		return &MissingFieldError{Field: "full name"}
	case a.Street == "":
		return &MissingFieldError{Field: "street"}
	case a.City == "":
		return &MissingFieldError{Field: "city"}
	case a.PostalCode == "":
		return &MissingFieldError{Field: "postal code"}
	case a.Country == "":
		return &MissingFieldError{Field: "country"}
	}
	return nil
}
