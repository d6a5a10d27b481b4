package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/merchkit/storefront/internal/domain/identity"
	"github.com/merchkit/storefront/internal/domain/order"
)

const (
	orderColumns = `id, user_id, session_id, items, shipping_address, payment_method, email,
		subtotal, tax, shipping, total, status, is_paid, paid_at, created_at`

	createOrderSQL = `INSERT INTO orders (id, user_id, session_id, items, shipping_address,
			payment_method, email, subtotal, tax, shipping, total, status, is_paid, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	getOrderByIDSQL = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	listOrdersByUserSQL = `SELECT ` + orderColumns + ` FROM orders
		WHERE user_id = $1 ORDER BY created_at DESC`

	listOrdersBySessionSQL = `SELECT ` + orderColumns + ` FROM orders
		WHERE session_id = $1 ORDER BY created_at DESC`

	listAllOrdersSQL = `SELECT ` + orderColumns + ` FROM orders ORDER BY created_at DESC`

	// Only the mutable fields: status, payment flags, and the totals
	// touched by the legacy backfill. Everything else is immutable.
	updateOrderSQL = `UPDATE orders SET
			status = $2, is_paid = $3, paid_at = $4,
			subtotal = $5, tax = $6, shipping = $7, total = $8
		WHERE id = $1`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL. Item
// snapshots and the shipping address are stored as JSONB.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create persists a new order. The owner identity is split into the
// user_id/session_id pair; a CHECK constraint keeps exactly one set.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	itemsJSON, err := json.Marshal(o.Items)
	if err != nil {
		return fmt.Errorf("marshaling order items: %w", err)
	}
	addressJSON, err := json.Marshal(o.ShippingAddress)
	if err != nil {
		return fmt.Errorf("marshaling shipping address: %w", err)
	}

	userID, sessionID := splitOwner(o.Owner)

	_, err = r.pool.Exec(ctx, createOrderSQL,
		o.ID, userID, sessionID, itemsJSON, addressJSON,
		o.PaymentMethod, o.Email,
		o.Subtotal, o.Tax, o.Shipping, o.Total,
		string(o.Status), o.IsPaid, o.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating order %q: %w", o.ID, err)
	}
	return nil
}

// GetByID returns an order or order.ErrNotFound.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, getOrderByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}

	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}
	return &o, nil
}

// ListByOwner returns the identity's orders, newest first. The user/session
// routing for lookups happens here and nowhere else.
func (r *OrderRepository) ListByOwner(ctx context.Context, owner identity.Identity) ([]order.Order, error) {
	var rows pgx.Rows
	var err error
	if uid, ok := owner.UserID(); ok {
		rows, err = r.pool.Query(ctx, listOrdersByUserSQL, uid)
	} else if sid, ok := owner.SessionID(); ok {
		rows, err = r.pool.Query(ctx, listOrdersBySessionSQL, sid)
	} else {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}

	out, err := pgx.CollectRows(rows, scanOrder)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	return out, nil
}

// ListAll returns every order, newest first.
func (r *OrderRepository) ListAll(ctx context.Context) ([]order.Order, error) {
	rows, err := r.pool.Query(ctx, listAllOrdersSQL)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}

	out, err := pgx.CollectRows(rows, scanOrder)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	return out, nil
}

// Update persists the mutable order fields.
func (r *OrderRepository) Update(ctx context.Context, o *order.Order) error {
	tag, err := r.pool.Exec(ctx, updateOrderSQL,
		o.ID, string(o.Status), o.IsPaid, o.PaidAt,
		o.Subtotal, o.Tax, o.Shipping, o.Total,
	)
	if err != nil {
		return fmt.Errorf("updating order %q: %w", o.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotFound
	}
	return nil
}

func splitOwner(owner identity.Identity) (userID, sessionID *string) {
	if uid, ok := owner.UserID(); ok {
		return &uid, nil
	}
	if sid, ok := owner.SessionID(); ok {
		return nil, &sid
	}
	return nil, nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o           order.Order
		userID      *string
		sessionID   *string
		itemsJSON   []byte
		addressJSON []byte
		status      string
		paidAt      *time.Time
	)

	err := row.Scan(
		&o.ID, &userID, &sessionID, &itemsJSON, &addressJSON,
		&o.PaymentMethod, &o.Email,
		&o.Subtotal, &o.Tax, &o.Shipping, &o.Total,
		&status, &o.IsPaid, &paidAt, &o.CreatedAt,
	)
	if err != nil {
		return order.Order{}, err
	}

	if err := json.Unmarshal(itemsJSON, &o.Items); err != nil {
		return order.Order{}, fmt.Errorf("unmarshaling order items: %w", err)
	}
	if err := json.Unmarshal(addressJSON, &o.ShippingAddress); err != nil {
		return order.Order{}, fmt.Errorf("unmarshaling shipping address: %w", err)
	}

	switch {
	case userID != nil:
		o.Owner = identity.User(*userID)
	case sessionID != nil:
		o.Owner = identity.Session(*sessionID)
	}
	o.Status = order.Status(status)
	o.PaidAt = paidAt

	return o, nil
}
