package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/merchkit/storefront/internal/domain/user"
)

const (
	userColumns = `id, email, password_hash, first_name, last_name, is_admin, favorites, addresses, created_at`

	createUserSQL = `INSERT INTO users (id, email, password_hash, first_name, last_name, is_admin, favorites, addresses, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	getUserByIDSQL = `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	getUserByEmailSQL = `SELECT ` + userColumns + ` FROM users WHERE email = $1`

	updateUserSQL = `UPDATE users SET
			first_name = $2, last_name = $3, favorites = $4, addresses = $5
		WHERE id = $1`
)

// uniqueViolation is the PostgreSQL error code for duplicate keys.
const uniqueViolation = "23505"

var _ user.Repository = (*UserRepository)(nil)

// UserRepository implements user.Repository backed by PostgreSQL. The
// favorites set and address list are stored as JSONB.
type UserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository returns a UserRepository that uses the given pool.
func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

// Create inserts a new account, mapping a duplicate email onto
// user.ErrEmailTaken.
func (r *UserRepository) Create(ctx context.Context, u *user.User) error {
	favsJSON, addrsJSON, err := marshalProfile(u)
	if err != nil {
		return err
	}

	_, err = r.pool.Exec(ctx, createUserSQL,
		u.ID, u.Email, u.PasswordHash, u.FirstName, u.LastName, u.IsAdmin,
		favsJSON, addrsJSON, u.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return user.ErrEmailTaken
		}
		return fmt.Errorf("creating user %q: %w", u.ID, err)
	}
	return nil
}

// GetByID returns a user or user.ErrNotFound.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*user.User, error) {
	return r.getOne(ctx, getUserByIDSQL, id)
}

// GetByEmail returns a user or user.ErrNotFound.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*user.User, error) {
	return r.getOne(ctx, getUserByEmailSQL, email)
}

// Update replaces the mutable profile fields.
func (r *UserRepository) Update(ctx context.Context, u *user.User) error {
	favsJSON, addrsJSON, err := marshalProfile(u)
	if err != nil {
		return err
	}

	tag, err := r.pool.Exec(ctx, updateUserSQL,
		u.ID, u.FirstName, u.LastName, favsJSON, addrsJSON,
	)
	if err != nil {
		return fmt.Errorf("updating user %q: %w", u.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return user.ErrNotFound
	}
	return nil
}

func (r *UserRepository) getOne(ctx context.Context, sql, arg string) (*user.User, error) {
	rows, err := r.pool.Query(ctx, sql, arg)
	if err != nil {
		return nil, fmt.Errorf("getting user: %w", err)
	}

	u, err := pgx.CollectExactlyOneRow(rows, scanUser)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, user.ErrNotFound
		}
		return nil, fmt.Errorf("getting user: %w", err)
	}
	return &u, nil
}

func marshalProfile(u *user.User) (favs, addrs []byte, err error) {
	favorites := u.Favorites
	if favorites == nil {
		favorites = []string{}
	}
	addresses := u.Addresses
	if addresses == nil {
		addresses = []user.Address{}
	}

	if favs, err = json.Marshal(favorites); err != nil {
		return nil, nil, fmt.Errorf("marshaling favorites: %w", err)
	}
	if addrs, err = json.Marshal(addresses); err != nil {
		return nil, nil, fmt.Errorf("marshaling addresses: %w", err)
	}
	return favs, addrs, nil
}

func scanUser(row pgx.CollectableRow) (user.User, error) {
	var (
		u         user.User
		favsJSON  []byte
		addrsJSON []byte
	)

	err := row.Scan(
		&u.ID, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName,
		&u.IsAdmin, &favsJSON, &addrsJSON, &u.CreatedAt,
	)
	if err != nil {
		return user.User{}, err
	}

	if err := json.Unmarshal(favsJSON, &u.Favorites); err != nil {
		return user.User{}, fmt.Errorf("unmarshaling favorites: %w", err)
	}
	if err := json.Unmarshal(addrsJSON, &u.Addresses); err != nil {
		return user.User{}, fmt.Errorf("unmarshaling addresses: %w", err)
	}
	return u, nil
}
