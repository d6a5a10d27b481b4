package user

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Validation and authentication errors.
var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrPasswordMismatch   = errors.New("passwords do not match")
	ErrPasswordTooShort   = errors.New("password must be at least 6 characters")
)

// MissingFieldError names a required field absent from the input.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("%s is required", e.Field)
}

const minPasswordLen = 6

// TokenIssuer signs access tokens for authenticated users.
// identity.Resolver satisfies it.
type TokenIssuer interface {
	IssueToken(userID string) (string, error)
}

// Service implements account registration, login, and profile mutation.
type Service struct {
	users  Repository
	tokens TokenIssuer
	now    func() time.Time
}

// NewService creates a user Service.
func NewService(users Repository, tokens TokenIssuer) *Service {
	return &Service{users: users, tokens: tokens, now: time.Now}
}

// RegisterRequest is the input for Register.
type RegisterRequest struct {
	Email           string
	Password        string
	ConfirmPassword string
	FirstName       string
	LastName        string
}

// Register creates an account and returns it with a signed access token.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*User, string, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	switch {
	case email == "" || !strings.Contains(email, "@"):
		return nil, "", &MissingFieldError{Field: "valid email"}
	case len(req.Password) < minPasswordLen:
		return nil, "", ErrPasswordTooShort
	case req.Password != req.ConfirmPassword:
		return nil, "", ErrPasswordMismatch
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", errors.Wrap(err, "hash password")
	}

	u := &User{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: string(hash),
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
		CreatedAt:    s.now(),
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, "", errors.Wrap(err, "create user")
	}

	token, err := s.tokens.IssueToken(u.ID)
	if err != nil {
		return nil, "", errors.Wrap(err, "issue token")
	}
	return u, token, nil
}

// Login verifies credentials and returns the user with a signed access
// token. Unknown email and wrong password are indistinguishable to the
// caller.
func (s *Service) Login(ctx context.Context, email, password string) (*User, string, error) {
	u, err := s.users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", errors.Wrap(err, "lookup user")
	}

	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return nil, "", ErrInvalidCredentials
	}

	token, err := s.tokens.IssueToken(u.ID)
	if err != nil {
		return nil, "", errors.Wrap(err, "issue token")
	}
	return u, token, nil
}

// Get returns a user by id.
func (s *Service) Get(ctx context.Context, id string) (*User, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, errors.Wrap(err, "get user")
	}
	return u, nil
}

// ToggleFavorite adds the product to the user's favorites when absent and
// removes it when present, returning the updated set.
func (s *Service) ToggleFavorite(ctx context.Context, userID, productID string) ([]string, error) {
	if productID == "" {
		return nil, &MissingFieldError{Field: "product id"}
	}

	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "get user")
	}

	kept := u.Favorites[:0]
	removed := false
	for _, id := range u.Favorites {
		if id == productID {
			removed = true
			continue
		}
		kept = append(kept, id)
	}
	u.Favorites = kept
	if !removed {
		u.Favorites = append(u.Favorites, productID)
	}

	if err := s.users.Update(ctx, u); err != nil {
		return nil, errors.Wrap(err, "update user")
	}
	return u.Favorites, nil
}

// UpsertAddress inserts or replaces a saved address, then normalizes the
// default flag so that no matter what the input claimed, at most one address
// is the default after the write. Setting a new default unsets all others.
func (s *Service) UpsertAddress(ctx context.Context, userID string, addr Address) ([]Address, error) {
	switch {
	case addr.FullName == "":
		return nil, &MissingFieldError{Field: "full name"}
	case addr.Street == "":
		return nil, &MissingFieldError{Field: "street"}
	case addr.City == "":
		return nil, &MissingFieldError{Field: "city"}
	case addr.PostalCode == "":
		return nil, &MissingFieldError{Field: "postal code"}
	case addr.Country == "":
		return nil, &MissingFieldError{Field: "country"}
	}

	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "get user")
	}

	if addr.ID == "" {
		addr.ID = uuid.New().String()
		u.Addresses = append(u.Addresses, addr)
	} else {
		replaced := false
		for i := range u.Addresses {
			if u.Addresses[i].ID == addr.ID {
				u.Addresses[i] = addr
				replaced = true
				break
			}
		}
		if !replaced {
			u.Addresses = append(u.Addresses, addr)
		}
	}

	normalizeDefault(u.Addresses, addr)

	if err := s.users.Update(ctx, u); err != nil {
		return nil, errors.Wrap(err, "update user")
	}
	return u.Addresses, nil
}

// RemoveAddress deletes a saved address by id. Removing an unknown id is a
// no-op.
func (s *Service) RemoveAddress(ctx context.Context, userID, addressID string) ([]Address, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "get user")
	}

	kept := u.Addresses[:0]
	for _, a := range u.Addresses {
		if a.ID != addressID {
			kept = append(kept, a)
		}
	}
	u.Addresses = kept

	if err := s.users.Update(ctx, u); err != nil {
		return nil, errors.Wrap(err, "update user")
	}
	return u.Addresses, nil
}

// normalizeDefault enforces the exclusivity invariant: when the written
// address claims the default, every other address loses it; otherwise any
// accidental extra defaults beyond the first are cleared.
func normalizeDefault(addrs []Address, written Address) {
	if written.IsDefault {
		for i := range addrs {
			addrs[i].IsDefault = addrs[i].ID == written.ID
		}
		return
	}

	seen := false
	for i := range addrs {
		if addrs[i].IsDefault {
			if seen {
				addrs[i].IsDefault = false
			}
			seen = true
		}
	}
}
