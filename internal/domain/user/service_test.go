package user

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// --- Mock implementations ---

type mockUserRepo struct {
	byID    map[string]*User
	byEmail map[string]*User
}

func newUserRepo() *mockUserRepo {
	return &mockUserRepo{byID: map[string]*User{}, byEmail: map[string]*User{}}
}

func (m *mockUserRepo) Create(_ context.Context, u *User) error {
	if _, ok := m.byEmail[u.Email]; ok {
		return ErrEmailTaken
	}
	cp := *u
	m.byID[u.ID] = &cp
	m.byEmail[u.Email] = &cp
	return nil
}

func (m *mockUserRepo) GetByID(_ context.Context, id string) (*User, error) {
	u, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	cp.Favorites = append([]string(nil), u.Favorites...)
	cp.Addresses = append([]Address(nil), u.Addresses...)
	return &cp, nil
}

func (m *mockUserRepo) GetByEmail(_ context.Context, email string) (*User, error) {
	u, ok := m.byEmail[email]
	if !ok {
		return nil, ErrNotFound
	}
	return m.GetByID(context.Background(), u.ID)
}

func (m *mockUserRepo) Update(_ context.Context, u *User) error {
	stored, ok := m.byID[u.ID]
	if !ok {
		return ErrNotFound
	}
	*stored = *u
	return nil
}

type staticTokens struct{}

func (staticTokens) IssueToken(string) (string, error) { return "token", nil }

func newTestService() (*Service, *mockUserRepo) {
	repo := newUserRepo()
	return NewService(repo, staticTokens{}), repo
}

func register(t *testing.T, svc *Service, email string) *User {
	t.Helper()
	u, _, err := svc.Register(context.Background(), RegisterRequest{
		Email:           email,
		Password:        "hunter22",
		ConfirmPassword: "hunter22",
		FirstName:       "Ada",
		LastName:        "Lovelace",
	})
	require.NoError(t, err)
	return u
}

// --- Tests ---

func TestRegisterAndLogin(t *testing.T) {
	svc, _ := newTestService()
	u := register(t, svc, "ada@example.com")

	assert.Equal(t, "Ada Lovelace", u.DisplayName())
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("hunter22")))

	logged, token, err := svc.Login(context.Background(), "Ada@Example.com ", "hunter22")
	require.NoError(t, err)
	assert.Equal(t, u.ID, logged.ID)
	assert.Equal(t, "token", token)
}

func TestRegisterValidation(t *testing.T) {
	svc, _ := newTestService()

	var mf *MissingFieldError
	_, _, err := svc.Register(context.Background(), RegisterRequest{Password: "hunter22", ConfirmPassword: "hunter22"})
	assert.ErrorAs(t, err, &mf)

	_, _, err = svc.Register(context.Background(), RegisterRequest{
		Email: "a@b.c", Password: "hunter22", ConfirmPassword: "different",
	})
	assert.ErrorIs(t, err, ErrPasswordMismatch)

	register(t, svc, "dup@example.com")
	_, _, err = svc.Register(context.Background(), RegisterRequest{
		Email: "dup@example.com", Password: "hunter22", ConfirmPassword: "hunter22",
	})
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestLoginBadCredentials(t *testing.T) {
	svc, _ := newTestService()
	register(t, svc, "ada@example.com")

	_, _, err := svc.Login(context.Background(), "nobody@example.com", "hunter22")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, _, err = svc.Login(context.Background(), "ada@example.com", "wrong-pass")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestToggleFavorite(t *testing.T) {
	svc, _ := newTestService()
	u := register(t, svc, "ada@example.com")

	favs, err := svc.ToggleFavorite(context.Background(), u.ID, "p1")
	require.NoError(t, err)
	assert.Equal(t, []string{"p1"}, favs)

	favs, err = svc.ToggleFavorite(context.Background(), u.ID, "p2")
	require.NoError(t, err)
	assert.Equal(t, []string{"p1", "p2"}, favs)

	// Toggling an existing favorite removes it.
	favs, err = svc.ToggleFavorite(context.Background(), u.ID, "p1")
	require.NoError(t, err)
	assert.Equal(t, []string{"p2"}, favs)
}

func validAddress(name string, def bool) Address {
	return Address{
		FullName:   name,
		Street:     "1 Main St",
		City:       "Springfield",
		PostalCode: "12345",
		Country:    "US",
		IsDefault:  def,
	}
}

func TestUpsertAddressDefaultExclusivity(t *testing.T) {
	svc, _ := newTestService()
	u := register(t, svc, "ada@example.com")

	addrs, err := svc.UpsertAddress(context.Background(), u.ID, validAddress("Home", true))
	require.NoError(t, err)
	require.Len(t, addrs, 1)
	assert.True(t, addrs[0].IsDefault)

	addrs, err = svc.UpsertAddress(context.Background(), u.ID, validAddress("Office", true))
	require.NoError(t, err)
	require.Len(t, addrs, 2)

	defaults := 0
	for _, a := range addrs {
		if a.IsDefault {
			defaults++
			assert.Equal(t, "Office", a.FullName)
		}
	}
	assert.Equal(t, 1, defaults, "exactly one default after every write")
}

func TestUpsertAddressValidation(t *testing.T) {
	svc, _ := newTestService()
	u := register(t, svc, "ada@example.com")

	addr := validAddress("Home", false)
	addr.PostalCode = ""

	var mf *MissingFieldError
	_, err := svc.UpsertAddress(context.Background(), u.ID, addr)
	require.ErrorAs(t, err, &mf)
	assert.Equal(t, "postal code", mf.Field)
}

func TestRemoveAddress(t *testing.T) {
	svc, _ := newTestService()
	u := register(t, svc, "ada@example.com")

	addrs, err := svc.UpsertAddress(context.Background(), u.ID, validAddress("Home", true))
	require.NoError(t, err)

	addrs, err = svc.RemoveAddress(context.Background(), u.ID, addrs[0].ID)
	require.NoError(t, err)
	assert.Empty(t, addrs)

	// Unknown id is a no-op.
	_, err = svc.RemoveAddress(context.Background(), u.ID, "missing")
	assert.NoError(t, err)
}
