package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/merchkit/storefront/internal/domain/cart"
	"github.com/merchkit/storefront/internal/domain/identity"
	"github.com/merchkit/storefront/internal/domain/order"
	"github.com/merchkit/storefront/internal/domain/product"
	"github.com/merchkit/storefront/internal/domain/user"
	"github.com/merchkit/storefront/internal/mail"
)

type memProducts struct {
	byID map[string]product.Product
}

func (m *memProducts) List(context.Context) ([]product.Product, error) {
	out := make([]product.Product, 0, len(m.byID))
	for _, p := range m.byID {
		out = append(out, p)
	}
	return out, nil
}

func (m *memProducts) GetByID(_ context.Context, id string) (*product.Product, error) {
	p, ok := m.byID[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	return &p, nil
}

func (m *memProducts) GetByIDs(_ context.Context, ids []string) ([]product.Product, error) {
	var out []product.Product
	for _, id := range ids {
		if p, ok := m.byID[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

type memCarts struct {
	byOwner map[string]*cart.Cart
}

func (m *memCarts) Get(_ context.Context, owner identity.Identity) (*cart.Cart, error) {
	c, ok := m.byOwner[owner.String()]
	if !ok {
		return nil, cart.ErrNotFound
	}
	return c, nil
}

func (m *memCarts) Upsert(_ context.Context, c *cart.Cart) error {
	m.byOwner[c.Owner.String()] = c
	return nil
}

func (m *memCarts) Delete(_ context.Context, owner identity.Identity) error {
	delete(m.byOwner, owner.String())
	return nil
}

type memOrders struct {
	byID map[string]*order.Order
}

func (m *memOrders) Create(_ context.Context, o *order.Order) error {
	cp := *o
	m.byID[o.ID] = &cp
	return nil
}

func (m *memOrders) GetByID(_ context.Context, id string) (*order.Order, error) {
	o, ok := m.byID[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *memOrders) ListByOwner(_ context.Context, owner identity.Identity) ([]order.Order, error) {
	var out []order.Order
	for _, o := range m.byID {
		if o.Owner == owner {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (m *memOrders) ListAll(context.Context) ([]order.Order, error) {
	var out []order.Order
	for _, o := range m.byID {
		out = append(out, *o)
	}
	return out, nil
}

func (m *memOrders) Update(_ context.Context, o *order.Order) error {
	if _, ok := m.byID[o.ID]; !ok {
		return order.ErrNotFound
	}
	cp := *o
	m.byID[o.ID] = &cp
	return nil
}

type memUsers struct {
	byID map[string]*user.User
}

func (m *memUsers) Create(_ context.Context, u *user.User) error {
	for _, existing := range m.byID {
		if existing.Email == u.Email {
			return user.ErrEmailTaken
		}
	}
	cp := *u
	m.byID[u.ID] = &cp
	return nil
}

func (m *memUsers) GetByID(_ context.Context, id string) (*user.User, error) {
	u, ok := m.byID[id]
	if !ok {
		return nil, user.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memUsers) GetByEmail(_ context.Context, email string) (*user.User, error) {
	for _, u := range m.byID {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, user.ErrNotFound
}

func (m *memUsers) Update(_ context.Context, u *user.User) error {
	if _, ok := m.byID[u.ID]; !ok {
		return user.ErrNotFound
	}
	cp := *u
	m.byID[u.ID] = &cp
	return nil
}

type memNewsletter struct {
	emails map[string]bool
}

func (m *memNewsletter) Subscribe(_ context.Context, email string, _ time.Time) (bool, error) {
	if m.emails[email] {
		return false, nil
	}
	m.emails[email] = true
	return true, nil
}

type memMailer struct {
	sent []mail.Message
}

func (m *memMailer) Send(_ context.Context, msg mail.Message) error {
	m.sent = append(m.sent, msg)
	return nil
}

type fixture struct {
	handler  http.Handler
	resolver *identity.Resolver
	products *memProducts
	carts    *memCarts
	orders   *memOrders
	users    *memUsers
	mailer   *memMailer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	lg := zap.NewNop()
	resolver := identity.NewResolver([]byte("test-secret"), lg)

	products := &memProducts{byID: map[string]product.Product{
		"p1": {ID: "p1", SKU: "TS-01", Name: "Tee", Price: decimal.NewFromInt(100), Sizes: []string{"M", "L"}},
		"p2": {ID: "p2", SKU: "HD-01", Name: "Hoodie", Price: decimal.NewFromInt(50)},
	}}
	carts := &memCarts{byOwner: map[string]*cart.Cart{}}
	orders := &memOrders{byID: map[string]*order.Order{}}
	users := &memUsers{byID: map[string]*user.User{}}
	newsletter := &memNewsletter{emails: map[string]bool{}}

	cartSvc := cart.NewService(carts, products)
	orderSvc := order.NewService(orders, products, users, carts, mail.NewLogMailer(lg), lg)
	userSvc := user.NewService(users, resolver)

	mailer := &memMailer{}
	h := NewHandler(Config{}, resolver, products, cartSvc, orderSvc, userSvc, newsletter, mailer)
	h.dispatch = func(fn func()) { fn() }
	return &fixture{
		handler:  h.Routes(),
		resolver: resolver,
		products: products,
		carts:    carts,
		orders:   orders,
		users:    users,
		mailer:   mailer,
	}
}

func (f *fixture) do(t *testing.T, method, path string, body any, mod func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if mod != nil {
		mod(req)
	}
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, req)
	return w
}

func withSession(id string) func(*http.Request) {
	return func(r *http.Request) {
		r.Header.Set(identity.SessionHeader, id)
	}
}

func withBearer(token string) func(*http.Request) {
	return func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+token)
	}
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(w.Body).Decode(&v))
	return v
}

func TestGetCart_Empty(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodGet, "/cart", nil, withSession("session_abc"))

	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody[cartView](t, w)
	assert.Empty(t, body.Items)
}

func TestCartAddAndGet(t *testing.T) {
	f := newFixture(t)
	sess := withSession("session_abc")

	w := f.do(t, http.MethodPost, "/cart/add", cartAddRequest{ProductID: "p1", Quantity: 2, Size: "M"}, sess)
	require.Equal(t, http.StatusOK, w.Code)

	w = f.do(t, http.MethodGet, "/cart", nil, sess)
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody[cartView](t, w)
	require.Len(t, body.Items, 1)
	assert.Equal(t, "p1", body.Items[0].Product.ID)
	assert.Equal(t, 2, body.Items[0].Quantity)
	assert.InDelta(t, 200.0, body.Items[0].LineTotal, 1e-9)
	assert.InDelta(t, 286.0, body.Totals.Total, 1e-9) // 200 + 36 tax + 50 shipping
}

func TestCartAdd_InvalidQuantity(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/cart/add", cartAddRequest{ProductID: "p1", Quantity: 0}, withSession("session_abc"))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	body := decodeBody[errorResponse](t, w)
	assert.Equal(t, http.StatusBadRequest, body.Code)
}

func TestCartAdd_UnknownProduct(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/cart/add", cartAddRequest{ProductID: "ghost", Quantity: 1}, withSession("session_abc"))

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCartRemove_LastLineDeletesCart(t *testing.T) {
	f := newFixture(t)
	sess := withSession("session_abc")

	f.do(t, http.MethodPost, "/cart/add", cartAddRequest{ProductID: "p1", Quantity: 1}, sess)

	w := f.do(t, http.MethodPost, "/cart/remove", cartRemoveRequest{ProductID: "p1"}, sess)
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody[cartView](t, w)
	assert.True(t, body.Deleted)
	assert.Empty(t, body.Items)

	w = f.do(t, http.MethodGet, "/cart", nil, sess)
	assert.Empty(t, decodeBody[cartView](t, w).Items)
}

func TestCartClear_RequiresUser(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/cart/clear", nil, withSession("session_abc"))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestQuote_PinnedTotals(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/cart/quote", quoteRequest{Items: []quoteLine{
		{Price: 100, Quantity: 2},
		{Price: 50, Quantity: 1},
	}}, nil)

	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody[totalsView](t, w)
	assert.InDelta(t, 250.0, body.Subtotal, 1e-9)
	assert.InDelta(t, 45.0, body.Tax, 1e-9)
	assert.InDelta(t, 50.0, body.Shipping, 1e-9)
	assert.InDelta(t, 345.0, body.Total, 1e-9)
}

func TestQuote_EmptyHasNoShipping(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/cart/quote", quoteRequest{}, nil)

	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody[totalsView](t, w)
	assert.Zero(t, body.Shipping)
	assert.Zero(t, body.Total)
}

func validAddress() order.ShippingAddress {
	return order.ShippingAddress{
		FullName:   "Ada Lovelace",
		Street:     "12 Analytical Row",
		City:       "London",
		PostalCode: "N1 7AA",
		Country:    "UK",
	}
}

func TestPlaceOrder_IgnoresClientPrice(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/orders", placeOrderRequest{
		Items: []orderItemRequest{
			{ProductID: "p1", Quantity: 2, Price: 0.01},
			{ProductID: "p2", Quantity: 1, Price: 0.01},
		},
		ShippingAddress: validAddress(),
		PaymentMethod:   "card",
		Email:           "ada@example.com",
	}, withSession("session_abc"))

	require.Equal(t, http.StatusCreated, w.Code)
	body := decodeBody[orderView](t, w)
	assert.InDelta(t, 250.0, body.Subtotal, 1e-9)
	assert.InDelta(t, 345.0, body.Total, 1e-9)
	assert.Equal(t, "pending", body.Status)
	require.Len(t, body.Items, 2)
	assert.InDelta(t, 100.0, body.Items[0].UnitPrice, 1e-9)
}

func TestPlaceOrder_UnknownProduct(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/orders", placeOrderRequest{
		Items:           []orderItemRequest{{ProductID: "ghost", Quantity: 1}},
		ShippingAddress: validAddress(),
		Email:           "ada@example.com",
	}, withSession("session_abc"))

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Empty(t, f.orders.byID, "no partial order on failed resolution")
}

func TestUnknownProduct_SameStatusOnCartAndOrder(t *testing.T) {
	f := newFixture(t)
	sess := withSession("session_abc")

	cartResp := f.do(t, http.MethodPost, "/cart/add",
		cartAddRequest{ProductID: "ghost", Quantity: 1}, sess)
	orderResp := f.do(t, http.MethodPost, "/orders", placeOrderRequest{
		Items:           []orderItemRequest{{ProductID: "ghost", Quantity: 1}},
		ShippingAddress: validAddress(),
		Email:           "ada@example.com",
	}, sess)

	assert.Equal(t, http.StatusNotFound, cartResp.Code)
	assert.Equal(t, http.StatusNotFound, orderResp.Code,
		"an unknown product is the same condition on both paths")
}

func TestPlaceOrder_EmptyItems(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/orders", placeOrderRequest{
		ShippingAddress: validAddress(),
		Email:           "ada@example.com",
	}, withSession("session_abc"))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestOrderLifecycle_PayAndScope(t *testing.T) {
	f := newFixture(t)
	sess := withSession("session_abc")

	w := f.do(t, http.MethodPost, "/orders", placeOrderRequest{
		Items:           []orderItemRequest{{ProductID: "p1", Quantity: 1}},
		ShippingAddress: validAddress(),
		Email:           "ada@example.com",
	}, sess)
	require.Equal(t, http.StatusCreated, w.Code)
	placed := decodeBody[orderView](t, w)

	// A different session cannot see the order.
	w = f.do(t, http.MethodGet, "/orders/"+placed.ID, nil, withSession("session_other"))
	assert.Equal(t, http.StatusNotFound, w.Code)

	// The owner pays it.
	w = f.do(t, http.MethodPost, "/orders/"+placed.ID+"/pay", nil, sess)
	require.Equal(t, http.StatusOK, w.Code)
	paid := decodeBody[orderView](t, w)
	assert.True(t, paid.IsPaid)
	assert.Equal(t, "processing", paid.Status)

	// Paying again is a conflict.
	w = f.do(t, http.MethodPost, "/orders/"+placed.ID+"/pay", nil, sess)
	assert.Equal(t, http.StatusConflict, w.Code)

	// The order shows up in the owner's list.
	w = f.do(t, http.MethodGet, "/orders/me", nil, sess)
	require.Equal(t, http.StatusOK, w.Code)
	list := decodeBody[map[string][]orderView](t, w)
	assert.Len(t, list["orders"], 1)
}

func registerUser(t *testing.T, f *fixture, email string) authResponse {
	t.Helper()
	w := f.do(t, http.MethodPost, "/auth/register", registerRequest{
		Email:           email,
		Password:        "hunter22",
		ConfirmPassword: "hunter22",
		FirstName:       "Grace",
		LastName:        "Hopper",
	}, nil)
	require.Equal(t, http.StatusCreated, w.Code)
	return decodeBody[authResponse](t, w)
}

func TestRegisterLoginMe(t *testing.T) {
	f := newFixture(t)

	auth := registerUser(t, f, "grace@example.com")
	require.NotEmpty(t, auth.Token)

	w := f.do(t, http.MethodGet, "/me", nil, withBearer(auth.Token))
	require.Equal(t, http.StatusOK, w.Code)
	me := decodeBody[userView](t, w)
	assert.Equal(t, "grace@example.com", me.Email)
	assert.Equal(t, "Grace", me.FirstName)

	// Login with the same credentials.
	w = f.do(t, http.MethodPost, "/auth/login", loginRequest{Email: "grace@example.com", Password: "hunter22"}, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	// Wrong password is a 401.
	w = f.do(t, http.MethodPost, "/auth/login", loginRequest{Email: "grace@example.com", Password: "wrong"}, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRegister_DuplicateEmail(t *testing.T) {
	f := newFixture(t)
	registerUser(t, f, "grace@example.com")

	w := f.do(t, http.MethodPost, "/auth/register", registerRequest{
		Email:           "grace@example.com",
		Password:        "hunter22",
		ConfirmPassword: "hunter22",
	}, nil)

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestMe_Unauthenticated(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodGet, "/me", nil, withSession("session_abc"))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestFavoritesToggle(t *testing.T) {
	f := newFixture(t)
	auth := registerUser(t, f, "grace@example.com")

	w := f.do(t, http.MethodPost, "/me/favorites", favoriteRequest{ProductID: "p1"}, withBearer(auth.Token))
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody[map[string][]string](t, w)
	assert.Equal(t, []string{"p1"}, body["favorites"])

	// Toggling again removes it.
	w = f.do(t, http.MethodPost, "/me/favorites", favoriteRequest{ProductID: "p1"}, withBearer(auth.Token))
	require.Equal(t, http.StatusOK, w.Code)
	body = decodeBody[map[string][]string](t, w)
	assert.Empty(t, body["favorites"])
}

func TestAddresses_DefaultExclusive(t *testing.T) {
	f := newFixture(t)
	auth := registerUser(t, f, "grace@example.com")

	addr := user.Address{
		FullName:   "Grace Hopper",
		Street:     "1 Navy Way",
		City:       "Arlington",
		PostalCode: "22202",
		Country:    "US",
		IsDefault:  true,
	}
	w := f.do(t, http.MethodPut, "/me/addresses", addr, withBearer(auth.Token))
	require.Equal(t, http.StatusOK, w.Code)

	addr2 := addr
	addr2.Street = "2 Harbor Ave"
	w = f.do(t, http.MethodPut, "/me/addresses", addr2, withBearer(auth.Token))
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody[map[string][]user.Address](t, w)
	require.Len(t, body["addresses"], 2)
	defaults := 0
	for _, a := range body["addresses"] {
		if a.IsDefault {
			defaults++
		}
	}
	assert.Equal(t, 1, defaults)
}

func TestAdminEndpoints_RequireAdmin(t *testing.T) {
	f := newFixture(t)
	auth := registerUser(t, f, "grace@example.com")

	w := f.do(t, http.MethodGet, "/admin/orders", nil, withBearer(auth.Token))
	assert.Equal(t, http.StatusForbidden, w.Code)

	// Promote and retry.
	f.users.byID[auth.User.ID].IsAdmin = true

	w = f.do(t, http.MethodGet, "/admin/orders", nil, withBearer(auth.Token))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestUpdateStatus_AdminOnly(t *testing.T) {
	f := newFixture(t)
	admin := registerUser(t, f, "admin@example.com")
	f.users.byID[admin.User.ID].IsAdmin = true

	w := f.do(t, http.MethodPost, "/orders", placeOrderRequest{
		Items:           []orderItemRequest{{ProductID: "p1", Quantity: 1}},
		ShippingAddress: validAddress(),
		Email:           "ada@example.com",
	}, withSession("session_abc"))
	require.Equal(t, http.StatusCreated, w.Code)
	placed := decodeBody[orderView](t, w)

	// Guest cannot update status.
	w = f.do(t, http.MethodPut, "/orders/"+placed.ID+"/status", statusRequest{Status: "shipped"}, withSession("session_abc"))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// Admin can.
	w = f.do(t, http.MethodPut, "/orders/"+placed.ID+"/status", statusRequest{Status: "shipped"}, withBearer(admin.Token))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "shipped", decodeBody[orderView](t, w).Status)

	// Invalid status is a validation error.
	w = f.do(t, http.MethodPut, "/orders/"+placed.ID+"/status", statusRequest{Status: "teleported"}, withBearer(admin.Token))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestProducts(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodGet, "/products", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody[map[string][]productView](t, w)
	assert.Len(t, body["products"], 2)

	w = f.do(t, http.MethodGet, "/products/p1", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Tee", decodeBody[productView](t, w).Name)

	w = f.do(t, http.MethodGet, "/products/ghost", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestNewsletter(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/newsletter", newsletterRequest{Email: "Ada@Example.com"}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody[map[string]bool](t, w)
	assert.True(t, body["new"])
	require.Len(t, f.mailer.sent, 1, "first signup sends the welcome mail")
	assert.Equal(t, "ada@example.com", f.mailer.sent[0].To)

	// Second signup succeeds but is not new, and sends no second mail.
	w = f.do(t, http.MethodPost, "/newsletter", newsletterRequest{Email: "ada@example.com"}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	body = decodeBody[map[string]bool](t, w)
	assert.False(t, body["new"])
	assert.Len(t, f.mailer.sent, 1)

	w = f.do(t, http.MethodPost, "/newsletter", newsletterRequest{Email: "not-an-email"}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Len(t, f.mailer.sent, 1)
}

func TestMalformedBody(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/cart/add", bytes.NewBufferString("{not json"))
	req.Header.Set(identity.SessionHeader, "session_abc")
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestImageBaseURL(t *testing.T) {
	h := &Handler{imageBaseURL: "https://cdn.example.com/img"}

	v := h.productView(product.Product{ID: "p1", ImageURL: "/tees/front.png", Price: decimal.Zero})
	assert.Equal(t, "https://cdn.example.com/img/tees/front.png", v.Image)

	v = h.productView(product.Product{ID: "p2", ImageURL: "https://elsewhere.example.com/x.png", Price: decimal.Zero})
	assert.Equal(t, "https://elsewhere.example.com/x.png", v.Image)
}
