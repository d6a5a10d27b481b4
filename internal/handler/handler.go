// Package handler exposes the storefront over HTTP. It translates JSON
// requests into domain calls and domain errors into the three response
// classes clients see: validation, not-found, and internal.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/merchkit/storefront/internal/domain/cart"
	"github.com/merchkit/storefront/internal/domain/identity"
	"github.com/merchkit/storefront/internal/domain/order"
	"github.com/merchkit/storefront/internal/domain/product"
	"github.com/merchkit/storefront/internal/domain/user"
	"github.com/merchkit/storefront/internal/mail"
)

// Config holds non-dependency configuration for the Handler.
type Config struct {
	// ImageBaseURL is prepended to relative image paths in product
	// responses. When empty, image paths are returned as stored.
	ImageBaseURL string
}

// NewsletterRepository records newsletter signups.
type NewsletterRepository interface {
	Subscribe(ctx context.Context, email string, at time.Time) (bool, error)
}

// Handler serves the storefront API, delegating business logic to the
// domain services.
type Handler struct {
	resolver     *identity.Resolver
	products     product.Repository
	carts        *cart.Service
	orders       *order.Service
	users        *user.Service
	newsletter   NewsletterRepository
	mailer       mail.Mailer
	imageBaseURL string
	now          func() time.Time

	// dispatch runs mail sends; asynchronous by default.
	dispatch func(func())
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(
	cfg Config,
	resolver *identity.Resolver,
	products product.Repository,
	carts *cart.Service,
	orders *order.Service,
	users *user.Service,
	newsletter NewsletterRepository,
	mailer mail.Mailer,
) *Handler {
	return &Handler{
		resolver:     resolver,
		products:     products,
		carts:        carts,
		orders:       orders,
		users:        users,
		newsletter:   newsletter,
		mailer:       mailer,
		imageBaseURL: cfg.ImageBaseURL,
		now:          time.Now,
		dispatch:     func(f func()) { go f() },
	}
}

// Routes returns the API route table. Health endpoints are mounted by the
// caller on the same mux.
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /products", h.listProducts)
	mux.HandleFunc("GET /products/{id}", h.getProduct)

	mux.HandleFunc("GET /cart", h.getCart)
	mux.HandleFunc("POST /cart/add", h.addToCart)
	mux.HandleFunc("PUT /cart/update", h.updateCart)
	mux.HandleFunc("POST /cart/remove", h.removeFromCart)
	mux.HandleFunc("POST /cart/clear", h.clearCart)
	mux.HandleFunc("POST /cart/quote", h.quote)

	mux.HandleFunc("POST /orders", h.placeOrder)
	mux.HandleFunc("GET /orders/me", h.listMyOrders)
	mux.HandleFunc("GET /orders/{id}", h.getOrder)
	mux.HandleFunc("POST /orders/{id}/pay", h.payOrder)
	mux.HandleFunc("PUT /orders/{id}/status", h.updateOrderStatus)
	mux.HandleFunc("GET /admin/orders", h.listAllOrders)

	mux.HandleFunc("POST /auth/register", h.register)
	mux.HandleFunc("POST /auth/login", h.login)
	mux.HandleFunc("GET /me", h.me)
	mux.HandleFunc("POST /me/favorites", h.toggleFavorite)
	mux.HandleFunc("PUT /me/addresses", h.upsertAddress)
	mux.HandleFunc("DELETE /me/addresses/{id}", h.removeAddress)

	mux.HandleFunc("POST /newsletter", h.subscribe)

	return mux
}

// requireUser resolves the request identity and rejects anything that is
// not an authenticated user. On failure it writes the response itself and
// returns ok=false.
func (h *Handler) requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := h.resolver.Resolve(r)
	uid, ok := id.UserID()
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return "", false
	}
	return uid, true
}

// requireAdmin is requireUser plus an admin flag check on the stored
// account.
func (h *Handler) requireAdmin(w http.ResponseWriter, r *http.Request) (string, bool) {
	uid, ok := h.requireUser(w, r)
	if !ok {
		return "", false
	}
	u, err := h.users.Get(r.Context(), uid)
	if err != nil {
		h.writeDomainError(w, r, err)
		return "", false
	}
	if !u.IsAdmin {
		writeError(w, http.StatusForbidden, "admin access required")
		return "", false
	}
	return uid, true
}
