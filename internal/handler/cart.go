package handler

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/merchkit/storefront/internal/domain/identity"
	"github.com/merchkit/storefront/internal/domain/pricing"
)

func (h *Handler) getCart(w http.ResponseWriter, r *http.Request) {
	owner := h.resolver.Resolve(r)

	view, err := h.carts.Get(r.Context(), owner)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.cartView(view))
}

type cartAddRequest struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
	Size      string `json:"size"`
	Color     string `json:"color"`
}

func (h *Handler) addToCart(w http.ResponseWriter, r *http.Request) {
	var req cartAddRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	owner := h.resolver.Resolve(r)

	view, err := h.carts.Add(r.Context(), owner, req.ProductID, req.Quantity, req.Size, req.Color)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.cartView(view))
}

type cartUpdateRequest struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

func (h *Handler) updateCart(w http.ResponseWriter, r *http.Request) {
	var req cartUpdateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	owner := h.resolver.Resolve(r)

	view, err := h.carts.UpdateQuantity(r.Context(), owner, req.ProductID, req.Quantity)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.cartView(view))
}

type cartRemoveRequest struct {
	ProductID string `json:"productId"`
}

func (h *Handler) removeFromCart(w http.ResponseWriter, r *http.Request) {
	var req cartRemoveRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	owner := h.resolver.Resolve(r)

	view, err := h.carts.Remove(r.Context(), owner, req.ProductID)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.cartView(view))
}

// clearCart requires a verified (authenticated) identity: a guest session
// can drop lines one by one but cannot wipe a cart wholesale.
func (h *Handler) clearCart(w http.ResponseWriter, r *http.Request) {
	uid, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	if err := h.carts.Clear(r.Context(), identity.User(uid)); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"cleared": true})
}

type quoteLine struct {
	Price    float64 `json:"price"`
	Quantity int     `json:"quantity"`
}

type quoteRequest struct {
	Items []quoteLine `json:"items"`
}

// quote computes display-side totals for arbitrary price/quantity pairs.
// Nothing is persisted and the prices are not authoritative; order
// placement re-resolves prices from the catalog.
func (h *Handler) quote(w http.ResponseWriter, r *http.Request) {
	var req quoteRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	lines := make([]pricing.Line, len(req.Items))
	for i, it := range req.Items {
		lines[i] = pricing.Line{
			UnitPrice: decimal.NewFromFloat(it.Price),
			Quantity:  it.Quantity,
		}
	}
	writeJSON(w, http.StatusOK, newTotalsView(pricing.Quote(lines)))
}
