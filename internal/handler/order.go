package handler

import (
	"encoding/json"
	"net/http"

	"github.com/merchkit/storefront/internal/domain/order"
)

type orderItemRequest struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
	Size      string `json:"size"`
	Color     string `json:"color"`
	// Price is accepted for shape compatibility with older clients but
	// ignored: the charged amount always comes from the catalog.
	Price float64 `json:"price"`
}

type placeOrderRequest struct {
	Items           []orderItemRequest    `json:"items"`
	ShippingAddress order.ShippingAddress `json:"shippingAddress"`
	PaymentMethod   string                `json:"paymentMethod"`
	Email           string                `json:"email"`
	// PriceDetails is likewise accepted and discarded.
	PriceDetails json.RawMessage `json:"priceDetails"`
}

func (h *Handler) placeOrder(w http.ResponseWriter, r *http.Request) {
	var req placeOrderRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	owner := h.resolver.Resolve(r)

	items := make([]order.ItemRequest, len(req.Items))
	for i, it := range req.Items {
		items[i] = order.ItemRequest{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			Size:      it.Size,
			Color:     it.Color,
		}
	}

	result, err := h.orders.PlaceOrder(r.Context(), owner, order.PlaceOrderRequest{
		Items:           items,
		ShippingAddress: req.ShippingAddress,
		PaymentMethod:   req.PaymentMethod,
		Email:           req.Email,
	})
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, h.placedOrderView(result))
}

func (h *Handler) listMyOrders(w http.ResponseWriter, r *http.Request) {
	owner := h.resolver.Resolve(r)

	list, err := h.orders.ListForOwner(r.Context(), owner)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	views := make([]orderView, len(list))
	for i := range list {
		views[i] = h.orderView(&list[i])
	}
	writeJSON(w, http.StatusOK, map[string]any{"orders": views})
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	owner := h.resolver.Resolve(r)

	o, err := h.orders.GetForOwner(r.Context(), owner, r.PathValue("id"))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.orderView(o))
}

// payOrder simulates payment settlement for an order the caller owns.
func (h *Handler) payOrder(w http.ResponseWriter, r *http.Request) {
	owner := h.resolver.Resolve(r)
	id := r.PathValue("id")

	// Ownership check first so a foreign order id reads as not-found.
	if _, err := h.orders.GetForOwner(r.Context(), owner, id); err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	o, err := h.orders.SettlePayment(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.orderView(o))
}

type statusRequest struct {
	Status string `json:"status"`
}

func (h *Handler) updateOrderStatus(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.requireAdmin(w, r); !ok {
		return
	}

	var req statusRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	o, err := h.orders.UpdateStatus(r.Context(), r.PathValue("id"), req.Status)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.orderView(o))
}

func (h *Handler) listAllOrders(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.requireAdmin(w, r); !ok {
		return
	}

	list, err := h.orders.ListAll(r.Context())
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	views := make([]orderView, len(list))
	for i := range list {
		views[i] = h.orderView(&list[i])
	}
	writeJSON(w, http.StatusOK, map[string]any{"orders": views})
}
