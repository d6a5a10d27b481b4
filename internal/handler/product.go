package handler

import (
	"net/http"
)

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	list, err := h.products.List(r.Context())
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	views := make([]productView, len(list))
	for i, p := range list {
		views[i] = h.productView(p)
	}
	writeJSON(w, http.StatusOK, map[string]any{"products": views})
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.products.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.productView(*p))
}
