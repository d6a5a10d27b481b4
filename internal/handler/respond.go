package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/merchkit/storefront/internal/domain/cart"
	"github.com/merchkit/storefront/internal/domain/order"
	"github.com/merchkit/storefront/internal/domain/product"
	"github.com/merchkit/storefront/internal/domain/user"
)

const maxBodyBytes = 1 << 20

// errorResponse is the body of every non-2xx response.
type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Code: status, Message: message})
}

// decodeJSON reads the request body into v. A malformed body is a
// validation failure; it writes 400 and returns false.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// writeDomainError maps a domain error onto the response taxonomy:
// validation errors are 4xx with the domain message, not-found is 404,
// everything else is a generic 500 with the cause logged server-side.
func (h *Handler) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, cart.ErrIdentityRequired),
		errors.Is(err, user.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, err.Error())

	case errors.Is(err, user.ErrEmailTaken),
		errors.Is(err, order.ErrAlreadyPaid):
		writeError(w, http.StatusConflict, err.Error())

	case errors.Is(err, cart.ErrProductRequired),
		errors.Is(err, order.ErrEmptyItems),
		errors.Is(err, user.ErrPasswordMismatch),
		errors.Is(err, user.ErrPasswordTooShort),
		isValidation(err):
		writeError(w, http.StatusBadRequest, err.Error())

	case errors.Is(err, cart.ErrNotFound),
		errors.Is(err, cart.ErrItemNotFound),
		errors.Is(err, order.ErrNotFound),
		errors.Is(err, product.ErrNotFound),
		errors.Is(err, user.ErrNotFound),
		isMissingProduct(err):
		writeError(w, http.StatusNotFound, err.Error())

	default:
		zctx.From(r.Context()).Error("request failed",
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// isValidation matches the typed validation errors from the domain
// packages.
func isValidation(err error) bool {
	var (
		cartQty   *cart.InvalidQuantityError
		orderQty  *order.InvalidQuantityError
		orderMiss *order.MissingFieldError
		userMiss  *user.MissingFieldError
		badStatus *order.InvalidStatusError
	)
	return errors.As(err, &cartQty) ||
		errors.As(err, &orderQty) ||
		errors.As(err, &orderMiss) ||
		errors.As(err, &userMiss) ||
		errors.As(err, &badStatus)
}

// isMissingProduct matches the order factory's per-item unknown-product
// error, which carries the offending id. It reports the same condition as
// product.ErrNotFound and maps to the same status.
func isMissingProduct(err error) bool {
	var pnf *order.ProductNotFoundError
	return errors.As(err, &pnf)
}
