package handler

import (
	"net/http"

	"github.com/merchkit/storefront/internal/domain/user"
)

type registerRequest struct {
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
	FirstName       string `json:"firstName"`
	LastName        string `json:"lastName"`
}

type authResponse struct {
	Token string   `json:"token"`
	User  userView `json:"user"`
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	u, token, err := h.users.Register(r.Context(), user.RegisterRequest{
		Email:           req.Email,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
		FirstName:       req.FirstName,
		LastName:        req.LastName,
	})
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, authResponse{Token: token, User: newUserView(u)})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	u, token, err := h.users.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, authResponse{Token: token, User: newUserView(u)})
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	uid, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	u, err := h.users.Get(r.Context(), uid)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newUserView(u))
}

type favoriteRequest struct {
	ProductID string `json:"productId"`
}

func (h *Handler) toggleFavorite(w http.ResponseWriter, r *http.Request) {
	uid, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	var req favoriteRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	favorites, err := h.users.ToggleFavorite(r.Context(), uid, req.ProductID)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	if favorites == nil {
		favorites = []string{}
	}
	writeJSON(w, http.StatusOK, map[string][]string{"favorites": favorites})
}

func (h *Handler) upsertAddress(w http.ResponseWriter, r *http.Request) {
	uid, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	var addr user.Address
	if !decodeJSON(w, r, &addr) {
		return
	}

	addresses, err := h.users.UpsertAddress(r.Context(), uid, addr)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]user.Address{"addresses": addresses})
}

func (h *Handler) removeAddress(w http.ResponseWriter, r *http.Request) {
	uid, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	addresses, err := h.users.RemoveAddress(r.Context(), uid, r.PathValue("id"))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	if addresses == nil {
		addresses = []user.Address{}
	}
	writeJSON(w, http.StatusOK, map[string][]user.Address{"addresses": addresses})
}
