package handler

import (
	"context"
	"net/http"
	netmail "net/mail"
	"strings"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/merchkit/storefront/internal/mail"
)

type newsletterRequest struct {
	Email string `json:"email"`
}

// subscribe records a newsletter signup. Subscribing an address twice is a
// success, not a conflict; the response distinguishes the two, and the
// welcome mail goes out only on the first.
func (h *Handler) subscribe(w http.ResponseWriter, r *http.Request) {
	var req newsletterRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if _, err := netmail.ParseAddress(email); err != nil {
		writeError(w, http.StatusBadRequest, "valid email is required")
		return
	}

	added, err := h.newsletter.Subscribe(r.Context(), email, h.now())
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	if added {
		h.sendWelcome(r.Context(), email)
	}
	writeJSON(w, http.StatusOK, map[string]bool{"subscribed": true, "new": added})
}

// sendWelcome dispatches the signup confirmation without blocking the
// response and without letting a delivery failure surface to the
// subscriber. The send outlives the request context.
func (h *Handler) sendWelcome(ctx context.Context, email string) {
	sendCtx := context.WithoutCancel(ctx)
	h.dispatch(func() {
		err := h.mailer.Send(sendCtx, mail.Message{
			To:      email,
			Subject: "Welcome to the newsletter",
			Body:    "Thanks for subscribing. We'll keep you posted on new drops and offers.",
		})
		if err != nil {
			zctx.From(sendCtx).Warn("welcome mail failed",
				zap.String("to", email),
				zap.Error(err),
			)
		}
	})
}
