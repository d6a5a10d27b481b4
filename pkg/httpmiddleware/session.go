package httpmiddleware

import (
	"net/http"
	"time"

	"github.com/merchkit/storefront/internal/domain/identity"
)

// sessionTTL is how long a guest session cookie remains valid. Long enough
// for a returning visitor to find their cart intact.
const sessionTTL = 30 * 24 * time.Hour

// GuestSession returns a middleware that guarantees every request carries a
// session identifier. Requests that already present one (header or cookie)
// pass through unchanged; otherwise a fresh session is minted and set both
// on the request (so downstream resolution sees it) and as a response
// cookie. Authenticated requests still receive a cookie, which keeps the
// guest cart addressable after logout.
func GuestSession() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get(identity.SessionHeader) != "" {
				next.ServeHTTP(w, r)
				return
			}
			if c, err := r.Cookie(identity.SessionCookie); err == nil && c.Value != "" {
				next.ServeHTTP(w, r)
				return
			}

			sid := identity.NewSession().String()
			http.SetCookie(w, &http.Cookie{
				Name:     identity.SessionCookie,
				Value:    sid,
				Path:     "/",
				MaxAge:   int(sessionTTL.Seconds()),
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			})
			r.AddCookie(&http.Cookie{Name: identity.SessionCookie, Value: sid})

			next.ServeHTTP(w, r)
		})
	}
}
