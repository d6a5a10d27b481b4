package identity

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

const (
	// SessionHeader carries an explicit per-request session id.
	SessionHeader = "X-Session-Id"
	// SessionCookie is the long-lived guest session cookie name.
	SessionCookie = "session_id"

	// TokenTTL is the lifetime of issued access tokens.
	TokenTTL = 72 * time.Hour
)

// Resolver derives an Identity from request credentials. Precedence: bearer
// token, explicit session header, session cookie. Token verification
// failures degrade to the next source and are never surfaced to the caller.
type Resolver struct {
	secret []byte
	lg     *zap.Logger
	now    func() time.Time
}

// NewResolver creates a Resolver that verifies and issues HS256 tokens with
// the given signing secret.
func NewResolver(secret []byte, lg *zap.Logger) *Resolver {
	return &Resolver{secret: secret, lg: lg, now: time.Now}
}

// Resolve inspects the request credentials and returns the caller's
// identity, or the zero Identity for anonymous callers. It has no side
// effects.
func (r *Resolver) Resolve(req *http.Request) Identity {
	if raw, ok := bearerToken(req); ok {
		sub, err := r.verify(raw)
		if err != nil {
			// Swallowed on purpose: a bad token means "not authenticated",
			// not a failed request. Callers that require a verified user
			// must check the resolved identity themselves.
			r.lg.Debug("bearer token rejected", zap.Error(err))
		} else {
			return User(sub)
		}
	}

	if v := req.Header.Get(SessionHeader); v != "" {
		return Session(v)
	}

	if c, err := req.Cookie(SessionCookie); err == nil && c.Value != "" {
		return Session(c.Value)
	}

	return Identity{}
}

// IssueToken signs an access token for the given user id.
func (r *Resolver) IssueToken(userID string) (string, error) {
	now := r.now()
	claims := jwt.MapClaims{
		"sub": userID,
		"iat": now.Unix(),
		"exp": now.Add(TokenTTL).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signed, err := token.SignedString(r.secret)
	if err != nil {
		return "", errors.Wrap(err, "sign token")
	}
	return signed, nil
}

// verify parses and validates a token string, returning the subject user id.
func (r *Resolver) verify(raw string) (string, error) {
	token, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return r.secret, nil
	}, jwt.WithTimeFunc(r.now))
	if err != nil {
		return "", errors.Wrap(err, "parse token")
	}

	sub, err := token.Claims.GetSubject()
	if err != nil || sub == "" {
		return "", errors.New("token has no subject")
	}
	return sub, nil
}

func bearerToken(req *http.Request) (string, bool) {
	h := req.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(h) <= len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return "", false
	}
	return strings.TrimSpace(h[len(prefix):]), true
}
