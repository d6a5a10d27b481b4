// Package identity resolves the actor behind a request: an authenticated
// user or an anonymous guest session. Carts and orders are always scoped to
// exactly one of the two.
package identity

import (
	"strings"

	"github.com/google/uuid"
)

// WirePrefix distinguishes guest session ids from user ids in their string
// encoding. It exists only at the wire boundary (headers, cookies, database
// keys); code inside the domain works with the Identity type and never
// sniffs prefixes.
const WirePrefix = "session_"

type kind uint8

const (
	kindNone kind = iota
	kindUser
	kindSession
)

// Identity is the resolved actor for a request. The zero value means
// anonymous with no shopping identity at all.
type Identity struct {
	kind kind
	id   string
}

// User returns an identity for an authenticated user id.
func User(id string) Identity {
	return Identity{kind: kindUser, id: id}
}

// Session returns an identity for a guest session id. The id is stored
// without the wire prefix.
func Session(id string) Identity {
	return Identity{kind: kindSession, id: strings.TrimPrefix(id, WirePrefix)}
}

// NewSession creates a fresh guest session identity with a random id.
func NewSession() Identity {
	return Identity{kind: kindSession, id: uuid.New().String()}
}

// IsZero reports whether no identity was resolved.
func (i Identity) IsZero() bool { return i.kind == kindNone }

// IsUser reports whether the identity is an authenticated user.
func (i Identity) IsUser() bool { return i.kind == kindUser }

// IsSession reports whether the identity is a guest session.
func (i Identity) IsSession() bool { return i.kind == kindSession }

// UserID returns the user id and true when the identity is a user.
func (i Identity) UserID() (string, bool) {
	if i.kind != kindUser {
		return "", false
	}
	return i.id, true
}

// SessionID returns the bare session id (no prefix) and true when the
// identity is a guest session.
func (i Identity) SessionID() (string, bool) {
	if i.kind != kindSession {
		return "", false
	}
	return i.id, true
}

// String encodes the identity for the wire: user ids verbatim, session ids
// with the session prefix. The zero identity encodes as "".
func (i Identity) String() string {
	switch i.kind {
	case kindUser:
		return i.id
	case kindSession:
		return WirePrefix + i.id
	default:
		return ""
	}
}

// Parse decodes a wire-encoded identity string. Prefixed values become
// sessions, anything else a user id, "" the zero identity.
func Parse(s string) Identity {
	switch {
	case s == "":
		return Identity{}
	case strings.HasPrefix(s, WirePrefix):
		return Session(s)
	default:
		return User(s)
	}
}
