package auth

import (
	"net/http"
	"strings"
)

// DenyFunc writes an authentication failure.
type DenyFunc func(w http.ResponseWriter, r *http.Request, status int, message string)

// Middleware resolves the caller from a bearer token. Requests without a
// token pass through anonymously; role checks happen per action.
type Middleware struct {
	Secret []byte
	// Disabled skips token parsing and treats every caller as admin.
	Disabled bool
	Deny     DenyFunc
}

// NewMiddleware constructs an auth middleware.
func NewMiddleware(secret []byte, disabled bool, deny DenyFunc) *Middleware {
	return &Middleware{Secret: secret, Disabled: disabled, Deny: deny}
}

// Anonymous is the identity used when authentication is disabled.
var Anonymous = Identity{Username: "anonymous", Role: RoleAdmin}

// Wrap applies the middleware to next.
func (m *Middleware) Wrap(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.Disabled {
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), Anonymous)))
			return
		}

		token := extractBearer(r)
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}
		claims, err := ParseToken(token, m.Secret)
		if err != nil {
			m.deny(w, r, http.StatusUnauthorized, "Invalid or expired token")
			return
		}
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), IdentityFromClaims(claims))))
	})
}

func (m *Middleware) deny(w http.ResponseWriter, r *http.Request, status int, message string) {
	if m.Deny != nil {
		m.Deny(w, r, status, message)
		return
	}
	http.Error(w, message, status)
}

func extractBearer(r *http.Request) string {
	if r == nil {
		return ""
	}
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.Fields(header)
	if len(parts) != 2 {
		return ""
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}
