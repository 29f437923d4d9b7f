package auth

import (
	"context"

	"github.com/warp/tuition-engine/billing"
)

type contextKey string

const contextKeyIdentity contextKey = "auth.identity"

// Identity is the authenticated caller.
type Identity struct {
	UserID    int64
	Username  string
	Role      Role
	StudentID int64
}

// Scope returns the billing scope of the caller. Students are restricted
// to their own records.
func (id Identity) Scope() billing.Scope {
	return billing.Scope{
		UserID:     id.UserID,
		StudentID:  id.StudentID,
		Restricted: id.Role == RoleStudent,
	}
}

// IdentityFromClaims converts parsed claims.
func IdentityFromClaims(c *Claims) Identity {
	role, _ := NormalizeRole(c.Role)
	return Identity{UserID: c.UserID, Username: c.Subject, Role: role, StudentID: c.StudentID}
}

// WithIdentity stores the caller in context.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, contextKeyIdentity, id)
}

// IdentityFromContext extracts the caller from context.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	if ctx == nil {
		return Identity{}, false
	}
	id, ok := ctx.Value(contextKeyIdentity).(Identity)
	return id, ok
}
