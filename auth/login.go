package auth

import (
	"context"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/warp/tuition-engine/billing"
)

// HashPassword returns a bcrypt hash of password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword reports whether password matches hash.
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// UserLookup finds users by name.
type UserLookup interface {
	GetUserByUsername(ctx context.Context, username string) (*billing.User, error)
}

// Authenticator verifies credentials and issues tokens.
type Authenticator struct {
	Users  UserLookup
	Secret []byte
	TTL    time.Duration
	Now    func() time.Time
}

// Session is the result of a successful login.
type Session struct {
	Token     string
	ExpiresAt time.Time
	Identity  Identity
}

var errBadCredentials = &billing.AuthenticationError{Message: "Invalid username or password"}

// Login checks username and password and issues a token.
func (a *Authenticator) Login(ctx context.Context, username, password string) (*Session, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, billing.Invalid("username", "Username and password are required")
	}

	u, err := a.Users.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if u == nil || !CheckPassword(u.PasswordHash, password) {
		return nil, errBadCredentials
	}
	role, ok := NormalizeRole(u.Role)
	if !ok {
		return nil, errBadCredentials
	}

	id := Identity{UserID: u.ID, Username: u.Username, Role: role}
	if u.StudentID != nil {
		id.StudentID = *u.StudentID
	}

	now := time.Now().UTC()
	if a.Now != nil {
		now = a.Now()
	}
	token, err := IssueToken(id, a.Secret, a.TTL, now)
	if err != nil {
		return nil, err
	}
	return &Session{Token: token, ExpiresAt: now.Add(a.TTL), Identity: id}, nil
}
