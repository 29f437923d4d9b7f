package auth

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims represents JWT claims used by this service.
type Claims struct {
	UserID    int64  `json:"uid"`
	Role      string `json:"role"`
	StudentID int64  `json:"student_id,omitempty"`
	jwt.RegisteredClaims
}

// ParseToken validates a JWT and returns claims.
func ParseToken(tokenString string, secret []byte) (*Claims, error) {
	if tokenString == "" {
		return nil, errors.New("auth: empty token")
	}
	if len(secret) == 0 {
		return nil, errors.New("auth: empty secret")
	}

	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	claims := &Claims{}
	token, err := parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("auth: invalid signing method")
		}
		return secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("auth: invalid token")
	}
	role, ok := NormalizeRole(claims.Role)
	if !ok {
		return nil, errors.New("auth: invalid role")
	}
	if role == RoleStudent && claims.StudentID <= 0 {
		return nil, errors.New("auth: student token without student_id")
	}
	return claims, nil
}

// IssueToken signs an HS256 token for id valid for ttl from now.
func IssueToken(id Identity, secret []byte, ttl time.Duration, now time.Time) (string, error) {
	if len(secret) == 0 {
		return "", errors.New("auth: empty secret")
	}
	if _, ok := NormalizeRole(string(id.Role)); !ok {
		return "", errors.New("auth: invalid role")
	}
	claims := Claims{
		UserID:    id.UserID,
		Role:      string(id.Role),
		StudentID: id.StudentID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.Username,
			ID:        strconv.FormatInt(id.UserID, 10) + "-" + strconv.FormatInt(now.UnixNano(), 36),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now.Add(-time.Minute)),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}
