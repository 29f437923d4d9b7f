package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/tuition-engine/billing"
)

var testSecret = []byte("test-secret-please-change")

type userMap map[string]*billing.User

func (m userMap) GetUserByUsername(_ context.Context, username string) (*billing.User, error) {
	return m[username], nil
}

// =============================================================================
// ROLE TESTS
// =============================================================================

func TestRoleAtLeast(t *testing.T) {
	assert.True(t, RoleAtLeast(RoleAdmin, RoleCashier))
	assert.True(t, RoleAtLeast(RoleCashier, RoleCashier))
	assert.True(t, RoleAtLeast(RoleCashier, RoleStudent))
	assert.False(t, RoleAtLeast(RoleStudent, RoleCashier))
	assert.False(t, RoleAtLeast(Role("registrar"), RoleStudent))

	_, ok := NormalizeRole("superuser")
	assert.False(t, ok)
}

// =============================================================================
// TOKEN TESTS
// =============================================================================

func TestIssueAndParseToken(t *testing.T) {
	id := Identity{UserID: 3, Username: "juan", Role: RoleStudent, StudentID: 12}
	token, err := IssueToken(id, testSecret, time.Hour, time.Now())
	require.NoError(t, err)

	claims, err := ParseToken(token, testSecret)
	require.NoError(t, err)
	assert.Equal(t, id, IdentityFromClaims(claims))
	assert.Equal(t, billing.Scope{UserID: 3, StudentID: 12, Restricted: true}, IdentityFromClaims(claims).Scope())
}

func TestParseToken_Rejections(t *testing.T) {
	admin := Identity{UserID: 1, Username: "admin", Role: RoleAdmin}

	expired, err := IssueToken(admin, testSecret, time.Minute, time.Now().Add(-2*time.Hour))
	require.NoError(t, err)
	_, err = ParseToken(expired, testSecret)
	assert.Error(t, err, "expired")

	valid, err := IssueToken(admin, testSecret, time.Hour, time.Now())
	require.NoError(t, err)
	_, err = ParseToken(valid, []byte("other-secret"))
	assert.Error(t, err, "wrong secret")

	_, err = ParseToken("", testSecret)
	assert.Error(t, err)

	_, err = IssueToken(Identity{Role: "root"}, testSecret, time.Hour, time.Now())
	assert.Error(t, err)

	// A student token must carry the student it belongs to.
	orphan, err := IssueToken(Identity{UserID: 5, Role: RoleStudent}, testSecret, time.Hour, time.Now())
	require.NoError(t, err)
	_, err = ParseToken(orphan, testSecret)
	assert.Error(t, err)
}

// =============================================================================
// LOGIN TESTS
// =============================================================================

func TestLogin(t *testing.T) {
	hash, err := HashPassword("cashier123")
	require.NoError(t, err)
	studentID := int64(4)
	studentHash, err := HashPassword("student123")
	require.NoError(t, err)

	a := &Authenticator{
		Users: userMap{
			"cashier": {ID: 2, Username: "cashier", PasswordHash: hash, Role: "cashier"},
			"juan":    {ID: 3, Username: "juan", PasswordHash: studentHash, Role: "student", StudentID: &studentID},
			"ghost":   {ID: 9, Username: "ghost", PasswordHash: hash, Role: "janitor"},
		},
		Secret: testSecret,
		TTL:    8 * time.Hour,
	}
	ctx := context.Background()

	s, err := a.Login(ctx, "cashier", "cashier123")
	require.NoError(t, err)
	assert.Equal(t, RoleCashier, s.Identity.Role)
	claims, err := ParseToken(s.Token, testSecret)
	require.NoError(t, err)
	assert.Equal(t, int64(2), claims.UserID)

	s, err = a.Login(ctx, " juan ", "student123")
	require.NoError(t, err)
	assert.Equal(t, int64(4), s.Identity.StudentID)

	_, err = a.Login(ctx, "cashier", "wrong")
	assert.ErrorIs(t, err, billing.ErrUnauthenticated)

	_, err = a.Login(ctx, "nobody", "cashier123")
	assert.ErrorIs(t, err, billing.ErrUnauthenticated)

	_, err = a.Login(ctx, "ghost", "cashier123")
	assert.ErrorIs(t, err, billing.ErrUnauthenticated)

	_, err = a.Login(ctx, "", "")
	assert.ErrorIs(t, err, billing.ErrValidation)
}

// =============================================================================
// MIDDLEWARE TESTS
// =============================================================================

func serve(m *Middleware, header string) (*httptest.ResponseRecorder, *Identity) {
	var seen *Identity
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id, ok := IdentityFromContext(r.Context()); ok {
			seen = &id
		}
		w.WriteHeader(http.StatusNoContent)
	})
	req := httptest.NewRequest(http.MethodGet, "/api?action=get_dashboard_stats", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	m.Wrap(next).ServeHTTP(rec, req)
	return rec, seen
}

func TestMiddleware(t *testing.T) {
	m := NewMiddleware(testSecret, false, nil)

	rec, id := serve(m, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Nil(t, id, "no token passes through anonymously")

	token, err := IssueToken(Identity{UserID: 1, Username: "admin", Role: RoleAdmin}, testSecret, time.Hour, time.Now())
	require.NoError(t, err)
	rec, id = serve(m, "Bearer "+token)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	require.NotNil(t, id)
	assert.Equal(t, RoleAdmin, id.Role)

	rec, _ = serve(m, "Bearer not-a-token")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, id = serve(m, "Basic abc")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Nil(t, id)
}

func TestMiddleware_DisabledAndCustomDeny(t *testing.T) {
	_, id := serve(NewMiddleware(nil, true, nil), "")
	require.NotNil(t, id)
	assert.Equal(t, Anonymous, *id)

	var denied int
	m := NewMiddleware(testSecret, false, func(w http.ResponseWriter, _ *http.Request, status int, _ string) {
		denied = status
		w.WriteHeader(status)
	})
	serve(m, "Bearer junk")
	assert.Equal(t, http.StatusUnauthorized, denied)
}
