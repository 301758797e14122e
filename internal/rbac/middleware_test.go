package rbac_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dynart/userhub/internal/rbac"
	"github.com/dynart/userhub/internal/shared"
	"github.com/dynart/userhub/internal/token"
	_ "github.com/dynart/userhub/testing"
)

type fakeStore struct {
	perms map[string][]string
}

func (f *fakeStore) EffectivePermissionsByEmail(ctx context.Context, email string) ([]string, error) {
	return f.perms[email], nil
}

func (f *fakeStore) ListPermissions(ctx context.Context) ([]rbac.Permission, error) {
	return nil, nil
}

func newMiddleware(t *testing.T, perms map[string][]string) (rbac.Middleware, *token.Issuer) {
	t.Helper()
	issuer, err := token.NewIssuer(token.Config{
		Secret:   "test-secret",
		Issuer:   "userhub",
		Audience: "userhub-mobile",
		TTL:      time.Hour,
	})
	require.NoError(t, err)
	return rbac.Middleware{
		Tokens:  issuer,
		Service: rbac.NewService(&fakeStore{perms: perms}),
	}, issuer
}

func protectedHandler(mw rbac.Middleware, perm string) http.Handler {
	final := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return mw.Authenticate(mw.AttachPermissions(mw.Require(perm)(final)))
}

func bearerRequest(t *testing.T, issuer *token.Issuer, id token.Identity) *http.Request {
	t.Helper()
	signed, err := issuer.Issue(id, nil)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/api/users", nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	return req
}

func sessionRequest(t *testing.T, userID, email string) *http.Request {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	manager := shared.NewSessionManager(client, "test_session", "secret", time.Hour, false)

	req := httptest.NewRequest(http.MethodGet, "/api/users", nil)
	sess, err := manager.Load(context.Background(), req)
	require.NoError(t, err)
	sess.SetUser(userID)
	sess.Set(shared.SessionKeyEmail, email)
	return req.WithContext(shared.ContextWithSession(req.Context(), sess))
}

func TestRequireWithoutCredential(t *testing.T) {
	mw, _ := newMiddleware(t, nil)
	res := httptest.NewRecorder()
	protectedHandler(mw, shared.PermUsersRead).ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/api/users", nil))
	assert.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestRequireWithMalformedBearer(t *testing.T) {
	mw, _ := newMiddleware(t, nil)
	req := httptest.NewRequest(http.MethodGet, "/api/users", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	res := httptest.NewRecorder()
	protectedHandler(mw, shared.PermUsersRead).ServeHTTP(res, req)
	assert.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestRequireBearerGrantedAndDenied(t *testing.T) {
	mw, issuer := newMiddleware(t, map[string][]string{
		"admin@example.com": {shared.PermUsersRead, shared.PermUsersWrite, shared.PermAdminAccess},
		"user@example.com":  {shared.PermUsersRead},
	})

	// Admin passes the admin:access gate.
	res := httptest.NewRecorder()
	protectedHandler(mw, shared.PermAdminAccess).
		ServeHTTP(res, bearerRequest(t, issuer, token.Identity{UserID: 1, Email: "admin@example.com"}))
	assert.Equal(t, http.StatusOK, res.Code)

	// Plain user holds a valid credential but lacks the permission.
	res = httptest.NewRecorder()
	protectedHandler(mw, shared.PermAdminAccess).
		ServeHTTP(res, bearerRequest(t, issuer, token.Identity{UserID: 2, Email: "user@example.com"}))
	assert.Equal(t, http.StatusForbidden, res.Code)
}

func TestRequireCookieSession(t *testing.T) {
	mw, _ := newMiddleware(t, map[string][]string{
		"user@example.com": {shared.PermUsersRead},
	})

	res := httptest.NewRecorder()
	protectedHandler(mw, shared.PermUsersRead).ServeHTTP(res, sessionRequest(t, "2", "user@example.com"))
	assert.Equal(t, http.StatusOK, res.Code)

	res = httptest.NewRecorder()
	protectedHandler(mw, shared.PermUsersWrite).ServeHTTP(res, sessionRequest(t, "2", "user@example.com"))
	assert.Equal(t, http.StatusForbidden, res.Code)
}

// A user unknown to the store, a user with zero roles and a user whose roles
// grant nothing all resolve to the same empty permission set.
func TestUnknownEmailResolvesToEmptySet(t *testing.T) {
	mw, issuer := newMiddleware(t, map[string][]string{})

	res := httptest.NewRecorder()
	protectedHandler(mw, shared.PermUsersRead).
		ServeHTTP(res, bearerRequest(t, issuer, token.Identity{UserID: 9, Email: "ghost@example.com"}))
	assert.Equal(t, http.StatusForbidden, res.Code)
}

func TestRequireAuthenticated(t *testing.T) {
	mw, issuer := newMiddleware(t, nil)
	final := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	h := mw.Authenticate(mw.AttachPermissions(mw.RequireAuthenticated()(final)))

	res := httptest.NewRecorder()
	h.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/api/permissions", nil))
	assert.Equal(t, http.StatusUnauthorized, res.Code)

	res = httptest.NewRecorder()
	h.ServeHTTP(res, bearerRequest(t, issuer, token.Identity{UserID: 3, Email: "anyone@example.com"}))
	assert.Equal(t, http.StatusOK, res.Code)
}

func TestAttachPermissionsLeavesAnonymousUnchanged(t *testing.T) {
	mw, _ := newMiddleware(t, nil)
	var seen *rbac.Principal
	final := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = rbac.PrincipalFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	h := mw.Authenticate(mw.AttachPermissions(final))

	res := httptest.NewRecorder()
	h.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, res.Code)
	assert.Nil(t, seen)
}
