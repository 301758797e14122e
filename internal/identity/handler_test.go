package identity_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dynart/userhub/internal/identity"
	"github.com/dynart/userhub/internal/shared"
)

type fakeProvider struct {
	identity    identity.ExternalIdentity
	exchangeErr error
	revokeErr   error
	revokedWith string
}

func (f *fakeProvider) Name() string { return "Google" }

func (f *fakeProvider) AuthCodeURL(state string) string {
	return "https://provider.example.com/auth?state=" + state
}

func (f *fakeProvider) Exchange(ctx context.Context, code string) (*identity.ProviderSession, error) {
	if f.exchangeErr != nil {
		return nil, f.exchangeErr
	}
	return &identity.ProviderSession{Identity: f.identity, AccessToken: "provider-access-token"}, nil
}

func (f *fakeProvider) VerifyIDToken(ctx context.Context, raw string) (*identity.ExternalIdentity, error) {
	if f.exchangeErr != nil {
		return nil, f.exchangeErr
	}
	copied := f.identity
	return &copied, nil
}

func (f *fakeProvider) Revoke(ctx context.Context, accessToken string) error {
	f.revokedWith = accessToken
	return f.revokeErr
}

func newHandlerFixture(t *testing.T, provider identity.Provider) (*identity.Handler, *shared.SessionManager) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	sessions := shared.NewSessionManager(client, "test_session", "secret", time.Hour, false)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := identity.NewService(logger, newFakeStore())
	return identity.NewHandler(logger, svc, sessions, provider, "http://frontend.local"), sessions
}

func newTestRouter(h *identity.Handler) http.Handler {
	r := chi.NewRouter()
	r.Route("/auth", func(r chi.Router) { h.MountRoutes(r) })
	return r
}

func withSession(t *testing.T, sessions *shared.SessionManager, req *http.Request) (*http.Request, *shared.Session) {
	t.Helper()
	sess, err := sessions.Load(context.Background(), req)
	require.NoError(t, err)
	return req.WithContext(shared.ContextWithSession(req.Context(), sess)), sess
}

func TestStartGoogleRedirectsWithState(t *testing.T) {
	handler, sessions := newHandlerFixture(t, &fakeProvider{})
	router := newTestRouter(handler)

	req, sess := withSession(t, sessions, httptest.NewRequest(http.MethodGet, "/auth/google", nil))
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)

	require.Equal(t, http.StatusFound, res.Code)
	state := sess.Get(shared.SessionKeyOAuthState)
	require.NotEmpty(t, state)
	assert.Equal(t, "https://provider.example.com/auth?state="+state, res.Header().Get("Location"))
}

func TestCallbackEstablishesSession(t *testing.T) {
	provider := &fakeProvider{identity: googleIdentity()}
	handler, sessions := newHandlerFixture(t, provider)
	router := newTestRouter(handler)

	req, sess := withSession(t, sessions,
		httptest.NewRequest(http.MethodGet, "/auth/google/callback?state=xyz&code=good-code", nil))
	sess.Set(shared.SessionKeyOAuthState, "xyz")

	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)

	assert.Equal(t, http.StatusSeeOther, res.Code)
	assert.Equal(t, "http://frontend.local", res.Header().Get("Location"))
	assert.Equal(t, "1", sess.User())
	assert.Equal(t, "jane@example.com", sess.Get(shared.SessionKeyEmail))
	assert.Equal(t, "Google", sess.Get(shared.SessionKeyProvider))
	assert.Equal(t, "provider-access-token", sess.Get(shared.SessionKeyAccessToken))
}

func TestCallbackRejectsStateMismatch(t *testing.T) {
	handler, sessions := newHandlerFixture(t, &fakeProvider{identity: googleIdentity()})
	router := newTestRouter(handler)

	req, sess := withSession(t, sessions,
		httptest.NewRequest(http.MethodGet, "/auth/google/callback?state=evil&code=good-code", nil))
	sess.Set(shared.SessionKeyOAuthState, "xyz")

	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)

	assert.Equal(t, http.StatusSeeOther, res.Code)
	assert.Equal(t, "/", res.Header().Get("Location"))
	assert.Empty(t, sess.User())
}

func TestCallbackAbortsOnExchangeFailure(t *testing.T) {
	handler, sessions := newHandlerFixture(t, &fakeProvider{exchangeErr: errors.New("provider unavailable")})
	router := newTestRouter(handler)

	req, sess := withSession(t, sessions,
		httptest.NewRequest(http.MethodGet, "/auth/google/callback?state=xyz&code=bad-code", nil))
	sess.Set(shared.SessionKeyOAuthState, "xyz")

	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)

	assert.Equal(t, "/", res.Header().Get("Location"))
	assert.Empty(t, sess.User())
}

func TestLogoutRevokesBestEffort(t *testing.T) {
	provider := &fakeProvider{revokeErr: errors.New("revoke endpoint down")}
	handler, sessions := newHandlerFixture(t, provider)
	router := newTestRouter(handler)

	req, sess := withSession(t, sessions, httptest.NewRequest(http.MethodGet, "/auth/logout", nil))
	sess.SetUser("1")
	sess.Set(shared.SessionKeyProvider, "Google")
	sess.Set(shared.SessionKeyAccessToken, "provider-access-token")

	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)

	// Revocation was attempted and failed; local sign-out still completed.
	assert.Equal(t, "provider-access-token", provider.revokedWith)
	assert.Equal(t, http.StatusSeeOther, res.Code)
	assert.Equal(t, "/", res.Header().Get("Location"))
}

func TestLogoutSkipsRevocationForUnknownProvider(t *testing.T) {
	provider := &fakeProvider{}
	handler, sessions := newHandlerFixture(t, provider)
	router := newTestRouter(handler)

	req, sess := withSession(t, sessions, httptest.NewRequest(http.MethodGet, "/auth/logout", nil))
	sess.SetUser("1")
	sess.Set(shared.SessionKeyProvider, "Facebook")
	sess.Set(shared.SessionKeyAccessToken, "some-token")

	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)

	assert.Empty(t, provider.revokedWith)
	assert.Equal(t, "/", res.Header().Get("Location"))
}
