package rbac

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/dynart/userhub/internal/shared"
	"github.com/dynart/userhub/internal/token"
)

// TokenVerifier verifies bearer credentials.
type TokenVerifier interface {
	Verify(raw string) (*token.Claims, error)
}

// Middleware wires credential verification, permission resolution and policy
// gates for HTTP handlers.
type Middleware struct {
	Logger  *slog.Logger
	Tokens  TokenVerifier
	Service *Service
}

// Authenticate verifies the presented credential, accepting either a bearer
// token or a session cookie interchangeably, and normalizes it to a Principal
// in the request context. Requests without a verifiable credential continue
// anonymously; the policy gates reject them later if the route demands one.
func (m Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if p := m.fromBearer(r); p != nil {
			next.ServeHTTP(w, r.WithContext(ContextWithPrincipal(r.Context(), p)))
			return
		}
		if p := m.fromSession(r); p != nil {
			next.ServeHTTP(w, r.WithContext(ContextWithPrincipal(r.Context(), p)))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// AttachPermissions augments the authenticated principal with one entry per
// distinct effective permission. It runs once per request, after Authenticate
// and before any policy gate. Unauthenticated requests pass through unchanged;
// an email matching no stored user yields a principal with zero permissions.
func (m Middleware) AttachPermissions(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := PrincipalFromContext(r.Context())
		if p == nil {
			next.ServeHTTP(w, r)
			return
		}
		perms, err := m.Service.EffectivePermissions(r.Context(), p.Email)
		if err != nil {
			if m.Logger != nil {
				m.Logger.Error("resolve permissions", slog.String("email", p.Email), slog.Any("error", err))
			}
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		p.Permissions = perms
		next.ServeHTTP(w, r.WithContext(ContextWithPrincipal(r.Context(), p)))
	})
}

// Require gates a route on the named permission. Missing credential yields
// 401; a valid credential without the permission yields 403.
func (m Middleware) Require(perm string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := PrincipalFromContext(r.Context())
			if p == nil {
				http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
				return
			}
			if !p.HasPermission(perm) {
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAuthenticated gates a route on any verified credential.
func (m Middleware) RequireAuthenticated() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if PrincipalFromContext(r.Context()) == nil {
				http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (m Middleware) fromBearer(r *http.Request) *Principal {
	header := r.Header.Get("Authorization")
	if header == "" {
		return nil
	}
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return nil
	}
	claims, err := m.Tokens.Verify(raw)
	if err != nil {
		return nil
	}
	userID, err := claims.UserID()
	if err != nil {
		return nil
	}
	return &Principal{
		UserID:      userID,
		Email:       claims.Email,
		DisplayName: claims.DisplayName,
		Source:      SourceBearer,
	}
}

func (m Middleware) fromSession(r *http.Request) *Principal {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		return nil
	}
	raw := strings.TrimSpace(sess.User())
	if raw == "" {
		return nil
	}
	userID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		if m.Logger != nil {
			m.Logger.Error("parse session user id", slog.String("value", raw))
		}
		return nil
	}
	return &Principal{
		UserID:      userID,
		Email:       sess.Get(shared.SessionKeyEmail),
		DisplayName: sess.Get(shared.SessionKeyDisplayName),
		Source:      SourceCookie,
	}
}
