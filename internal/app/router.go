package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/dynart/userhub/internal/identity"
	"github.com/dynart/userhub/internal/mobileauth"
	"github.com/dynart/userhub/internal/observability"
	"github.com/dynart/userhub/internal/rbac"
	"github.com/dynart/userhub/internal/shared"
	"github.com/dynart/userhub/internal/users"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	SessionManager *shared.SessionManager
	Authz          rbac.Middleware

	AuthHandler        *identity.Handler
	UsersHandler       *users.Handler
	MobileAuthHandler  *mobileauth.Handler
	PermissionsHandler *rbac.PermissionsHandler

	Metrics *observability.Metrics
}

// NewRouter constructs the chi.Router with platform defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.Route("/auth", func(r chi.Router) {
		params.AuthHandler.MountRoutes(r)
	})

	// Every API route runs credential verification and permission resolution
	// before its own policy gate; cookie and bearer credentials are accepted
	// interchangeably.
	r.Route("/api", func(r chi.Router) {
		r.Use(params.Authz.Authenticate)
		r.Use(params.Authz.AttachPermissions)

		r.Route("/permissions", func(r chi.Router) {
			params.PermissionsHandler.MountRoutes(r)
		})
		r.Route("/users", func(r chi.Router) {
			params.UsersHandler.MountRoutes(r)
		})
		r.Route("/mobile-auth", func(r chi.Router) {
			params.MobileAuthHandler.MountRoutes(r)
		})
	})

	return r
}
