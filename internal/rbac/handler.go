package rbac

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dynart/userhub/internal/platform/httpx"
)

// PermissionsHandler exposes the caller's resolved permission set.
type PermissionsHandler struct {
	logger *slog.Logger
	authz  Middleware
}

// NewPermissionsHandler builds a PermissionsHandler instance.
func NewPermissionsHandler(logger *slog.Logger, authz Middleware) *PermissionsHandler {
	return &PermissionsHandler{logger: logger, authz: authz}
}

// MountRoutes registers the permission query route.
func (h *PermissionsHandler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.authz.RequireAuthenticated())
		r.Get("/", h.getPermissions)
	})
}

type permissionsResponse struct {
	Permissions []string `json:"permissions"`
}

func (h *PermissionsHandler) getPermissions(w http.ResponseWriter, r *http.Request) {
	p := PrincipalFromContext(r.Context())
	perms := p.Permissions
	if perms == nil {
		perms = []string{}
	}
	httpx.JSON(w, http.StatusOK, permissionsResponse{Permissions: perms})
}
