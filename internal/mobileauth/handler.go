// Package mobileauth trades an established session cookie or a verified
// provider assertion for a portable bearer credential, so native clients
// reach the same authenticated state as web clients.
package mobileauth

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/dynart/userhub/internal/identity"
	"github.com/dynart/userhub/internal/platform/httpx"
	"github.com/dynart/userhub/internal/rbac"
	"github.com/dynart/userhub/internal/token"
)

// Handler wires the credential exchange endpoints.
type Handler struct {
	logger    *slog.Logger
	issuer    *token.Issuer
	identity  *identity.Service
	rbac      *rbac.Service
	provider  identity.Provider
	authz     rbac.Middleware
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, issuer *token.Issuer, identitySvc *identity.Service, rbacSvc *rbac.Service, provider identity.Provider, authz rbac.Middleware) *Handler {
	return &Handler{
		logger:    logger,
		issuer:    issuer,
		identity:  identitySvc,
		rbac:      rbacSvc,
		provider:  provider,
		authz:     authz,
		validator: validator.New(),
	}
}

// MountRoutes registers the exchange routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.authz.RequireAuthenticated())
		r.Post("/exchange-cookie", h.exchangeCookie)
	})
	r.Post("/google", h.exchangeGoogleToken)
}

type userSummary struct {
	ID          int64    `json:"id"`
	Email       string   `json:"email"`
	DisplayName string   `json:"displayName"`
	Permissions []string `json:"permissions"`
}

type exchangeResponse struct {
	Token string      `json:"token"`
	User  userSummary `json:"user"`
}

func (h *Handler) exchangeCookie(w http.ResponseWriter, r *http.Request) {
	p := rbac.PrincipalFromContext(r.Context())
	if p == nil || p.Source != rbac.SourceCookie {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}

	user, err := h.identity.UserByID(r.Context(), p.UserID)
	if err != nil {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}

	h.respondWithToken(w, r, user)
}

type googleLoginRequest struct {
	IDToken string `json:"idToken" validate:"required"`
}

func (h *Handler) exchangeGoogleToken(w http.ResponseWriter, r *http.Request) {
	var req googleLoginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: invalid request body", httpx.ErrValidation))
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: idToken is required", httpx.ErrValidation))
		return
	}

	ext, err := h.provider.VerifyIDToken(r.Context(), req.IDToken)
	if err != nil {
		h.logger.Warn("provider token rejected", slog.Any("error", err))
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrUpstream, err))
		return
	}

	user, err := h.identity.SignIn(r.Context(), *ext)
	if err != nil {
		h.logger.Error("provider sign in failed", slog.Any("error", err))
		httpx.RespondError(w, fmt.Errorf("%w: incomplete provider assertion", httpx.ErrUpstream))
		return
	}

	h.respondWithToken(w, r, user)
}

func (h *Handler) respondWithToken(w http.ResponseWriter, r *http.Request, user *identity.User) {
	perms, err := h.rbac.EffectivePermissions(r.Context(), user.Email)
	if err != nil {
		h.logger.Error("resolve permissions", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	if perms == nil {
		perms = []string{}
	}

	signed, err := h.issuer.Issue(token.Identity{
		UserID:      user.ID,
		Email:       user.Email,
		DisplayName: user.DisplayName,
	}, perms)
	if err != nil {
		h.logger.Error("issue token", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}

	httpx.JSON(w, http.StatusOK, exchangeResponse{
		Token: signed,
		User: userSummary{
			ID:          user.ID,
			Email:       user.Email,
			DisplayName: user.DisplayName,
			Permissions: perms,
		},
	})
}
