package identity

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dynart/userhub/internal/shared"
)

// Handler wires HTTP endpoints for the browser sign-in and sign-out flows.
type Handler struct {
	logger      *slog.Logger
	service     *Service
	sessions    *shared.SessionManager
	provider    Provider
	frontendURL string
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, sessions *shared.SessionManager, provider Provider, frontendURL string) *Handler {
	return &Handler{
		logger:      logger,
		service:     service,
		sessions:    sessions,
		provider:    provider,
		frontendURL: frontendURL,
	}
}

// MountRoutes registers auth routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/google", h.startGoogle)
	r.Get("/google/callback", h.handleCallback)
	r.Get("/logout", h.handleLogout)
}

func (h *Handler) startGoogle(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	state := uuid.NewString()
	sess.Set(shared.SessionKeyOAuthState, state)
	http.Redirect(w, r, h.provider.AuthCodeURL(state), http.StatusFound)
}

func (h *Handler) handleCallback(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	expected := sess.Get(shared.SessionKeyOAuthState)
	sess.Delete(shared.SessionKeyOAuthState)
	if expected == "" || r.URL.Query().Get("state") != expected {
		h.logger.Warn("oauth state mismatch")
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		h.logger.Warn("oauth callback missing code")
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	ps, err := h.provider.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Warn("oauth code exchange failed", slog.Any("error", err))
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	user, err := h.service.SignIn(r.Context(), ps.Identity)
	if err != nil {
		h.logger.Warn("sign in failed", slog.Any("error", err))
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	sess.SetUser(strconv.FormatInt(user.ID, 10))
	sess.Set(shared.SessionKeyEmail, user.Email)
	sess.Set(shared.SessionKeyDisplayName, user.DisplayName)
	sess.Set(shared.SessionKeyProvider, h.provider.Name())
	if ps.AccessToken != "" {
		sess.Set(shared.SessionKeyAccessToken, ps.AccessToken)
	}

	h.logger.Info("user signed in",
		slog.String("email", user.Email),
		slog.String("provider", h.provider.Name()))
	http.Redirect(w, r, h.frontendURL, http.StatusSeeOther)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess != nil {
		provider := sess.Get(shared.SessionKeyProvider)
		accessToken := sess.Get(shared.SessionKeyAccessToken)
		// Best effort: revocation failure never blocks local sign-out.
		if provider == h.provider.Name() && accessToken != "" {
			if err := h.provider.Revoke(r.Context(), accessToken); err != nil {
				h.logger.Warn("revoke provider token", slog.Any("error", err))
			}
		} else if provider != "" && provider != h.provider.Name() {
			h.logger.Warn("unsupported provider on logout", slog.String("provider", provider))
		}
		h.sessions.Destroy(sess)
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}
