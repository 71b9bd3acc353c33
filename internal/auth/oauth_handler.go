package auth

import (
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/lafi-app/lostfound-api/internal/httputil"
	"github.com/lafi-app/lostfound-api/internal/logging"
	"github.com/lafi-app/lostfound-api/internal/user"
)

const oauthStateCookieName = "oauthState"

// stateCookieLifetime bounds how long a pending OAuth dance stays redeemable.
const stateCookieLifetime = 10 * time.Minute

// OAuthHandler drives the authorization-code flow against the configured
// identity providers. Providers are registered by name; the URL decides which
// one handles the request.
type OAuthHandler struct {
	service         *Service
	providers       map[string]IdentityProvider
	logger          *logging.Logger
	frontendURL     string
	isProduction    bool
	accessDuration  time.Duration
	refreshDuration time.Duration
}

func NewOAuthHandler(service *Service, providers []IdentityProvider, logger *logging.Logger, frontendURL string, isProduction bool, accessDuration, refreshDuration time.Duration) *OAuthHandler {
	byName := make(map[string]IdentityProvider, len(providers))
	for _, p := range providers {
		byName[string(p.Name())] = p
	}
	return &OAuthHandler{
		service:         service,
		providers:       byName,
		logger:          logger,
		frontendURL:     frontendURL,
		isProduction:    isProduction,
		accessDuration:  accessDuration,
		refreshDuration: refreshDuration,
	}
}

func (h *OAuthHandler) lookupProvider(w http.ResponseWriter, r *http.Request) (IdentityProvider, bool) {
	name := chi.URLParam(r, "provider")
	provider, ok := h.providers[normalizeProviderName(name)]
	if !ok {
		httputil.RespondErrorWithCode(w, "unknown identity provider", httputil.CodeOAuthFailed, http.StatusNotFound)
		return nil, false
	}
	return provider, true
}

func normalizeProviderName(name string) string {
	switch name {
	case "google", "GOOGLE":
		return string(user.ProviderGoogle)
	case "facebook", "FACEBOOK":
		return string(user.ProviderFacebook)
	}
	return name
}

// Start begins the OAuth flow for a provider
// @Summary      Start OAuth login
// @Description  Redirect the browser to the provider's consent screen
// @Tags         auth
// @Param        provider path string true "Provider name (google or facebook)"
// @Success      302
// @Failure      404 {object} ErrorResponse "Unknown provider"
// @Router       /api/auth/{provider} [get]
func (h *OAuthHandler) Start(w http.ResponseWriter, r *http.Request) {
	provider, ok := h.lookupProvider(w, r)
	if !ok {
		return
	}

	// Random state bound to this browser via cookie; the callback rejects any
	// response that does not echo it
	state := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookieName,
		Value:    state,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.isProduction,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(stateCookieLifetime.Seconds()),
	})

	http.Redirect(w, r, provider.AuthCodeURL(state), http.StatusFound)
}

// Callback completes the OAuth flow for a provider
// @Summary      OAuth callback
// @Description  Exchange the authorization code, sign the user in, and redirect to the frontend
// @Tags         auth
// @Param        provider path string true "Provider name (google or facebook)"
// @Param        code query string true "Authorization code"
// @Param        state query string true "Anti-forgery state"
// @Success      302
// @Router       /api/auth/{provider}/callback [get]
func (h *OAuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	provider, ok := h.lookupProvider(w, r)
	if !ok {
		return
	}

	// Providers report user denial via an error query param
	if providerErr := r.URL.Query().Get("error"); providerErr != "" {
		logger.Warn("oauth flow denied by provider", "provider", provider.Name(), "error", providerErr)
		h.redirectWithError(w, r, "access_denied")
		return
	}

	stateCookie, err := r.Cookie(oauthStateCookieName)
	if err != nil || stateCookie.Value == "" || stateCookie.Value != r.URL.Query().Get("state") {
		logger.Warn("oauth state mismatch", "provider", provider.Name())
		h.redirectWithError(w, r, "invalid_state")
		return
	}

	// The state is single use
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})

	code := r.URL.Query().Get("code")
	if code == "" {
		logger.Warn("oauth callback missing code", "provider", provider.Name())
		h.redirectWithError(w, r, "missing_code")
		return
	}

	identity, err := provider.ResolveIdentity(r.Context(), code)
	if err != nil {
		logger.Error("failed to resolve provider identity", "provider", provider.Name(), "error", err.Error())
		h.redirectWithError(w, r, "provider_error")
		return
	}

	tokens, account, err := h.service.LoginWithProvider(r.Context(), identity)
	if err != nil {
		var conflict *ProviderConflictError
		switch {
		case errors.As(err, &conflict):
			logger.Warn("oauth login refused: email owned by another account",
				"provider", provider.Name(), "owner", conflict.Provider)
			h.redirectWithError(w, r, httputil.CodeAccountConflict)
		case errors.Is(err, ErrOAuthEmailMissing):
			logger.Warn("oauth login refused: provider returned no email", "provider", provider.Name())
			h.redirectWithError(w, r, "email_missing")
		default:
			logger.Error("oauth login failed: internal error", "provider", provider.Name(), "error", err.Error())
			h.redirectWithError(w, r, "internal_error")
		}
		return
	}

	logger.Info("user logged in via provider", "provider", provider.Name(), "user_id", account.ID)

	SetAuthCookies(w, tokens.AccessToken, tokens.RefreshToken, h.isProduction, h.accessDuration, h.refreshDuration)

	http.Redirect(w, r, h.frontendURL+"/auth/callback", http.StatusFound)
}

// redirectWithError sends the browser back to the frontend login page with a
// machine-readable error code in the query string.
func (h *OAuthHandler) redirectWithError(w http.ResponseWriter, r *http.Request, code string) {
	target := h.frontendURL + "/login?error=" + url.QueryEscape(code)
	http.Redirect(w, r, target, http.StatusFound)
}
