package http

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/buzzline-server/internal/auth"
	"github.com/vovakirdan/buzzline-server/internal/config"
)

const (
	oauthStateCookie = "oauth_state"
	oauthStateMaxAge = 10 * 60
)

// APIHandlers provides the OAuth login endpoints.
type APIHandlers struct {
	authService *auth.Service
	oauth       config.OAuthConfig
	log         *zerolog.Logger
}

// NewAPIHandlers creates a new API handlers instance.
func NewAPIHandlers(authService *auth.Service, oauth config.OAuthConfig, logger *zerolog.Logger) *APIHandlers {
	return &APIHandlers{
		authService: authService,
		oauth:       oauth,
		log:         logger,
	}
}

// ErrorResponse represents an error response body.
type ErrorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

// GoogleLogin redirects the browser to the Google consent page.
// GET /login/google
func (h *APIHandlers) GoogleLogin(c *gin.Context) {
	state := uuid.NewString()

	authURL, err := h.authService.LoginURL(state)
	if err != nil {
		if errors.Is(err, auth.ErrOAuthNotConfigured) {
			h.log.Error().Msg("oauth login requested but no client is configured")
			c.String(http.StatusInternalServerError, "OAuth client is not configured on server.")
			return
		}
		h.log.Error().Err(err).Msg("failed to build oauth url")
		c.String(http.StatusInternalServerError, "internal server error")
		return
	}

	c.SetCookie(oauthStateCookie, state, oauthStateMaxAge, "/", "", false, true)
	h.log.Debug().Msg("redirecting to oauth provider")
	c.Redirect(http.StatusFound, authURL)
}

// GoogleCallback finishes the OAuth flow and hands a token to the frontend.
// GET /api/auth/google/callback
func (h *APIHandlers) GoogleCallback(c *gin.Context) {
	code := c.Query("code")
	if code == "" {
		h.log.Warn().Msg("oauth callback without code")
		c.String(http.StatusBadRequest, "Authorization code not found in callback.")
		return
	}

	expected, err := c.Cookie(oauthStateCookie)
	if err != nil || expected == "" || expected != c.Query("state") {
		h.log.Warn().Msg("oauth state mismatch")
		h.redirectFailure(c)
		return
	}
	c.SetCookie(oauthStateCookie, "", -1, "/", "", false, true)

	token, identity, err := h.authService.CompleteLogin(c.Request.Context(), code)
	if err != nil {
		h.log.Error().Err(err).Msg("oauth login failed")
		h.redirectFailure(c)
		return
	}

	target, err := withQuery(h.oauth.FrontendCallbackURL, "token", token)
	if err != nil {
		h.log.Error().Err(err).Str("url", h.oauth.FrontendCallbackURL).Msg("invalid frontend callback url")
		c.String(http.StatusInternalServerError, "internal server error")
		return
	}

	h.log.Info().Str("name", identity.Name).Str("email", identity.Email).Msg("user logged in")
	c.Redirect(http.StatusFound, target)
}

func (h *APIHandlers) redirectFailure(c *gin.Context) {
	target, err := withQuery(h.oauth.FrontendLoginURL, "error", "auth_failed")
	if err != nil {
		c.String(http.StatusInternalServerError, "internal server error")
		return
	}
	c.Redirect(http.StatusFound, target)
}

func withQuery(base, key, value string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set(key, value)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
