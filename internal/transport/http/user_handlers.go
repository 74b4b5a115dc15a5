package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/buzzline-server/internal/core"
	"github.com/vovakirdan/buzzline-server/internal/store"
)

// UserHandlers serves information about the caller and who is online.
type UserHandlers struct {
	registry *core.Registry
	users    store.UserStore
	log      *zerolog.Logger
}

// NewUserHandlers creates a new user handlers instance. users may be nil.
func NewUserHandlers(registry *core.Registry, users store.UserStore, logger *zerolog.Logger) *UserHandlers {
	return &UserHandlers{
		registry: registry,
		users:    users,
		log:      logger,
	}
}

// MeResponse describes the authenticated caller.
type MeResponse struct {
	Name        string     `json:"name"`
	Email       string     `json:"email"`
	LoginCount  int64      `json:"login_count,omitempty"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
}

// OnlineResponse reports the number of live connections.
type OnlineResponse struct {
	Online int `json:"online"`
}

// Me returns the identity in the bearer token, enriched from the user directory.
// GET /api/me
func (h *UserHandlers) Me(c *gin.Context) {
	identity, ok := identityFromContext(c)
	if !ok {
		h.log.Error().Msg("identity not found in context")
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	resp := MeResponse{Name: identity.Name, Email: identity.Email}
	if h.users != nil {
		user, err := h.users.GetUserByEmail(c.Request.Context(), identity.Email)
		switch {
		case err == nil:
			resp.LoginCount = user.LoginCount
			resp.LastLoginAt = &user.LastLoginAt
		case errors.Is(err, store.ErrNotFound):
		default:
			h.log.Error().Err(err).Str("email", identity.Email).Msg("failed to load user")
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
			return
		}
	}

	c.JSON(http.StatusOK, resp)
}

// Online returns the number of admitted connections.
// GET /api/online
func (h *UserHandlers) Online(c *gin.Context) {
	c.JSON(http.StatusOK, OnlineResponse{Online: h.registry.Len()})
}
