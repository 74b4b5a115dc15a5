package http

import (
	"fmt"
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/buzzline-server/internal/auth"
	"github.com/vovakirdan/buzzline-server/internal/config"
	"github.com/vovakirdan/buzzline-server/internal/core"
	"github.com/vovakirdan/buzzline-server/internal/store"
)

// NewServer builds the HTTP server: the /ws upgrade route, OAuth glue and a
// small authenticated API. users may be nil.
//
// /ws is mounted on a plain mux next to gin: gin's response writer refuses to
// hijack once the upgrade response has been written.
func NewServer(registry *core.Registry, authService *auth.Service, users store.UserStore, cfg *config.Config, logger *zerolog.Logger) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), LoggerMiddleware(logger))

	router.GET("/health", healthHandler)

	apiHandlers := NewAPIHandlers(authService, cfg.OAuth, logger)
	router.GET("/login/google", apiHandlers.GoogleLogin)
	router.GET("/api/auth/google/callback", apiHandlers.GoogleCallback)

	userHandlers := NewUserHandlers(registry, users, logger)
	api := router.Group("/api", AuthMiddleware(authService, logger))
	api.GET("/me", userHandlers.Me)
	api.GET("/online", userHandlers.Online)

	mux := stdhttp.NewServeMux()
	mux.Handle("/ws", NewWSHandler(registry, authService.Verifier(), cfg, logger))
	mux.Handle("/", router)

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

func healthHandler(c *gin.Context) {
	_, _ = fmt.Fprint(c.Writer, "ok")
}
