package app

import (
	"context"
	"errors"
	"fmt"
	stdhttp "net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/buzzline-server/internal/auth"
	"github.com/vovakirdan/buzzline-server/internal/config"
	"github.com/vovakirdan/buzzline-server/internal/core"
	"github.com/vovakirdan/buzzline-server/internal/store"
	"github.com/vovakirdan/buzzline-server/internal/store/sqlite"
	transporthttp "github.com/vovakirdan/buzzline-server/internal/transport/http"
)

// App wires together core and transport layers.
type App struct {
	server          *stdhttp.Server
	shutdownTimeout time.Duration
	registry        *core.Registry
	store           store.Store
	log             *zerolog.Logger
}

// New constructs the application with provided configuration.
func New(cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	var st store.Store
	if cfg.DatabasePath != "" {
		sqliteStore, err := sqlite.New(cfg.DatabasePath)
		if err != nil {
			return nil, fmt.Errorf("init store: %w", err)
		}
		st = sqliteStore
		logger.Info().Str("db_path", cfg.DatabasePath).Msg("database initialized")
	} else {
		logger.Info().Msg("no database configured, logins are not recorded")
	}

	verifier := auth.NewVerifier(&auth.JWTConfig{
		Secret: []byte(cfg.JWTSecret),
		TTL:    cfg.TokenTTL,
	})

	provider, err := newProvider(cfg.OAuth)
	if err != nil {
		if st != nil {
			_ = st.Close()
		}
		return nil, err
	}
	if provider == nil {
		logger.Warn().Msg("google oauth is not configured, /login/google will fail")
	}

	// A nil interface keeps the service from calling into a nil store.
	var users store.UserStore
	if st != nil {
		users = st
	}
	authService := auth.NewService(verifier, provider, users)

	registry := core.NewRegistry(core.Options{
		Mode:      RegistryMode(cfg.Mode),
		QueueSize: cfg.SendQueueSize,
		Overflow:  core.OverflowPolicy(cfg.OverflowPolicy),
	}, logger)

	server := transporthttp.NewServer(registry, authService, users, cfg, logger)

	return &App{
		server:          server,
		shutdownTimeout: cfg.ShutdownTimeout,
		registry:        registry,
		store:           st,
		log:             logger,
	}, nil
}

// RegistryMode maps the admission mode to the broadcast mode: authenticated
// clients see their own messages echoed back, anonymous ones do not.
func RegistryMode(mode string) core.Mode {
	if mode == config.ModeAnonymous {
		return core.ModeExcludeSender
	}
	return core.ModeIncludeSender
}

func newProvider(cfg config.OAuthConfig) (auth.Provider, error) {
	provider, err := auth.NewGoogleProvider(auth.OAuthConfig{
		ClientID:         cfg.ClientID,
		ClientSecret:     cfg.ClientSecret,
		ClientSecretFile: cfg.ClientSecretFile,
		RedirectURL:      cfg.RedirectURI,
	})
	if errors.Is(err, auth.ErrOAuthNotConfigured) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("init oauth: %w", err)
	}
	return provider, nil
}

// Handler exposes the router for in-process use.
func (a *App) Handler() stdhttp.Handler {
	return a.server.Handler
}

// Registry returns the live connection registry.
func (a *App) Registry() *core.Registry {
	return a.registry
}

// Run starts the HTTP server and blocks until context cancellation or fatal error.
func (a *App) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)

	go func() {
		a.log.Info().Str("addr", a.server.Addr).Str("mode", a.registry.Mode().String()).Msg("http server listening")
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	select {
	case err := <-serverErr:
		a.registry.CloseAll()
		a.cleanup()
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()

		// Hijacked websocket connections are not tracked by Shutdown.
		closed := a.registry.CloseAll()
		a.log.Info().Int("peers", closed).Msg("shutting down http server")
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			a.cleanup()
			return err
		}

		a.cleanup()
		return <-serverErr
	}
}

// cleanup closes database and other resources.
func (a *App) cleanup() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close store")
		} else {
			a.log.Info().Msg("store closed")
		}
	}
}
