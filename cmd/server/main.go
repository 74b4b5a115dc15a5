package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/vovakirdan/buzzline-server/internal/app"
	"github.com/vovakirdan/buzzline-server/internal/auth"
	"github.com/vovakirdan/buzzline-server/internal/config"
	"github.com/vovakirdan/buzzline-server/internal/core"
	applog "github.com/vovakirdan/buzzline-server/internal/log"
)

var (
	configPath string
	overrides  config.Config
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "buzzline-server",
		Short:         "Real-time WebSocket message broadcaster",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runServer,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&configPath, "config", "", "path to config.yaml")
	flags.StringVar(&overrides.Addr, "addr", "", "HTTP listen address")
	flags.StringVar(&overrides.LogLevel, "log-level", "", "log level (debug, info, warn, error)")
	flags.StringVar(&overrides.Mode, "mode", "", "admission mode (authenticated or anonymous)")
	flags.StringVar(&overrides.DatabasePath, "database-path", "", "sqlite user directory path")
	flags.DurationVar(&overrides.ReadHeaderTimeout, "read-header-timeout", 0, "HTTP read header timeout")
	flags.DurationVar(&overrides.ShutdownTimeout, "shutdown-timeout", 0, "graceful shutdown timeout")

	root.AddCommand(newTokenCmd())
	return root
}

// loadConfig reads .env, the config file and env vars, then applies flags.
func loadConfig() (config.Config, *zerolog.Logger, error) {
	bootLogger := applog.New("info", "console")

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		bootLogger.Warn().Err(err).Msg("failed to load .env")
	}

	cfg, path, err := config.Load(bootLogger, configPath)
	if err != nil {
		return cfg, bootLogger, err
	}
	cfg.UpdateFrom(overrides)

	logger := applog.New(cfg.LogLevel, cfg.LogFormat)
	logger.Debug().Str("path", path).Msg("config loaded")
	return cfg, logger, nil
}

func runServer(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		logger.Error().Err(err).Msg("configuration error")
		return fmt.Errorf("configuration error: %w", err)
	}

	logger.Info().
		Str("mode", cfg.Mode).
		Str("jwt_secret", config.Mask(cfg.JWTSecret)).
		Str("redirect_uri", cfg.OAuth.RedirectURI).
		Msg("starting buzzline server")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(&cfg, logger)
	if err != nil {
		return fmt.Errorf("init app: %w", err)
	}

	if err := application.Run(ctx); err != nil {
		logger.Error().Err(err).Msg("server exited with error")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}

func newTokenCmd() *cobra.Command {
	var name, email string

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a token for local testing",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.JWTSecret == "" {
				return fmt.Errorf("%w: jwt_secret", config.ErrMissingSetting)
			}

			verifier := auth.NewVerifier(&auth.JWTConfig{Secret: []byte(cfg.JWTSecret), TTL: cfg.TokenTTL})
			token, err := verifier.Mint(core.Identity{Name: name, Email: email})
			if err != nil {
				return fmt.Errorf("mint token: %w", err)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&email, "email", "", "email address")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}
