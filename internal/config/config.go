package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Broadcast modes.
const (
	// ModeAuthenticated requires a token and echoes messages back to the sender.
	ModeAuthenticated = "authenticated"
	// ModeAnonymous admits everyone and never echoes to the sender.
	ModeAnonymous = "anonymous"
)

// Overflow policies for per-connection send queues.
const (
	OverflowDropOldest = "drop_oldest"
	OverflowDisconnect = "disconnect"
)

var (
	// ErrMissingSetting reports a required value that is empty.
	ErrMissingSetting = errors.New("missing required setting")
	// ErrInvalidSetting reports a value outside its allowed set.
	ErrInvalidSetting = errors.New("invalid setting")
)

// OAuthConfig configures the Google login flow.
type OAuthConfig struct {
	ClientID            string `mapstructure:"client_id" yaml:"client_id"`
	ClientSecret        string `mapstructure:"client_secret" yaml:"client_secret"`
	ClientSecretFile    string `mapstructure:"client_secret_file" yaml:"client_secret_file"`
	RedirectURI         string `mapstructure:"redirect_uri" yaml:"redirect_uri"`
	FrontendCallbackURL string `mapstructure:"frontend_callback_url" yaml:"frontend_callback_url"`
	FrontendLoginURL    string `mapstructure:"frontend_login_url" yaml:"frontend_login_url"`
}

// Enabled reports whether any client credentials are configured.
func (o OAuthConfig) Enabled() bool {
	return o.ClientID != "" || o.ClientSecretFile != ""
}

// Config holds server configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	LogLevel          string        `mapstructure:"log_level" yaml:"log_level"`
	LogFormat         string        `mapstructure:"log_format" yaml:"log_format"`

	Mode      string        `mapstructure:"mode" yaml:"mode"`
	JWTSecret string        `mapstructure:"jwt_secret" yaml:"jwt_secret"`
	TokenTTL  time.Duration `mapstructure:"token_ttl" yaml:"token_ttl"`

	MaxMessageBytes    int64         `mapstructure:"max_message_bytes" yaml:"max_message_bytes"`
	SendQueueSize      int           `mapstructure:"send_queue_size" yaml:"send_queue_size"`
	OverflowPolicy     string        `mapstructure:"overflow_policy" yaml:"overflow_policy"`
	WriteTimeout       time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	IdleTimeout        time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout"`
	RateLimitPerMinute int           `mapstructure:"rate_limit_per_minute" yaml:"rate_limit_per_minute"`
	AllowedOrigins     []string      `mapstructure:"allowed_origins" yaml:"allowed_origins"`

	DatabasePath string      `mapstructure:"database_path" yaml:"database_path"`
	OAuth        OAuthConfig `mapstructure:"oauth" yaml:"oauth"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:              ":8080",
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   5 * time.Second,
		LogLevel:          "info",
		LogFormat:         "console",
		Mode:              ModeAuthenticated,
		TokenTTL:          24 * time.Hour,
		MaxMessageBytes:   64 << 10,
		SendQueueSize:     64,
		OverflowPolicy:    OverflowDropOldest,
		WriteTimeout:      10 * time.Second,
		DatabasePath:      "buzzline.db",
		OAuth: OAuthConfig{
			FrontendCallbackURL: "http://localhost:5173/auth/callback",
			FrontendLoginURL:    "http://localhost:5173/login",
		},
	}
}

// UpdateFrom overwrites non-zero values from other config into receiver.
// Only the settings exposed as command-line flags are considered.
func (c *Config) UpdateFrom(other Config) {
	if other.Addr != "" {
		c.Addr = other.Addr
	}
	if other.ReadHeaderTimeout != 0 {
		c.ReadHeaderTimeout = other.ReadHeaderTimeout
	}
	if other.ShutdownTimeout != 0 {
		c.ShutdownTimeout = other.ShutdownTimeout
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	if other.Mode != "" {
		c.Mode = other.Mode
	}
	if other.DatabasePath != "" {
		c.DatabasePath = other.DatabasePath
	}
}

// Validate checks settings that must hold before any connection is accepted.
func (c *Config) Validate() error {
	switch c.Mode {
	case ModeAuthenticated:
		if c.JWTSecret == "" {
			return fmt.Errorf("%w: jwt_secret (JWT_SECRET) is required in %s mode", ErrMissingSetting, ModeAuthenticated)
		}
	case ModeAnonymous:
	default:
		return fmt.Errorf("%w: mode %q, want %s or %s", ErrInvalidSetting, c.Mode, ModeAuthenticated, ModeAnonymous)
	}

	switch c.OverflowPolicy {
	case OverflowDropOldest, OverflowDisconnect:
	default:
		return fmt.Errorf("%w: overflow_policy %q", ErrInvalidSetting, c.OverflowPolicy)
	}

	if c.SendQueueSize <= 0 {
		return fmt.Errorf("%w: send_queue_size must be positive", ErrInvalidSetting)
	}
	if c.MaxMessageBytes <= 0 {
		return fmt.Errorf("%w: max_message_bytes must be positive", ErrInvalidSetting)
	}
	if c.RateLimitPerMinute < 0 || c.IdleTimeout < 0 || c.WriteTimeout < 0 {
		return fmt.Errorf("%w: limits and timeouts cannot be negative", ErrInvalidSetting)
	}

	if c.OAuth.Enabled() && c.OAuth.RedirectURI == "" {
		return fmt.Errorf("%w: oauth.redirect_uri (REDIRECT_URI) is required when oauth is configured", ErrMissingSetting)
	}
	return nil
}

// Mask hides all but the last four characters of a secret for logging.
func Mask(secret string) string {
	if len(secret) <= 4 {
		return strings.Repeat("*", 10)
	}
	return strings.Repeat("*", 10) + secret[len(secret)-4:]
}
