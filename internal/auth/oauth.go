package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// GoogleUserInfoURL returns the profile of the authorized Google account.
const GoogleUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

var googleScopes = []string{
	"https://www.googleapis.com/auth/userinfo.profile",
	"https://www.googleapis.com/auth/userinfo.email",
	"openid",
}

// ErrOAuthNotConfigured is returned when no OAuth client credentials are available.
var ErrOAuthNotConfigured = errors.New("oauth client is not configured")

// Profile is the subset of the provider's user info BuzzLine needs.
type Profile struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

// Provider runs the authorization-code flow against an identity provider.
type Provider interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*Profile, error)
}

// OAuthConfig describes how to build the Google OAuth client.
// ClientSecretFile takes precedence over ClientID/ClientSecret.
type OAuthConfig struct {
	ClientID         string
	ClientSecret     string
	ClientSecretFile string
	RedirectURL      string
	// UserInfoURL overrides GoogleUserInfoURL; Endpoint overrides google.Endpoint.
	UserInfoURL string
	Endpoint    *oauth2.Endpoint
}

// GoogleProvider implements Provider with golang.org/x/oauth2.
type GoogleProvider struct {
	cfg         *oauth2.Config
	userInfoURL string
}

// NewGoogleProvider builds a provider, reading client_secret.json when configured.
func NewGoogleProvider(opts OAuthConfig) (*GoogleProvider, error) {
	var cfg *oauth2.Config

	switch {
	case opts.ClientSecretFile != "":
		data, err := os.ReadFile(opts.ClientSecretFile)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("%w: %s not found", ErrOAuthNotConfigured, opts.ClientSecretFile)
			}
			return nil, fmt.Errorf("read client secret file: %w", err)
		}
		cfg, err = google.ConfigFromJSON(data, googleScopes...)
		if err != nil {
			return nil, fmt.Errorf("parse client secret file: %w", err)
		}
	case opts.ClientID != "":
		cfg = &oauth2.Config{
			ClientID:     opts.ClientID,
			ClientSecret: opts.ClientSecret,
			Scopes:       googleScopes,
			Endpoint:     google.Endpoint,
		}
	default:
		return nil, ErrOAuthNotConfigured
	}

	if opts.RedirectURL != "" {
		cfg.RedirectURL = opts.RedirectURL
	}
	if opts.Endpoint != nil {
		cfg.Endpoint = *opts.Endpoint
	}

	userInfoURL := opts.UserInfoURL
	if userInfoURL == "" {
		userInfoURL = GoogleUserInfoURL
	}

	return &GoogleProvider{cfg: cfg, userInfoURL: userInfoURL}, nil
}

// AuthCodeURL returns the consent page URL for state.
func (p *GoogleProvider) AuthCodeURL(state string) string {
	return p.cfg.AuthCodeURL(state)
}

// Exchange trades code for an access token and fetches the user profile with it.
func (p *GoogleProvider) Exchange(ctx context.Context, code string) (*Profile, error) {
	token, err := p.cfg.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange code: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userInfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build userinfo request: %w", err)
	}
	resp, err := p.cfg.Client(ctx, token).Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch userinfo: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("fetch userinfo: status %d: %s", resp.StatusCode, body)
	}

	var profile Profile
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return nil, fmt.Errorf("decode userinfo: %w", err)
	}
	return &profile, nil
}
