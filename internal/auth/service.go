package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/vovakirdan/buzzline-server/internal/core"
	"github.com/vovakirdan/buzzline-server/internal/store"
)

// ErrIncompleteProfile is returned when the provider profile lacks a name or email.
var ErrIncompleteProfile = errors.New("incomplete profile")

// Service provides authentication operations.
type Service struct {
	verifier *Verifier
	provider Provider
	users    store.UserStore
}

// NewService creates a new authentication service. provider and users may be nil:
// without a provider the OAuth flow reports ErrOAuthNotConfigured, without a
// user store logins are not recorded.
func NewService(verifier *Verifier, provider Provider, users store.UserStore) *Service {
	return &Service{
		verifier: verifier,
		provider: provider,
		users:    users,
	}
}

// Verifier returns the token verifier used for admission.
func (s *Service) Verifier() *Verifier {
	return s.verifier
}

// ValidateToken validates a bearer token and returns the identity it carries.
func (s *Service) ValidateToken(token string) (core.Identity, error) {
	return core.Admit(s.verifier, token)
}

// LoginURL returns the provider consent URL bound to state.
func (s *Service) LoginURL(state string) (string, error) {
	if s.provider == nil {
		return "", ErrOAuthNotConfigured
	}
	return s.provider.AuthCodeURL(state), nil
}

// CompleteLogin exchanges an authorization code, records the user and mints
// a BuzzLine token for them.
func (s *Service) CompleteLogin(ctx context.Context, code string) (string, core.Identity, error) {
	if s.provider == nil {
		return "", core.Identity{}, ErrOAuthNotConfigured
	}

	profile, err := s.provider.Exchange(ctx, code)
	if err != nil {
		return "", core.Identity{}, fmt.Errorf("oauth exchange: %w", err)
	}

	identity := core.Identity{
		Name:  strings.TrimSpace(profile.Name),
		Email: strings.TrimSpace(profile.Email),
	}
	if identity.Name == "" || identity.Email == "" {
		return "", core.Identity{}, ErrIncompleteProfile
	}

	if s.users != nil {
		if _, err := s.users.UpsertUser(ctx, identity.Email, identity.Name); err != nil {
			return "", core.Identity{}, fmt.Errorf("record user: %w", err)
		}
	}

	token, err := s.verifier.Mint(identity)
	if err != nil {
		return "", core.Identity{}, fmt.Errorf("generate token: %w", err)
	}

	return token, identity, nil
}
