package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/vovakirdan/buzzline-server/internal/core"
)

// DefaultTokenTTL is the lifetime of tokens minted after a successful login.
const DefaultTokenTTL = 24 * time.Hour

// Claims is exactly the payload BuzzLine tokens carry: email, name and exp.
type Claims struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	jwt.RegisteredClaims
}

// JWTConfig holds JWT configuration.
type JWTConfig struct {
	Secret []byte
	TTL    time.Duration
}

// GenerateToken signs an HS256 token for identity that expires after cfg.TTL.
func GenerateToken(cfg *JWTConfig, identity core.Identity, now time.Time) (string, error) {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	claims := Claims{
		Email: identity.Email,
		Name:  identity.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(cfg.Secret)
}

// ValidateToken parses and validates a JWT token. Errors wrap core.ErrExpiredToken,
// core.ErrMalformedClaims or core.ErrInvalidToken.
func ValidateToken(cfg *JWTConfig, tokenString string, now time.Time) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return cfg.Secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, fmt.Errorf("%w: %v", core.ErrExpiredToken, err)
		case errors.Is(err, jwt.ErrTokenRequiredClaimMissing):
			return nil, fmt.Errorf("%w: %v", core.ErrMalformedClaims, err)
		default:
			return nil, fmt.Errorf("%w: %v", core.ErrInvalidToken, err)
		}
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("%w: invalid token claims", core.ErrInvalidToken)
	}
	if claims.Name == "" || claims.Email == "" {
		return nil, fmt.Errorf("%w: name and email are required", core.ErrMalformedClaims)
	}

	return claims, nil
}

// Verifier checks and mints tokens signed with a shared secret.
type Verifier struct {
	cfg *JWTConfig
	now func() time.Time
}

// NewVerifier creates a verifier for cfg.
func NewVerifier(cfg *JWTConfig) *Verifier {
	return &Verifier{cfg: cfg, now: time.Now}
}

// Verify implements core.Verifier.
func (v *Verifier) Verify(token string) (core.Identity, error) {
	claims, err := ValidateToken(v.cfg, token, v.now())
	if err != nil {
		return core.Identity{}, err
	}
	return core.Identity{Name: claims.Name, Email: claims.Email}, nil
}

// Mint issues a token for identity with the configured TTL.
func (v *Verifier) Mint(identity core.Identity) (string, error) {
	return GenerateToken(v.cfg, identity, v.now())
}
