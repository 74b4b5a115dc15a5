package core

import (
	"fmt"
	"strings"
)

// Verifier turns an opaque bearer token into a verified identity.
// Implementations wrap ErrExpiredToken, ErrMalformedClaims or ErrInvalidToken
// so Admit can report a precise rejection reason.
type Verifier interface {
	Verify(token string) (Identity, error)
}

// Admit verifies token and returns the identity to bind to a new connection.
// It performs no I/O beyond what the verifier does and never retries.
// Failures are always *AdmissionError.
func Admit(verifier Verifier, token string) (Identity, error) {
	if strings.TrimSpace(token) == "" {
		return Identity{}, admissionError(ErrMissingToken)
	}
	if verifier == nil {
		return Identity{}, admissionError(fmt.Errorf("%w: no verifier configured", ErrInvalidToken))
	}

	identity, err := verifier.Verify(token)
	if err != nil {
		return Identity{}, admissionError(err)
	}
	if identity.Name == "" || identity.Email == "" {
		return Identity{}, admissionError(fmt.Errorf("%w: name and email are required", ErrMalformedClaims))
	}
	return identity, nil
}
