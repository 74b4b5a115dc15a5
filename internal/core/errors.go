package core

import (
	"errors"
	"fmt"
)

// Rejection reasons reported when admission fails.
const (
	ReasonMissingToken    = "missing_token"
	ReasonInvalidToken    = "invalid_token"
	ReasonExpiredToken    = "expired_token"
	ReasonMalformedClaims = "malformed_claims"
)

var (
	ErrMissingToken    = errors.New("token not provided")
	ErrInvalidToken    = errors.New("invalid token")
	ErrExpiredToken    = errors.New("token expired")
	ErrMalformedClaims = errors.New("malformed claims")

	// ErrPeerClosed is returned when queueing to a peer that was already evicted.
	ErrPeerClosed = errors.New("peer closed")
	// ErrSlowConsumer closes a peer whose outbound queue overflowed under the disconnect policy.
	ErrSlowConsumer = errors.New("slow consumer")
	// ErrRegistryClosed is returned by Admit after CloseAll and used as the close cause on shutdown.
	ErrRegistryClosed = errors.New("registry closed")
)

// AdmissionError wraps a rejection reason and the verifier error behind it.
type AdmissionError struct {
	Reason string
	Err    error
}

func (e *AdmissionError) Error() string {
	if e.Err == nil {
		return e.Reason
	}
	return fmt.Sprintf("%s: %v", e.Reason, e.Err)
}

func (e *AdmissionError) Unwrap() error {
	return e.Err
}

func admissionError(err error) *AdmissionError {
	switch {
	case errors.Is(err, ErrMissingToken):
		return &AdmissionError{Reason: ReasonMissingToken, Err: err}
	case errors.Is(err, ErrExpiredToken):
		return &AdmissionError{Reason: ReasonExpiredToken, Err: err}
	case errors.Is(err, ErrMalformedClaims):
		return &AdmissionError{Reason: ReasonMalformedClaims, Err: err}
	default:
		return &AdmissionError{Reason: ReasonInvalidToken, Err: err}
	}
}

// RejectionReason extracts the reason code from an admission failure.
// Errors that did not come from Admit map to invalid_token.
func RejectionReason(err error) string {
	var admErr *AdmissionError
	if errors.As(err, &admErr) {
		return admErr.Reason
	}
	return ReasonInvalidToken
}
