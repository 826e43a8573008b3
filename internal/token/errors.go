package token

import (
	"errors"

	"github.com/spec-kit/banking-auth/internal/keystore"
)

var (
	ErrMalformedToken        = errors.New("token must have three non-empty segments")
	ErrSignatureInvalid      = errors.New("token signature invalid")
	ErrTokenExpired          = errors.New("token expired")
	ErrUnsupportedAlgorithm  = errors.New("token algorithm not supported by this verifier")
	ErrInvalidClaims         = errors.New("token claims invalid")
	ErrKeyUnavailable        = errors.New("verification key unavailable")
	ErrKeyStoreUninitialized = keystore.ErrUninitialized
)

// Kind returns a stable label for logs and metrics.
func Kind(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrMalformedToken):
		return "malformed"
	case errors.Is(err, ErrSignatureInvalid):
		return "signature_invalid"
	case errors.Is(err, ErrTokenExpired):
		return "expired"
	case errors.Is(err, ErrUnsupportedAlgorithm):
		return "unsupported_algorithm"
	case errors.Is(err, ErrInvalidClaims):
		return "invalid_claims"
	case errors.Is(err, ErrKeyUnavailable):
		return "key_unavailable"
	case errors.Is(err, ErrKeyStoreUninitialized):
		return "keystore_uninitialized"
	default:
		return "unknown"
	}
}

// IsFatal reports errors that mean no trust decision could be made at all, as opposed
// to a token that was checked and found bad.
func IsFatal(err error) bool {
	return errors.Is(err, ErrKeyUnavailable) || errors.Is(err, ErrKeyStoreUninitialized)
}
