package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

// HMACProvider handles issuing and validating HS256 tokens signed with a shared secret.
type HMACProvider struct {
	secret []byte
	ttl    time.Duration
	opts   options
}

type hmacClaims struct {
	UserID int64 `json:"userId"`
	jwt.RegisteredClaims
}

// NewHMACProvider builds a classical provider. A non-positive ttl defaults to one hour.
func NewHMACProvider(secret string, ttl time.Duration, opts ...Option) *HMACProvider {
	return &HMACProvider{
		secret: []byte(secret),
		ttl:    defaultTTL(ttl),
		opts:   buildOptions(opts),
	}
}

// Algorithm implements Provider.
func (p *HMACProvider) Algorithm() string {
	return AlgorithmHS256
}

// Issue builds and signs an HS256 token for the subject.
func (p *HMACProvider) Issue(subject string, userID int64) (string, time.Time, error) {
	now := p.opts.now()
	expiresAt := now.Add(p.ttl)
	claims := &hmacClaims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign %s token: %w", AlgorithmHS256, err)
	}
	return signed, expiresAt, nil
}

// Parse validates framing, algorithm, signature and expiry, in that order.
func (p *HMACProvider) Parse(_ context.Context, raw string) (*Claims, error) {
	parts, err := segments(raw)
	if err != nil {
		return nil, err
	}
	alg, err := headerAlgorithm(parts[0])
	if err != nil {
		return nil, err
	}
	if alg != AlgorithmHS256 {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, alg)
	}

	claims := &hmacClaims{}
	parsed, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return p.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(p.opts.now),
	)
	if err != nil {
		return nil, mapJWTError(err)
	}
	if !parsed.Valid {
		return nil, ErrSignatureInvalid
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing sub", ErrInvalidClaims)
	}

	out := &Claims{
		Subject:   claims.Subject,
		UserID:    claims.UserID,
		Algorithm: AlgorithmHS256,
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}
	return out, nil
}

func mapJWTError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %v", ErrTokenExpired, err)
	case errors.Is(err, jwt.ErrTokenMalformed):
		return fmt.Errorf("%w: %v", ErrMalformedToken, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return fmt.Errorf("%w: %v", ErrSignatureInvalid, err)
	case errors.Is(err, jwt.ErrTokenUnverifiable):
		return fmt.Errorf("%w: %v", ErrUnsupportedAlgorithm, err)
	default:
		return fmt.Errorf("%w: %v", ErrInvalidClaims, err)
	}
}
