package token

import (
	"context"
	"time"

	"github.com/cloudflare/circl/sign/mldsa/mldsa65"
)

// Provider issues and validates tokens under one signature scheme.
type Provider interface {
	// Algorithm returns the alg header value this provider writes and accepts.
	Algorithm() string
	// Issue signs a token for an already authenticated subject.
	Issue(subject string, userID int64) (string, time.Time, error)
	// Parse fully validates a token and returns its claims or a typed error.
	Parse(ctx context.Context, raw string) (*Claims, error)
}

// KeySource yields the public key post-quantum tokens are verified against. The local
// key store and the remote key resolver both implement it.
type KeySource interface {
	VerificationKey(ctx context.Context) (*mldsa65.PublicKey, error)
}

// SigningKeySource yields the private key used to sign post-quantum tokens.
type SigningKeySource interface {
	SigningKey() (*mldsa65.PrivateKey, error)
}

// Option tunes a provider.
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock overrides the time source used for iat/exp.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func defaultTTL(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return time.Hour
	}
	return ttl
}
