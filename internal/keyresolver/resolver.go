package keyresolver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/cloudflare/circl/sign/mldsa/mldsa65"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/spec-kit/banking-auth/internal/config"
	"github.com/spec-kit/banking-auth/internal/keystore"
	"github.com/spec-kit/banking-auth/internal/token"
)

// PublicKeyPath is the issuer's well-known verification key endpoint.
const PublicKeyPath = "/api/crypto/server-dsa-public-key"

const maxResponseBytes = 64 << 10

// Resolver fetches the issuer's ML-DSA-65 public key over HTTP and caches it. Concurrent
// callers that find the cache empty share a single in-flight fetch.
type Resolver struct {
	url     string
	client  *http.Client
	timeout time.Duration
	ttl     time.Duration
	now     func() time.Time
	logger  *zap.Logger

	group singleflight.Group

	mu        sync.RWMutex
	key       *mldsa65.PublicKey
	fetchedAt time.Time
}

// Option tunes a Resolver.
type Option func(*Resolver)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(r *Resolver) {
		if c != nil {
			r.client = c
		}
	}
}

// WithClock overrides the time source used for cache expiry.
func WithClock(now func() time.Time) Option {
	return func(r *Resolver) {
		if now != nil {
			r.now = now
		}
	}
}

// New builds a resolver for cfg.AuthServiceURL. A zero KeyCacheTTL caches the key for
// the life of the process.
func New(cfg config.IssuerConfig, logger *zap.Logger, opts ...Option) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Resolver{
		url:     cfg.AuthServiceURL + PublicKeyPath,
		client:  &http.Client{},
		timeout: cfg.FetchTimeout(),
		ttl:     cfg.KeyCacheTTL(),
		now:     time.Now,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// VerificationKey returns the cached key, fetching it when absent or stale. Failures wrap
// token.ErrKeyUnavailable.
func (r *Resolver) VerificationKey(ctx context.Context) (*mldsa65.PublicKey, error) {
	if key := r.cached(); key != nil {
		return key, nil
	}

	ch := r.group.DoChan("verification-key", func() (interface{}, error) {
		if key := r.cached(); key != nil {
			return key, nil
		}
		// the fetch outlives any single caller so that a cancelled first request does not
		// fail the others waiting on it
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
		defer cancel()

		key, err := r.fetch(fetchCtx)
		if err != nil {
			r.logger.Error("issuer verification key unavailable", zap.String("url", r.url), zap.Error(err))
			return nil, err
		}
		r.store(key)
		return key, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*mldsa65.PublicKey), nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", token.ErrKeyUnavailable, ctx.Err())
	}
}

// Invalidate drops the cached key so the next verification re-fetches it.
func (r *Resolver) Invalidate() {
	r.mu.Lock()
	r.key = nil
	r.fetchedAt = time.Time{}
	r.mu.Unlock()
	r.logger.Info("issuer verification key invalidated", zap.String("url", r.url))
}

// URL returns the endpoint the resolver fetches from.
func (r *Resolver) URL() string {
	return r.url
}

func (r *Resolver) cached() *mldsa65.PublicKey {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.key == nil {
		return nil
	}
	if r.ttl > 0 && r.now().Sub(r.fetchedAt) >= r.ttl {
		return nil
	}
	return r.key
}

func (r *Resolver) store(key *mldsa65.PublicKey) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.key = key
	r.fetchedAt = r.now()
}

type publicKeyResponse struct {
	PublicKey string `json:"publicKey"`
}

func (r *Resolver) fetch(ctx context.Context) (*mldsa65.PublicKey, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", token.ErrKeyUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", token.ErrKeyUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: issuer responded %d", token.ErrKeyUnavailable, resp.StatusCode)
	}

	var body publicKeyResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", token.ErrKeyUnavailable, err)
	}
	if body.PublicKey == "" {
		return nil, fmt.Errorf("%w: response has no publicKey", token.ErrKeyUnavailable)
	}

	key, err := keystore.DecodeSignaturePublicKey(body.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", token.ErrKeyUnavailable, err)
	}

	r.logger.Info("fetched issuer verification key", zap.String("url", r.url))
	return key, nil
}
