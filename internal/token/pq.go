package token

import (
	"context"
	"fmt"
	"time"

	"github.com/cloudflare/circl/sign/mldsa/mldsa65"
)

// KeyPairSource is satisfied by the local key store.
type KeyPairSource interface {
	KeySource
	SigningKeySource
}

// PostQuantumProvider frames and signs tokens with ML-DSA-65. No JWT library knows the
// algorithm, so the three segments are assembled by hand.
type PostQuantumProvider struct {
	signer SigningKeySource
	keys   KeySource
	ttl    time.Duration
	opts   options
}

// NewPostQuantumProvider builds an issuing provider backed by a local key pair.
func NewPostQuantumProvider(keys KeyPairSource, ttl time.Duration, opts ...Option) *PostQuantumProvider {
	return &PostQuantumProvider{
		signer: keys,
		keys:   keys,
		ttl:    defaultTTL(ttl),
		opts:   buildOptions(opts),
	}
}

// NewPostQuantumVerifier builds a verify-only provider, typically fed by a remote key
// resolver. Issue always fails with ErrKeyStoreUninitialized.
func NewPostQuantumVerifier(keys KeySource, opts ...Option) *PostQuantumProvider {
	return &PostQuantumProvider{
		keys: keys,
		ttl:  defaultTTL(0),
		opts: buildOptions(opts),
	}
}

// Algorithm implements Provider.
func (p *PostQuantumProvider) Algorithm() string {
	return AlgorithmMLDSA65
}

// Issue signs H.P with the store's private key and appends the encoded signature.
func (p *PostQuantumProvider) Issue(subject string, userID int64) (string, time.Time, error) {
	if p.signer == nil {
		return "", time.Time{}, ErrKeyStoreUninitialized
	}
	priv, err := p.signer.SigningKey()
	if err != nil {
		return "", time.Time{}, err
	}

	now := p.opts.now()
	exp := now.Add(p.ttl).Unix()

	header, err := encodeSegment(Header{Alg: AlgorithmMLDSA65, Typ: TypeJWT})
	if err != nil {
		return "", time.Time{}, fmt.Errorf("encode header: %w", err)
	}
	payload, err := encodeSegment(Payload{
		Sub:    subject,
		Iat:    now.Unix(),
		Exp:    &exp,
		UserID: userID,
		PQ:     true,
	})
	if err != nil {
		return "", time.Time{}, fmt.Errorf("encode payload: %w", err)
	}

	signingInput := header + "." + payload
	sig := make([]byte, mldsa65.SignatureSize)
	if err := mldsa65.SignTo(priv, []byte(signingInput), nil, true, sig); err != nil {
		return "", time.Time{}, fmt.Errorf("sign %s token: %w", AlgorithmMLDSA65, err)
	}

	return signingInput + "." + segmentEncoding.EncodeToString(sig), time.Unix(exp, 0), nil
}

// Parse validates framing, algorithm, signature and expiry, in that order.
func (p *PostQuantumProvider) Parse(ctx context.Context, raw string) (*Claims, error) {
	parts, err := segments(raw)
	if err != nil {
		return nil, err
	}
	alg, err := headerAlgorithm(parts[0])
	if err != nil {
		return nil, err
	}
	if alg != AlgorithmMLDSA65 {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, alg)
	}

	sig, err := segmentEncoding.DecodeString(parts[2])
	if err != nil {
		return nil, fmt.Errorf("%w: signature segment: %v", ErrMalformedToken, err)
	}
	if len(sig) != mldsa65.SignatureSize {
		return nil, fmt.Errorf("%w: signature has %d bytes", ErrSignatureInvalid, len(sig))
	}

	if p.keys == nil {
		return nil, ErrKeyStoreUninitialized
	}
	pub, err := p.keys.VerificationKey(ctx)
	if err != nil {
		return nil, err
	}
	if !mldsa65.Verify(pub, []byte(parts[0]+"."+parts[1]), nil, sig) {
		return nil, ErrSignatureInvalid
	}

	var payload Payload
	if err := decodeSegment(parts[1], &payload); err != nil {
		return nil, err
	}
	claims := &Claims{
		Subject:     payload.Sub,
		UserID:      payload.UserID,
		IssuedAt:    time.Unix(payload.Iat, 0),
		PostQuantum: payload.PQ,
		Algorithm:   AlgorithmMLDSA65,
	}
	if payload.Exp != nil {
		claims.ExpiresAt = time.Unix(*payload.Exp, 0)
		if p.opts.now().After(claims.ExpiresAt) {
			return nil, fmt.Errorf("%w: at %s", ErrTokenExpired, claims.ExpiresAt.UTC().Format(time.RFC3339))
		}
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing sub", ErrInvalidClaims)
	}
	return claims, nil
}
