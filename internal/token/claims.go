package token

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const (
	// TypeJWT is the constant typ header value.
	TypeJWT = "JWT"
	// AlgorithmHS256 identifies the classical shared-secret scheme.
	AlgorithmHS256 = "HS256"
	// AlgorithmMLDSA65 identifies the post-quantum signature scheme.
	AlgorithmMLDSA65 = "ML-DSA-65"
)

// Claims is the verified content of a token, independent of the scheme that signed it.
type Claims struct {
	Subject     string
	UserID      int64
	IssuedAt    time.Time
	ExpiresAt   time.Time
	PostQuantum bool
	Algorithm   string
}

// Header is the first token segment.
type Header struct {
	Alg string `json:"alg"`
	Typ string `json:"typ"`
}

// Payload is the second token segment as written by the post-quantum provider. Field
// order is fixed so the encoding is canonical.
type Payload struct {
	Sub    string `json:"sub"`
	Iat    int64  `json:"iat"`
	Exp    *int64 `json:"exp,omitempty"`
	UserID int64  `json:"userId"`
	PQ     bool   `json:"pq,omitempty"`
}

var segmentEncoding = base64.RawURLEncoding

// segments splits a token into exactly three non-empty parts.
func segments(raw string) ([3]string, error) {
	var out [3]string
	parts := strings.Split(raw, ".")
	if len(parts) != 3 {
		return out, fmt.Errorf("%w: got %d segments", ErrMalformedToken, len(parts))
	}
	for i, p := range parts {
		if p == "" {
			return out, fmt.Errorf("%w: segment %d empty", ErrMalformedToken, i)
		}
		out[i] = p
	}
	return out, nil
}

func encodeSegment(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return segmentEncoding.EncodeToString(raw), nil
}

func decodeSegment(seg string, v any) error {
	raw, err := segmentEncoding.DecodeString(seg)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidClaims, err)
	}
	return nil
}

// headerAlgorithm reads the alg field of an encoded header segment.
func headerAlgorithm(seg string) (string, error) {
	var h Header
	if err := decodeSegment(seg, &h); err != nil {
		return "", err
	}
	return h.Alg, nil
}

// Inspect decodes a token's header and payload without checking the signature. It is
// meant for diagnostics only; the result must never be trusted.
func Inspect(raw string) (*Header, *Payload, error) {
	parts, err := segments(raw)
	if err != nil {
		return nil, nil, err
	}
	var h Header
	if err := decodeSegment(parts[0], &h); err != nil {
		return nil, nil, err
	}
	var p Payload
	if err := decodeSegment(parts[1], &p); err != nil {
		return nil, nil, err
	}
	return &h, &p, nil
}
