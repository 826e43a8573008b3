package keystore

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"github.com/cloudflare/circl/kem/mlkem/mlkem768"
	"github.com/cloudflare/circl/sign/mldsa/mldsa65"
)

const (
	// SignatureAlgorithm names the signature scheme backing post-quantum tokens.
	SignatureAlgorithm = "ML-DSA-65"
	// KEMAlgorithm names the key encapsulation scheme.
	KEMAlgorithm = "ML-KEM-768"
)

// ErrUninitialized is returned when key material is requested before the store exists.
var ErrUninitialized = errors.New("key store not initialized")

// KeyStore owns the issuing service's post-quantum key material. It is built once at
// startup and never mutated, so accessors need no locking.
type KeyStore struct {
	sigPublic  *mldsa65.PublicKey
	sigPrivate *mldsa65.PrivateKey
	kemPublic  *mlkem768.PublicKey
	kemPrivate *mlkem768.PrivateKey
}

// New generates a fresh signature keypair and KEM keypair. A nil reader uses crypto/rand.
func New(random io.Reader) (*KeyStore, error) {
	if random == nil {
		random = rand.Reader
	}

	kemPub, kemPriv, err := mlkem768.GenerateKeyPair(random)
	if err != nil {
		return nil, fmt.Errorf("generate %s keypair: %w", KEMAlgorithm, err)
	}

	sigPub, sigPriv, err := mldsa65.GenerateKey(random)
	if err != nil {
		return nil, fmt.Errorf("generate %s keypair: %w", SignatureAlgorithm, err)
	}

	return &KeyStore{
		sigPublic:  sigPub,
		sigPrivate: sigPriv,
		kemPublic:  kemPub,
		kemPrivate: kemPriv,
	}, nil
}

// SignaturePublicKey returns the ML-DSA-65 verification key.
func (k *KeyStore) SignaturePublicKey() *mldsa65.PublicKey {
	if k == nil {
		return nil
	}
	return k.sigPublic
}

// SignaturePrivateKey returns the ML-DSA-65 signing key.
func (k *KeyStore) SignaturePrivateKey() *mldsa65.PrivateKey {
	if k == nil {
		return nil
	}
	return k.sigPrivate
}

// KEMPublicKey returns the ML-KEM-768 encapsulation key.
func (k *KeyStore) KEMPublicKey() *mlkem768.PublicKey {
	if k == nil {
		return nil
	}
	return k.kemPublic
}

// KEMPrivateKey returns the ML-KEM-768 decapsulation key.
func (k *KeyStore) KEMPrivateKey() *mlkem768.PrivateKey {
	if k == nil {
		return nil
	}
	return k.kemPrivate
}

// Ready reports whether both keypairs are present.
func (k *KeyStore) Ready() bool {
	return k != nil && k.sigPublic != nil && k.sigPrivate != nil && k.kemPublic != nil && k.kemPrivate != nil
}

// VerificationKey lets the local store act as a token key source.
func (k *KeyStore) VerificationKey(_ context.Context) (*mldsa65.PublicKey, error) {
	if k == nil || k.sigPublic == nil {
		return nil, ErrUninitialized
	}
	return k.sigPublic, nil
}

// SigningKey returns the private signature key or ErrUninitialized.
func (k *KeyStore) SigningKey() (*mldsa65.PrivateKey, error) {
	if k == nil || k.sigPrivate == nil {
		return nil, ErrUninitialized
	}
	return k.sigPrivate, nil
}

// EncodedSignaturePublicKey returns the packed verification key as standard base64,
// the form served by the public key distribution endpoint.
func (k *KeyStore) EncodedSignaturePublicKey() (string, error) {
	if k == nil || k.sigPublic == nil {
		return "", ErrUninitialized
	}
	return EncodeSignaturePublicKey(k.sigPublic)
}

// EncodeSignaturePublicKey packs pk as standard base64.
func EncodeSignaturePublicKey(pk *mldsa65.PublicKey) (string, error) {
	raw, err := pk.MarshalBinary()
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// EncodedKEMPublicKey returns the packed encapsulation key as standard base64.
func (k *KeyStore) EncodedKEMPublicKey() (string, error) {
	if k == nil || k.kemPublic == nil {
		return "", ErrUninitialized
	}
	raw, err := k.kemPublic.MarshalBinary()
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// DecodeSignaturePublicKey reverses EncodedSignaturePublicKey.
func DecodeSignaturePublicKey(encoded string) (*mldsa65.PublicKey, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode public key: %w", err)
	}
	if len(raw) != mldsa65.PublicKeySize {
		return nil, fmt.Errorf("public key has %d bytes, want %d", len(raw), mldsa65.PublicKeySize)
	}
	var pk mldsa65.PublicKey
	if err := pk.UnmarshalBinary(raw); err != nil {
		return nil, fmt.Errorf("unpack public key: %w", err)
	}
	return &pk, nil
}
