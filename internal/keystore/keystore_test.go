package keystore

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGeneratesBothKeypairs(t *testing.T) {
	ks, err := New(nil)
	require.NoError(t, err)

	assert.True(t, ks.Ready())
	assert.NotNil(t, ks.SignaturePublicKey())
	assert.NotNil(t, ks.SignaturePrivateKey())
	assert.NotNil(t, ks.KEMPublicKey())
	assert.NotNil(t, ks.KEMPrivateKey())
}

func TestEncodedKeyRoundTrip(t *testing.T) {
	ks, err := New(nil)
	require.NoError(t, err)

	encoded, err := ks.EncodedSignaturePublicKey()
	require.NoError(t, err)

	decoded, err := DecodeSignaturePublicKey(encoded)
	require.NoError(t, err)
	assert.True(t, ks.SignaturePublicKey().Equal(decoded))

	kem, err := ks.EncodedKEMPublicKey()
	require.NoError(t, err)
	assert.NotEmpty(t, kem)
}

func TestIndependentInstancesDiffer(t *testing.T) {
	a, err := New(nil)
	require.NoError(t, err)
	b, err := New(nil)
	require.NoError(t, err)

	assert.False(t, a.SignaturePublicKey().Equal(b.SignaturePublicKey()))
}

func TestNilStoreReportsUninitialized(t *testing.T) {
	var ks *KeyStore

	assert.False(t, ks.Ready())
	assert.Nil(t, ks.SignaturePublicKey())

	_, err := ks.VerificationKey(context.Background())
	assert.True(t, errors.Is(err, ErrUninitialized))

	_, err = ks.SigningKey()
	assert.True(t, errors.Is(err, ErrUninitialized))

	_, err = ks.EncodedSignaturePublicKey()
	assert.True(t, errors.Is(err, ErrUninitialized))
}

func TestDecodeRejectsGarbage(t *testing.T) {
	_, err := DecodeSignaturePublicKey("not base64!")
	assert.Error(t, err)

	_, err = DecodeSignaturePublicKey("AAAA")
	assert.Error(t, err)
}
