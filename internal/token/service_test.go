package token

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spec-kit/banking-auth/internal/config"
	"github.com/spec-kit/banking-auth/internal/keystore"
)

type recordingRecorder struct {
	mu       sync.Mutex
	issued   map[string]int
	outcomes map[string]int
}

func newRecordingRecorder() *recordingRecorder {
	return &recordingRecorder{issued: map[string]int{}, outcomes: map[string]int{}}
}

func (r *recordingRecorder) RecordTokenIssued(alg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.issued[alg]++
}

func (r *recordingRecorder) RecordVerification(alg, outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes[alg+"|"+outcome]++
}

func TestServiceFromConfigSelectsProvider(t *testing.T) {
	ks := newTestKeyStore(t)

	classical, err := NewServiceFromConfig(config.AuthConfig{JWTSecret: testSecret}, ks, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, AlgorithmHS256, classical.Algorithm())
	assert.False(t, classical.PostQuantumEnabled())

	pq, err := NewServiceFromConfig(config.AuthConfig{UsePostQuantum: true}, ks, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, AlgorithmMLDSA65, pq.Algorithm())
	assert.True(t, pq.PostQuantumEnabled())
}

func TestServiceFromConfigRequiresKeyStore(t *testing.T) {
	_, err := NewServiceFromConfig(config.AuthConfig{UsePostQuantum: true}, nil, nil, nil)
	assert.True(t, errors.Is(err, ErrKeyStoreUninitialized))

	_, err = NewServiceFromConfig(config.AuthConfig{}, nil, nil, nil)
	assert.Error(t, err)
}

func TestServiceRoundTripBothSchemes(t *testing.T) {
	ks := newTestKeyStore(t)
	for _, usePQ := range []bool{false, true} {
		svc, err := NewServiceFromConfig(config.AuthConfig{JWTSecret: testSecret, UsePostQuantum: usePQ}, ks, nil, nil)
		require.NoError(t, err)

		for _, tc := range []struct {
			subject string
			userID  int64
		}{{"alice", 42}, {"bob@example.com", 1}, {"ünïcode", 9_000_000_000}} {
			tok, _, err := svc.Issue(tc.subject, tc.userID)
			require.NoError(t, err)

			ok, err := svc.Verify(context.Background(), tok)
			require.NoError(t, err)
			assert.True(t, ok)

			sub, err := svc.SubjectOf(context.Background(), tok)
			require.NoError(t, err)
			assert.Equal(t, tc.subject, sub)

			uid, err := svc.UserIDOf(context.Background(), tok)
			require.NoError(t, err)
			assert.Equal(t, tc.userID, uid)
		}
	}
}

func TestServiceCrossSchemeStrictlyRejected(t *testing.T) {
	ks := newTestKeyStore(t)
	classical, err := NewServiceFromConfig(config.AuthConfig{JWTSecret: testSecret}, ks, nil, nil)
	require.NoError(t, err)
	pq, err := NewServiceFromConfig(config.AuthConfig{JWTSecret: testSecret, UsePostQuantum: true}, ks, nil, nil)
	require.NoError(t, err)

	classicalTok, _, err := classical.Issue("alice", 1)
	require.NoError(t, err)
	pqTok, _, err := pq.Issue("alice", 1)
	require.NoError(t, err)

	ok, err := pq.Verify(context.Background(), classicalTok)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = classical.Verify(context.Background(), pqTok)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = classical.SubjectOf(context.Background(), pqTok)
	assert.True(t, errors.Is(err, ErrUnsupportedAlgorithm))
}

func TestServiceVerifyCollapsesTokenErrors(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	rec := newRecordingRecorder()
	svc := NewService(NewHMACProvider(testSecret, time.Hour), zap.New(core), rec)

	for _, raw := range []string{"", "a.b", "x.y.z"} {
		ok, err := svc.Verify(context.Background(), raw)
		assert.NoError(t, err)
		assert.False(t, ok)
	}

	assert.Equal(t, 3, rec.outcomes[AlgorithmHS256+"|malformed"])
	assert.Equal(t, 3, logs.FilterMessage("token rejected").Len())
}

func TestServiceVerifySurfacesKeyUnavailable(t *testing.T) {
	ks := newTestKeyStore(t)
	tok, _, err := NewPostQuantumProvider(ks, time.Hour).Issue("alice", 1)
	require.NoError(t, err)

	core, logs := observer.New(zap.DebugLevel)
	rec := newRecordingRecorder()
	svc := NewService(NewPostQuantumVerifier(&countingKeySource{err: ErrKeyUnavailable}), zap.New(core), rec)

	ok, err := svc.Verify(context.Background(), tok)
	assert.False(t, ok)
	assert.True(t, errors.Is(err, ErrKeyUnavailable))
	assert.Equal(t, 1, rec.outcomes[AlgorithmMLDSA65+"|key_unavailable"])
	assert.Equal(t, 1, logs.FilterMessage("token verification could not run").Len())
}

func TestServiceVerifySurfacesUninitializedKeyStore(t *testing.T) {
	var missing *keystore.KeyStore
	svc := NewService(NewPostQuantumProvider(missing, time.Hour), nil, nil)

	_, _, err := svc.Issue("alice", 1)
	assert.True(t, errors.Is(err, ErrKeyStoreUninitialized))

	tok, _, err := NewPostQuantumProvider(newTestKeyStore(t), time.Hour).Issue("alice", 1)
	require.NoError(t, err)
	ok, err := svc.Verify(context.Background(), tok)
	assert.False(t, ok)
	assert.True(t, errors.Is(err, ErrKeyStoreUninitialized))
}

func TestServiceRecordsIssuance(t *testing.T) {
	rec := newRecordingRecorder()
	svc := NewService(NewHMACProvider(testSecret, time.Hour), nil, rec)

	_, _, err := svc.Issue("alice", 1)
	require.NoError(t, err)
	assert.Equal(t, 1, rec.issued[AlgorithmHS256])
}

func TestKind(t *testing.T) {
	assert.Equal(t, "ok", Kind(nil))
	assert.Equal(t, "expired", Kind(ErrTokenExpired))
	assert.Equal(t, "keystore_uninitialized", Kind(keystore.ErrUninitialized))
	assert.Equal(t, "unknown", Kind(errors.New("boom")))
}
