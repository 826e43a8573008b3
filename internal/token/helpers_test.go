package token

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cloudflare/circl/sign/mldsa/mldsa65"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/banking-auth/internal/keystore"
)

const testSecret = "this-is-a-32-byte-test-signing-k"

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// countingKeySource wraps a key and counts lookups, optionally failing them.
type countingKeySource struct {
	mu    sync.Mutex
	key   *mldsa65.PublicKey
	err   error
	calls int
}

func (s *countingKeySource) VerificationKey(context.Context) (*mldsa65.PublicKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.key, nil
}

func (s *countingKeySource) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func newTestKeyStore(t *testing.T) *keystore.KeyStore {
	t.Helper()
	ks, err := keystore.New(nil)
	require.NoError(t, err)
	return ks
}

// flipAt replaces the character at i with a different base64url character.
func flipAt(tok string, i int) string {
	repl := byte('A')
	if tok[i] == 'A' {
		repl = 'B'
	}
	return tok[:i] + string(repl) + tok[i+1:]
}

// signedPrefixLen returns the length of "H.P" within tok.
func signedPrefixLen(tok string) int {
	return strings.LastIndex(tok, ".")
}
