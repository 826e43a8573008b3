package repository

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/banking-auth/internal/domain"
)

type memoryUsers struct {
	mu      sync.Mutex
	byName  map[string]*domain.User
	lookups int
}

func newMemoryUsers(users ...*domain.User) *memoryUsers {
	m := &memoryUsers{byName: map[string]*domain.User{}}
	for _, u := range users {
		m.byName[u.Username] = u
	}
	return m
}

func (m *memoryUsers) Create(_ context.Context, user *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	user.ID = int64(len(m.byName) + 1)
	m.byName[user.Username] = user
	return nil
}

func (m *memoryUsers) GetByID(_ context.Context, id int64) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byName {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (m *memoryUsers) GetByUsername(_ context.Context, username string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lookups++
	u, ok := m.byName[username]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return u, nil
}

func (m *memoryUsers) ExistsByUsername(_ context.Context, username string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.byName[username]
	return ok, nil
}

func (m *memoryUsers) ExistsByEmail(_ context.Context, email string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byName {
		if u.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func alice() *domain.User {
	return &domain.User{
		ID:           42,
		Username:     "alice",
		Email:        "alice@example.com",
		FirstName:    "Alice",
		LastName:     "Smith",
		CustomerID:   "QB2026-0042",
		KYCStatus:    domain.KYCStatusPending,
		Role:         domain.RoleCustomer,
		Enabled:      true,
		PasswordHash: "$2a$12$secret",
	}
}

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestCachedUserRepositoryServesFromRedis(t *testing.T) {
	mr, client := newRedis(t)
	inner := newMemoryUsers(alice())
	repo := NewCachedUserRepository(inner, client, time.Minute, nil)

	first, err := repo.GetByUsername(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(42), first.ID)
	assert.Empty(t, first.PasswordHash)
	assert.True(t, mr.Exists(principalKeyPrefix+"alice"))
	assert.NotContains(t, mustGet(t, mr, principalKeyPrefix+"alice"), "secret")

	second, err := repo.GetByUsername(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, 1, inner.lookups)
	assert.Equal(t, domain.RoleCustomer, second.Role)
	assert.Equal(t, "QB2026-0042", second.CustomerID)
}

func TestCachedUserRepositoryExpires(t *testing.T) {
	mr, client := newRedis(t)
	inner := newMemoryUsers(alice())
	repo := NewCachedUserRepository(inner, client, time.Minute, nil)

	_, err := repo.GetByUsername(context.Background(), "alice")
	require.NoError(t, err)

	mr.FastForward(61 * time.Second)
	_, err = repo.GetByUsername(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, 2, inner.lookups)
}

func TestCachedUserRepositoryDoesNotCacheMisses(t *testing.T) {
	mr, client := newRedis(t)
	repo := NewCachedUserRepository(newMemoryUsers(), client, time.Minute, nil)

	_, err := repo.GetByUsername(context.Background(), "ghost")
	assert.True(t, errors.Is(err, pgx.ErrNoRows))
	assert.False(t, mr.Exists(principalKeyPrefix+"ghost"))
}

func TestCachedUserRepositoryFallsBackWhenRedisDown(t *testing.T) {
	mr, client := newRedis(t)
	inner := newMemoryUsers(alice())
	repo := NewCachedUserRepository(inner, client, time.Minute, nil)
	mr.Close()

	user, err := repo.GetByUsername(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)
	assert.Empty(t, user.PasswordHash)
	assert.Equal(t, 1, inner.lookups)
}

func TestCachedUserRepositoryDisabled(t *testing.T) {
	inner := newMemoryUsers(alice())
	repo := NewCachedUserRepository(inner, nil, time.Minute, nil)

	for i := 0; i < 2; i++ {
		user, err := repo.GetByUsername(context.Background(), "alice")
		require.NoError(t, err)
		assert.Empty(t, user.PasswordHash)
	}
	assert.Equal(t, 2, inner.lookups)
	assert.Equal(t, "$2a$12$secret", inner.byName["alice"].PasswordHash)
}

func TestCachedUserRepositoryPassesThroughWrites(t *testing.T) {
	_, client := newRedis(t)
	inner := newMemoryUsers()
	repo := NewCachedUserRepository(inner, client, time.Minute, nil)

	require.NoError(t, repo.Create(context.Background(), &domain.User{Username: "bob", Email: "bob@example.com"}))
	exists, err := repo.ExistsByEmail(context.Background(), "bob@example.com")
	require.NoError(t, err)
	assert.True(t, exists)
}

func mustGet(t *testing.T, mr *miniredis.Miniredis, key string) string {
	t.Helper()
	v, err := mr.Get(key)
	require.NoError(t, err)
	return v
}
