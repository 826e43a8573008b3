package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/banking-auth/internal/domain"
)

const principalKeyPrefix = "auth:principal:"

// cachedUser is the Redis representation of a user's authorization attributes. Password
// hashes are never written to the cache.
type cachedUser struct {
	ID         int64     `json:"id"`
	Username   string    `json:"username"`
	Email      string    `json:"email"`
	FirstName  string    `json:"firstName"`
	LastName   string    `json:"lastName"`
	Phone      string    `json:"phone,omitempty"`
	CustomerID string    `json:"customerId,omitempty"`
	KYCStatus  string    `json:"kycStatus"`
	Role       string    `json:"role"`
	Enabled    bool      `json:"enabled"`
	CreatedAt  time.Time `json:"createdAt"`
}

func fromUser(u *domain.User) cachedUser {
	return cachedUser{
		ID:         u.ID,
		Username:   u.Username,
		Email:      u.Email,
		FirstName:  u.FirstName,
		LastName:   u.LastName,
		Phone:      u.Phone,
		CustomerID: u.CustomerID,
		KYCStatus:  u.KYCStatus,
		Role:       string(u.Role),
		Enabled:    u.Enabled,
		CreatedAt:  u.CreatedAt,
	}
}

func (c cachedUser) toUser() *domain.User {
	return &domain.User{
		ID:         c.ID,
		Username:   c.Username,
		Email:      c.Email,
		FirstName:  c.FirstName,
		LastName:   c.LastName,
		Phone:      c.Phone,
		CustomerID: c.CustomerID,
		KYCStatus:  c.KYCStatus,
		Role:       domain.Role(c.Role),
		Enabled:    c.Enabled,
		CreatedAt:  c.CreatedAt,
	}
}

// CachedUserRepository serves GetByUsername from Redis, falling back to the wrapped
// repository on a miss or a cache failure. Users it returns carry no PasswordHash, so
// credential checks must go to the uncached repository.
type CachedUserRepository struct {
	UserRepository
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewCachedUserRepository wraps inner. A nil client or a non-positive ttl disables caching.
func NewCachedUserRepository(inner UserRepository, client *redis.Client, ttl time.Duration, logger *zap.Logger) *CachedUserRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedUserRepository{UserRepository: inner, client: client, ttl: ttl, logger: logger}
}

func (r *CachedUserRepository) enabled() bool {
	return r.client != nil && r.ttl > 0
}

// GetByUsername returns the cached attributes for username when present.
func (r *CachedUserRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	if !r.enabled() {
		return r.stripped(r.UserRepository.GetByUsername(ctx, username))
	}

	key := principalKeyPrefix + username
	raw, err := r.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var cached cachedUser
		if err := json.Unmarshal(raw, &cached); err == nil {
			return cached.toUser(), nil
		}
		r.logger.Warn("discarding unreadable principal cache entry", zap.String("username", username))
	case !errors.Is(err, redis.Nil):
		r.logger.Warn("principal cache read failed", zap.String("username", username), zap.Error(err))
	}

	user, err := r.UserRepository.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(fromUser(user))
	if err == nil {
		err = r.client.Set(ctx, key, payload, r.ttl).Err()
	}
	if err != nil {
		r.logger.Warn("principal cache write failed", zap.String("username", username), zap.Error(err))
	}
	return r.stripped(user, nil)
}

func (r *CachedUserRepository) stripped(user *domain.User, err error) (*domain.User, error) {
	if err != nil {
		return nil, err
	}
	clone := *user
	clone.PasswordHash = ""
	return &clone, nil
}
