package auth

import (
	"context"
	"errors"
	"time"

	"github.com/spec-kit/banking-auth/internal/domain"
	"github.com/spec-kit/banking-auth/internal/repository"
	"github.com/spec-kit/banking-auth/internal/token"
)

// ErrPrincipalDisabled is returned when the token's subject may no longer authenticate.
var ErrPrincipalDisabled = errors.New("principal disabled")

// Principal represents the authenticated caller for the rest of a request.
type Principal struct {
	UserID      int64
	Username    string
	Role        domain.Role
	CustomerID  string
	Algorithm   string
	PostQuantum bool
	ExpiresAt   time.Time
}

// HasRole reports whether the principal holds one of roles.
func (p *Principal) HasRole(roles ...domain.Role) bool {
	for _, role := range roles {
		if p.Role == role {
			return true
		}
	}
	return false
}

// PrincipalLoader turns validated claims into a principal with its authorization attributes.
type PrincipalLoader interface {
	LoadPrincipal(ctx context.Context, claims *token.Claims) (*Principal, error)
}

// UserPrincipalLoader looks the subject up in the user store.
type UserPrincipalLoader struct {
	users repository.UserRepository
}

// NewUserPrincipalLoader builds a loader over users.
func NewUserPrincipalLoader(users repository.UserRepository) *UserPrincipalLoader {
	return &UserPrincipalLoader{users: users}
}

// LoadPrincipal resolves claims.Subject as a username.
func (l *UserPrincipalLoader) LoadPrincipal(ctx context.Context, claims *token.Claims) (*Principal, error) {
	user, err := l.users.GetByUsername(ctx, claims.Subject)
	if err != nil {
		return nil, err
	}
	if !user.Enabled {
		return nil, ErrPrincipalDisabled
	}
	principal := fromClaims(claims, user.Role)
	principal.UserID = user.ID
	principal.CustomerID = user.CustomerID
	return principal, nil
}

// ClaimsPrincipalLoader builds principals from the token alone, for services without access
// to the user store.
type ClaimsPrincipalLoader struct {
	DefaultRole domain.Role
}

// LoadPrincipal never fails.
func (l ClaimsPrincipalLoader) LoadPrincipal(_ context.Context, claims *token.Claims) (*Principal, error) {
	role := l.DefaultRole
	if role == "" {
		role = domain.RoleCustomer
	}
	return fromClaims(claims, role), nil
}

func fromClaims(claims *token.Claims, role domain.Role) *Principal {
	return &Principal{
		UserID:      claims.UserID,
		Username:    claims.Subject,
		Role:        role,
		Algorithm:   claims.Algorithm,
		PostQuantum: claims.PostQuantum,
		ExpiresAt:   claims.ExpiresAt,
	}
}

type principalCtxKey struct{}

// WithPrincipal returns a copy of ctx carrying p.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalCtxKey{}, p)
}

// FromContext returns the principal stored by WithPrincipal.
func FromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalCtxKey{}).(*Principal)
	return p, ok && p != nil
}
