package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/banking-auth/internal/auth"
	"github.com/spec-kit/banking-auth/internal/domain"
	"github.com/spec-kit/banking-auth/internal/events"
	"github.com/spec-kit/banking-auth/internal/repository"
	"github.com/spec-kit/banking-auth/internal/token"
	apperrors "github.com/spec-kit/banking-auth/pkg/util/errorutil"
)

// RegisterInput carries the fields of a registration request.
type RegisterInput struct {
	Username  string
	Password  string
	Email     string
	FirstName string
	LastName  string
	Phone     string
	Role      domain.Role
}

// AuthService coordinates registration, login and token validation flows.
type AuthService struct {
	users      repository.UserRepository
	tokens     *token.Service
	dispatcher events.Dispatcher
	logger     *zap.Logger
	bcryptCost int
	now        func() time.Time
}

// AuthDependencies encapsulates requirements for the auth service.
type AuthDependencies struct {
	UserRepo   repository.UserRepository
	Tokens     *token.Service
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
	BcryptCost int
}

// NewAuthService builds the service. UserRepo must return password hashes.
func NewAuthService(deps AuthDependencies) *AuthService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		users:      deps.UserRepo,
		tokens:     deps.Tokens,
		dispatcher: deps.Dispatcher,
		logger:     logger,
		bcryptCost: deps.BcryptCost,
		now:        time.Now,
	}
}

// Register creates a customer account and signs its first token. Admin accounts are
// never created through public registration.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*domain.User, *domain.IssuedToken, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(strings.ToLower(in.Email))
	if err := validateRegistration(&in); err != nil {
		return nil, nil, err
	}
	if in.Role != domain.RoleCustomer {
		return nil, nil, apperrors.NewForbidden("only customer accounts can be self-registered")
	}

	if taken, err := s.users.ExistsByUsername(ctx, in.Username); err != nil {
		return nil, nil, err
	} else if taken {
		return nil, nil, apperrors.NewConflict("Username already exists", map[string]any{"field": "username"})
	}
	if taken, err := s.users.ExistsByEmail(ctx, in.Email); err != nil {
		return nil, nil, err
	} else if taken {
		return nil, nil, apperrors.NewConflict("Email already exists", map[string]any{"field": "email"})
	}

	hash, err := auth.HashPassword(in.Password, s.bcryptCost)
	if err != nil {
		return nil, nil, apperrors.NewInternalError(err)
	}

	user := &domain.User{
		Username:     in.Username,
		Email:        in.Email,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Phone:        in.Phone,
		CustomerID:   domain.NewCustomerID(s.now()),
		KYCStatus:    domain.KYCStatusPending,
		Role:         in.Role,
		Enabled:      true,
		PasswordHash: hash,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, nil, err
	}
	s.publish(ctx, events.New(events.EventUserRegistered, user.Username, user.ID, events.UserRegisteredPayload{
		CustomerID: user.CustomerID,
		Role:       string(user.Role),
	}))

	issued, err := s.issue(ctx, user, "register")
	if err != nil {
		return nil, nil, err
	}
	return user, issued, nil
}

// Login authenticates by username and password. Unknown users, wrong passwords and
// disabled accounts are indistinguishable to the caller.
func (s *AuthService) Login(ctx context.Context, username, password string) (*domain.User, *domain.IssuedToken, error) {
	user, err := s.users.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, apperrors.NewUnauthorized("invalid credentials")
		}
		return nil, nil, err
	}
	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		return nil, nil, apperrors.NewUnauthorized("invalid credentials")
	}
	if !user.Enabled {
		s.logger.Info("login refused for disabled user", zap.String("username", user.Username))
		return nil, nil, apperrors.NewUnauthorized("invalid credentials")
	}

	issued, err := s.issue(ctx, user, "login")
	if err != nil {
		return nil, nil, err
	}
	return user, issued, nil
}

// Validate reports whether raw is a currently valid token under the configured scheme.
func (s *AuthService) Validate(ctx context.Context, raw string) (bool, error) {
	ok, err := s.tokens.Verify(ctx, raw)
	if err != nil {
		return false, apperrors.NewServiceUnavailable("token verification unavailable", err)
	}
	return ok, nil
}

// KYCStatus returns the user whose KYC status the principal asked for. Customers may only
// read their own record.
func (s *AuthService) KYCStatus(ctx context.Context, principal *auth.Principal, userID int64) (*domain.User, error) {
	if principal.Role != domain.RoleAdmin && principal.UserID != userID {
		return nil, apperrors.NewForbidden("cannot read another user's KYC status")
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("user", map[string]any{"userId": userID})
		}
		return nil, err
	}
	return user, nil
}

// Algorithm returns the algorithm new tokens are signed with.
func (s *AuthService) Algorithm() string {
	return s.tokens.Algorithm()
}

// PostQuantumEnabled reports whether the post-quantum scheme is authoritative.
func (s *AuthService) PostQuantumEnabled() bool {
	return s.tokens.PostQuantumEnabled()
}

func (s *AuthService) issue(ctx context.Context, user *domain.User, reason string) (*domain.IssuedToken, error) {
	value, exp, err := s.tokens.Issue(user.Username, user.ID)
	if err != nil {
		if token.IsFatal(err) {
			return nil, apperrors.NewServiceUnavailable("token signing unavailable", err)
		}
		return nil, apperrors.NewInternalError(err)
	}
	issued := &domain.IssuedToken{
		Value:       value,
		Algorithm:   s.tokens.Algorithm(),
		PostQuantum: s.tokens.PostQuantumEnabled(),
		ExpiresAt:   exp,
	}
	s.publish(ctx, events.New(events.EventTokenIssued, user.Username, user.ID, events.TokenIssuedPayload{
		Algorithm:   issued.Algorithm,
		PostQuantum: issued.PostQuantum,
		ExpiresAt:   exp,
		Reason:      reason,
	}))
	return issued, nil
}

func (s *AuthService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	_ = s.dispatcher.Publish(ctx, event)
}

func validateRegistration(in *RegisterInput) error {
	details := map[string]any{}
	if len(in.Username) < 3 || len(in.Username) > 50 {
		details["username"] = "must be between 3 and 50 characters"
	}
	if len(in.Password) < 6 {
		details["password"] = "must be at least 6 characters"
	}
	if !strings.Contains(in.Email, "@") {
		details["email"] = "must be a valid email address"
	}
	if strings.TrimSpace(in.FirstName) == "" {
		details["firstName"] = "is required"
	}
	if strings.TrimSpace(in.LastName) == "" {
		details["lastName"] = "is required"
	}
	if in.Role == "" {
		in.Role = domain.RoleCustomer
	}
	if !in.Role.Valid() {
		details["role"] = "must be CUSTOMER or ADMIN"
	}
	if len(details) > 0 {
		return apperrors.NewValidationError("invalid registration request", details)
	}
	return nil
}
