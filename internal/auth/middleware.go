package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/banking-auth/internal/token"
)

const (
	principalKey    = "auth_principal"
	trustFailureKey = "auth_trust_failure"
)

const bearerPrefix = "Bearer "

// AuthMiddleware attaches a principal to requests that carry a valid bearer token. It
// never rejects a request; RequireAuthenticated and RequireRole do.
type AuthMiddleware struct {
	tokens *token.Service
	loader PrincipalLoader
	logger *zap.Logger
}

// NewAuthMiddleware constructs middleware.
func NewAuthMiddleware(tokens *token.Service, loader PrincipalLoader, logger *zap.Logger) *AuthMiddleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthMiddleware{tokens: tokens, loader: loader, logger: logger}
}

// Handle authenticates the request when possible and always continues the chain.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	m.authenticate(c)
	return c.Next()
}

func (m *AuthMiddleware) authenticate(c *fiber.Ctx) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("authentication check panicked",
				zap.String("path", c.Path()),
				zap.Any("panic", r))
		}
	}()

	raw := BearerToken(c.Get(fiber.HeaderAuthorization))
	if raw == "" {
		return
	}

	ctx := c.UserContext()
	claims, err := m.tokens.Claims(ctx, raw)
	if err != nil {
		if token.IsFatal(err) {
			c.Locals(trustFailureKey, err)
			m.logger.Warn("token could not be checked",
				zap.String("path", c.Path()),
				zap.String("kind", token.Kind(err)),
				zap.Error(err))
			return
		}
		m.logger.Debug("continuing without principal",
			zap.String("path", c.Path()),
			zap.String("kind", token.Kind(err)))
		return
	}

	principal, err := m.loader.LoadPrincipal(ctx, claims)
	if err != nil {
		m.logger.Warn("principal lookup failed",
			zap.String("path", c.Path()),
			zap.String("subject", claims.Subject),
			zap.Error(err))
		return
	}

	c.Locals(principalKey, principal)
	c.SetUserContext(WithPrincipal(ctx, principal))
}

// BearerToken returns the token after an exact "Bearer " prefix, or "" when the header
// does not carry one.
func BearerToken(header string) string {
	if !strings.HasPrefix(header, bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(header[len(bearerPrefix):])
}

// TrustFailure returns the error that kept the middleware from checking the request's
// token at all, such as an unreachable issuer key.
func TrustFailure(c *fiber.Ctx) error {
	err, _ := c.Locals(trustFailureKey).(error)
	return err
}

// PrincipalFromContext retrieves the authenticated entity.
func PrincipalFromContext(c *fiber.Ctx) (*Principal, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return nil, false
	}
	principal, ok := val.(*Principal)
	return principal, ok
}
