package auth

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/banking-auth/internal/domain"
	apperrors "github.com/spec-kit/banking-auth/pkg/util/errorutil"
)

// RequireAuthenticated rejects requests the middleware could not attach a principal to.
// A token that could not be checked at all yields 503 rather than 401.
func RequireAuthenticated() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, err := requirePrincipal(c); err != nil {
			return err
		}
		return c.Next()
	}
}

// RequireRole ensures the principal has one of the allowed roles.
func RequireRole(allowed ...domain.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, err := requirePrincipal(c)
		if err != nil {
			return err
		}
		if len(allowed) > 0 && !principal.HasRole(allowed...) {
			return fiber.NewError(http.StatusForbidden, "insufficient role")
		}
		return c.Next()
	}
}

func requirePrincipal(c *fiber.Ctx) (*Principal, error) {
	if principal, ok := PrincipalFromContext(c); ok {
		return principal, nil
	}
	if err := TrustFailure(c); err != nil {
		return nil, apperrors.NewServiceUnavailable("token verification unavailable", err)
	}
	return nil, fiber.NewError(http.StatusUnauthorized, http.StatusText(http.StatusUnauthorized))
}
