package http

import (
	"context"
	"runtime/debug"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/banking-auth/internal/auth"
	"github.com/spec-kit/banking-auth/internal/observability"
	"github.com/spec-kit/banking-auth/internal/token"
	apperrors "github.com/spec-kit/banking-auth/pkg/util/errorutil"
)

const trustRetryAfterSeconds = 5

// RegisterMiddlewares attaches global middlewares such as error handling and logging.
func RegisterMiddlewares(app *fiber.App, logger *zap.Logger, metrics *observability.Metrics, timeout time.Duration) {
	if timeout > 0 {
		app.Use(requestTimeoutMiddleware(timeout))
	}
	app.Use(errorHandlingMiddleware(logger, metrics))
	app.Use(observability.RequestLogger(logger, metrics))
}

func requestTimeoutMiddleware(timeout time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), timeout)
		defer cancel()
		c.SetUserContext(ctx)
		return c.Next()
	}
}

func errorHandlingMiddleware(logger *zap.Logger, metrics *observability.Metrics) fiber.Handler {
	return func(c *fiber.Ctx) (err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("panic recovered", zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
				err = apperrors.NewInternalError(nil)
			}
			if err != nil {
				domainErr := apperrors.ToDomainError(err)
				metrics.RecordError(c.Path(), c.Method(), domainErr.Code)
				body := fiber.Map{
					"code":    domainErr.Code,
					"message": domainErr.Message,
				}
				details := tokenDetails(c, domainErr)
				if len(details) > 0 {
					body["details"] = details
				}
				if domainErr.HTTPStatus >= 500 {
					logger.Error("request failed", zap.String("path", c.Path()), zap.Error(domainErr))
				}
				err = c.Status(domainErr.HTTPStatus).JSON(fiber.Map{"error": body})
			}
		}()
		return c.Next()
	}
}

// tokenDetails adds bearer challenge headers and, when verification could not run, the
// token failure kind.
func tokenDetails(c *fiber.Ctx, domainErr *apperrors.DomainError) map[string]any {
	details := domainErr.Details
	switch {
	case domainErr.HTTPStatus == fiber.StatusUnauthorized:
		challenge := "Bearer"
		if auth.BearerToken(c.Get(fiber.HeaderAuthorization)) != "" {
			challenge = `Bearer error="invalid_token"`
		}
		c.Set(fiber.HeaderWWWAuthenticate, challenge)
	case token.IsFatal(domainErr):
		c.Set(fiber.HeaderRetryAfter, strconv.Itoa(trustRetryAfterSeconds))
		merged := make(map[string]any, len(details)+1)
		for k, v := range details {
			merged[k] = v
		}
		merged["reason"] = token.Kind(domainErr)
		details = merged
	}
	return details
}
