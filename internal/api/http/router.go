package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/banking-auth/internal/api/http/handlers"
	"github.com/spec-kit/banking-auth/internal/auth"
)

// AuthRouteConfig bundles dependencies for the issuer's routes.
type AuthRouteConfig struct {
	Health         *handlers.HealthHandler
	Metrics        *handlers.MetricsHandler
	Auth           *handlers.AuthHandler
	Crypto         *handlers.CryptoHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterAuthRoutes wires the issuer's HTTP routes.
func RegisterAuthRoutes(app *fiber.App, cfg AuthRouteConfig) {
	registerOps(app, cfg.Health, cfg.Metrics)

	api := app.Group("/api", cfg.AuthMiddleware.Handle)

	authGroup := api.Group("/auth")
	authGroup.Post("/register", cfg.Auth.Register)
	authGroup.Post("/login", cfg.Auth.Login)
	authGroup.Get("/validate", cfg.Auth.Validate)
	authGroup.Get("/health", cfg.Auth.Health)
	authGroup.Get("/user/:userId/kyc-status", auth.RequireAuthenticated(), cfg.Auth.KYCStatus)

	crypto := api.Group("/crypto")
	crypto.Get("/server-dsa-public-key", cfg.Crypto.SignaturePublicKey)
	crypto.Get("/server-kem-public-key", cfg.Crypto.KEMPublicKey)
	crypto.Get("/health", cfg.Crypto.Health)
}

// TransactionRouteConfig bundles dependencies for a verifying service's routes.
type TransactionRouteConfig struct {
	Health         *handlers.HealthHandler
	Metrics        *handlers.MetricsHandler
	Transactions   *handlers.TransactionHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterTransactionRoutes wires a verifying service's HTTP routes.
func RegisterTransactionRoutes(app *fiber.App, cfg TransactionRouteConfig) {
	registerOps(app, cfg.Health, cfg.Metrics)

	tx := app.Group("/api/transactions", cfg.AuthMiddleware.Handle)
	tx.Get("/health", cfg.Transactions.Health)
	tx.Get("/session", auth.RequireAuthenticated(), cfg.Transactions.Session)
}

func registerOps(app *fiber.App, health *handlers.HealthHandler, metrics *handlers.MetricsHandler) {
	app.Get("/health/live", health.Live)
	app.Get("/health/ready", health.Ready)
	if metrics != nil {
		app.Get("/metrics", metrics.Get)
	}
}
