package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/banking-auth/internal/api/http"
	"github.com/spec-kit/banking-auth/internal/api/http/handlers"
	"github.com/spec-kit/banking-auth/internal/auth"
	"github.com/spec-kit/banking-auth/internal/config"
	"github.com/spec-kit/banking-auth/internal/domain"
	"github.com/spec-kit/banking-auth/internal/keyresolver"
	"github.com/spec-kit/banking-auth/internal/observability"
	"github.com/spec-kit/banking-auth/internal/token"
)

const serviceName = "transaction-service"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, serviceName)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	metrics := observability.NewMetrics()

	var (
		provider token.Provider
		resolver *keyresolver.Resolver
	)
	if cfg.Auth.UsePostQuantum {
		resolver = keyresolver.New(cfg.Issuer, logger)
		provider = token.NewPostQuantumVerifier(resolver)
		logger.Info("verifying post-quantum tokens against issuer", zap.String("url", resolver.URL()))
	} else {
		provider = token.NewHMACProvider(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL())
	}
	tokens := token.NewService(provider, logger, metrics)

	app := fiber.New(fiber.Config{AppName: serviceName, ReadBufferSize: cfg.App.HeaderBufferSize()})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterTransactionRoutes(app, httptransport.TransactionRouteConfig{
		Health:         handlers.NewHealthHandler(serviceName, cfg.App.Version, nil),
		Metrics:        handlers.NewMetricsHandler(metrics),
		Transactions:   handlers.NewTransactionHandler(tokens, serviceName),
		AuthMiddleware: auth.NewAuthMiddleware(tokens, auth.ClaimsPrincipalLoader{DefaultRole: domain.RoleCustomer}, logger),
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger, resolver)

	_ = app.Shutdown()
}

// waitForShutdown blocks until SIGINT or SIGTERM. SIGHUP drops the cached issuer key so
// a restarted issuer's new key is picked up without restarting this service.
func waitForShutdown(logger *zap.Logger, resolver *keyresolver.Resolver) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	for sig := range sigCh {
		if sig == syscall.SIGHUP {
			if resolver != nil {
				resolver.Invalidate()
			}
			continue
		}
		logger.Info("shutting down", zap.String("signal", sig.String()))
		return
	}
}
