package main

import (
	"context"
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
	"github.com/spec-kit/banking-auth/internal/events"
	"github.com/spec-kit/banking-auth/internal/keystore"
	"github.com/spec-kit/banking-auth/internal/observability"
	"github.com/spec-kit/banking-auth/internal/persistence"
	"github.com/spec-kit/banking-auth/internal/repository"
	"github.com/spec-kit/banking-auth/internal/service"
	"github.com/spec-kit/banking-auth/internal/token"
	"github.com/spec-kit/banking-auth/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App.Name)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	// the key store must exist before any request is served
	keys, err := keystore.New(nil)
	if err != nil {
		logger.Fatal("failed to generate server key pairs", zap.Error(err))
	}
	logger.Info("server key pairs generated",
		zap.String("signature_algorithm", keystore.SignatureAlgorithm),
		zap.String("kem_algorithm", keystore.KEMAlgorithm))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()
	if pg.PoolHandle() == nil {
		logger.Fatal("the issuer stores users in postgres; set POSTGRES_DSN")
	}

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), persistence.DefaultMigrationsDir, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(ctx, cfg.Redis, logger)
	defer redis.Close()

	metrics := observability.NewMetrics()
	tokens, err := token.NewServiceFromConfig(cfg.Auth, keys, logger, metrics)
	if err != nil {
		logger.Fatal("failed to select token provider", zap.Error(err))
	}

	dispatcher := events.NewInMemoryDispatcher(logger)
	worker.StartAuditWorker(service.NewAuditService(dispatcher, logger))

	userRepo := repository.NewUserRepository(pg.PoolHandle())
	principals := repository.NewCachedUserRepository(userRepo, redis.Client, cfg.Cache.PrincipalTTL(), logger)

	authService := service.NewAuthService(service.AuthDependencies{
		UserRepo:   userRepo,
		Tokens:     tokens,
		Dispatcher: dispatcher,
		Logger:     logger,
		BcryptCost: cfg.Auth.BcryptCost,
	})
	authMiddleware := auth.NewAuthMiddleware(tokens, auth.NewUserPrincipalLoader(principals), logger)

	app := fiber.New(fiber.Config{AppName: cfg.App.Name, ReadBufferSize: cfg.App.HeaderBufferSize()})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterAuthRoutes(app, httptransport.AuthRouteConfig{
		Health: handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, map[string]handlers.Pinger{
			"postgres": pg,
			"redis":    redis,
		}),
		Metrics:        handlers.NewMetricsHandler(metrics),
		Auth:           handlers.NewAuthHandler(authService, cfg.App.Name),
		Crypto:         handlers.NewCryptoHandler(keys),
		AuthMiddleware: authMiddleware,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
