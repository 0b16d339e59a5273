package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"mycontrol/internal/aggregate"
	"mycontrol/internal/auth"
	"mycontrol/internal/backend"
	"mycontrol/internal/cli"
	apphttp "mycontrol/internal/http"
	"mycontrol/internal/log"
	"mycontrol/internal/middleware/ratelimit"
	"mycontrol/internal/services"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg, "mycontrol")
	logger.Info("Starting mycontrol", "env", cfg.AppEnv, "backend", cfg.DataBackend)

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}
	res, err := backend.NewFactory(logger).CreateBackend(context.Background(), backendCfg)
	if err != nil {
		logger.Error("Failed to initialize backend", log.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}

	engine := aggregate.NewEngine(cfg.Location(), cfg.WorkCategory)
	transactions := services.NewTransactionService(res.Store, res.Publisher)
	summaries := services.NewSummaryService(res.Store, engine)

	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTTTL)
	authSvc := auth.NewService(res.Store, tokens)
	if cfg.DefaultUserEmail != "" {
		seedCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		created, err := authSvc.SeedDefaultUser(seedCtx, cfg.DefaultUserEmail, cfg.DefaultUserPassword, cfg.DefaultUserName)
		cancel()
		if err != nil {
			logger.Error("Failed to seed default user", log.FieldError, err)
			os.Exit(1)
		}
		if created {
			logger.Info("Default user created", "email", cfg.DefaultUserEmail)
		}
	}

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Transactions: transactions,
		Summaries:    summaries,
		Auth:         authSvc,
		Tokens:       tokens,
		Ready:        res.Ready,
		Logger:       logger,
	}, apphttp.Options{
		AllowedOrigins:  cfg.AllowedOrigins,
		AllowAllOrigins: !cfg.IsProduction(),
		RateLimit:       ratelimit.Config{RequestsPerMinute: cfg.RateLimit},
	})

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		if err := res.Close(); err != nil {
			logger.Error("Backend cleanup error", log.FieldError, err)
		}
	})

	logger.Info("Starting HTTP server", "port", cfg.Port)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
