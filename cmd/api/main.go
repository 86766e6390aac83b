package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"

	"github.com/baanhub/baanhub-backend/api/routes"
	"github.com/baanhub/baanhub-backend/internal/payments"
	"github.com/baanhub/baanhub-backend/internal/properties"
	"github.com/baanhub/baanhub-backend/internal/users"
	omisewebhook "github.com/baanhub/baanhub-backend/internal/webhooks/omise"
	"github.com/baanhub/baanhub-backend/pkg/config"
	"github.com/baanhub/baanhub-backend/pkg/db"
	"github.com/baanhub/baanhub-backend/pkg/logger"
	"github.com/baanhub/baanhub-backend/pkg/metrics"
	"github.com/baanhub/baanhub-backend/pkg/migrate"
	"github.com/baanhub/baanhub-backend/pkg/omise"
	"github.com/baanhub/baanhub-backend/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})

	if err := run(cfg, logg); err != nil {
		logg.Error(context.Background(), "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logg *logger.Logger) (err error) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbClient, err := db.New(ctx, cfg.DB, cfg.FeatureFlags, logg)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, dbClient.Close())
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return err
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, redisClient.Close())
	}()

	omiseClient, err := omise.NewClient(cfg.Omise, omise.WithLogger(logg))
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	paymentMetrics := metrics.NewPaymentMetrics(registry)

	paymentsRepo := payments.NewRepository(dbClient.DB())
	paymentsService, err := payments.NewService(payments.ServiceParams{
		Repo:       paymentsRepo,
		Users:      users.NewRepository(dbClient.DB()),
		Properties: properties.NewRepository(dbClient.DB()),
		Provider:   omiseClient,
		Policy:     payments.PolicyFromConfig(cfg.Payments),
		Metrics:    paymentMetrics,
		Logger:     logg,
	})
	if err != nil {
		return err
	}

	webhookService, err := omisewebhook.NewService(omisewebhook.ServiceParams{
		Repo:   paymentsRepo,
		Logger: logg,
	})
	if err != nil {
		return err
	}
	webhookGuard, err := omisewebhook.NewIdempotencyGuard(redisClient, cfg.Payments.WebhookDedupeTTL)
	if err != nil {
		return err
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	logCtx := logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	if !cfg.App.IsProd() {
		logg.Warn(logCtx, "payment status override route enabled")
	}
	logg.Info(logCtx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.RouterParams{
			Config:         cfg,
			Logger:         logg,
			DB:             dbClient,
			Cache:          redisClient,
			Payments:       paymentsService,
			Webhooks:       webhookService,
			WebhookGuard:   webhookGuard,
			WebhookSecrets: omiseClient,
			Metrics:        paymentMetrics,
			Gatherer:       registry,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logg.Info(logCtx, "shutting down api server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
