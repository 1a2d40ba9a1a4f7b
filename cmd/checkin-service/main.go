package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"bailbond/checkin-service/internal/cache"
	"bailbond/checkin-service/internal/config"
	"bailbond/checkin-service/internal/httpapi"
	"bailbond/checkin-service/internal/logging"
	"bailbond/checkin-service/internal/store/postgres"
	"bailbond/checkin-service/internal/telemetry"
	"bailbond/checkin-service/internal/worker"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

const serviceName = "checkin-service"

func main() {
	envErr := godotenv.Load()
	cfg := config.Load()

	logger, err := logging.New(cfg.LogLevel, zap.String("service", serviceName))
	if err != nil {
		panic(err)
	}
	if envErr != nil && !errors.Is(envErr, os.ErrNotExist) {
		logger.Warn("failed to load .env", zap.Error(envErr))
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("checkin-service stopped", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
	_ = logger.Sync()
}

// run serves until a signal or a listen error. Every resource it opens is
// released before it returns.
func run(cfg config.Config, logger *zap.Logger) error {
	shutdownTelemetry := telemetry.Setup(context.Background(), telemetry.Options{
		ServiceName: serviceName,
		Endpoint:    cfg.OTLPEndpoint,
		Insecure:    cfg.OTLPInsecure,
		SampleRatio: cfg.TraceSampleRatio,
		Logger:      logger,
	})
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(ctx); err != nil {
			logger.Warn("telemetry shutdown error", zap.Error(err))
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("db connect: %w", err)
	}
	defer pool.Close()

	listCache, closeCache := newCache(ctx, cfg, logger)
	defer closeCache()

	store := postgres.NewStore(pool)
	handler := httpapi.NewHandler(store, listCache, httpapi.Options{
		Logger:            logger,
		CacheTTL:          cfg.CacheTTL,
		MaxBiometricBytes: cfg.MaxBiometricBytes,
		MaxClockSkew:      cfg.MaxClockSkew,
	})
	limiter := httpapi.NewRateLimiter(httpapi.RateLimitConfig{
		IPPerMinute:     cfg.RateLimitPerMinute,
		IPBurst:         cfg.RateLimitBurst,
		ClientPerMinute: cfg.ClientRateLimitPerMinute,
		ClientBurst:     cfg.ClientRateLimitBurst,
		MaxBodyBytes:    int64(cfg.MaxBiometricBytes)*4/3 + 64<<10 + 1,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      otelhttp.NewHandler(httpapi.LoggingMiddleware(logger, limiter.Middleware(handler.Routes())), serviceName),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	alerts := worker.New(store, worker.NewProvider(worker.ProviderConfig{
		Kind:         cfg.AlertProvider,
		WebhookURL:   cfg.AlertWebhookURL,
		WebhookToken: cfg.AlertWebhookToken,
		Logger:       logger,
	}), worker.Config{
		BatchSize:     cfg.AlertBatchSize,
		MaxAttempts:   cfg.AlertMaxAttempts,
		RetryDelay:    cfg.AlertRetryDelay,
		MaxRetryDelay: cfg.AlertMaxRetryDelay,
		Recipient:     cfg.AlertRecipient,
		Logger:        logger,
	})
	var workers sync.WaitGroup
	workers.Go(func() { worker.Start(ctx, cfg.AlertPollInterval, alerts) })

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	var runErr error
	select {
	case sig := <-stop:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	case runErr = <-serveErr:
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", zap.Error(err))
	}
	workers.Wait()
	return runErr
}

func newCache(ctx context.Context, cfg config.Config, logger *zap.Logger) (cache.Cache, func()) {
	if cfg.CacheBackend != "redis" {
		return cache.NewMemoryCache(cfg.CacheMaxEntries), func() {}
	}
	client, err := cache.NewRedisClient(ctx, cache.RedisConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		logger.Warn("redis unavailable, using in-memory cache", zap.Error(err))
		return cache.NewMemoryCache(cfg.CacheMaxEntries), func() {}
	}
	return cache.NewRedisCache(client), func() { _ = client.Close() }
}
