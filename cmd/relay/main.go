package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"private-transfer-relay/config"
	"private-transfer-relay/internal/adapter/chain"
	httpHandler "private-transfer-relay/internal/adapter/http/handler"
	"private-transfer-relay/internal/adapter/notify"
	"private-transfer-relay/internal/adapter/pool"
	pgStorage "private-transfer-relay/internal/adapter/storage/postgres"
	redisStorage "private-transfer-relay/internal/adapter/storage/redis"
	"private-transfer-relay/internal/core/domain"
	"private-transfer-relay/internal/core/ports"
	"private-transfer-relay/internal/metrics"
	"private-transfer-relay/internal/service"
	"private-transfer-relay/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	log.Info().
		Int("port", cfg.Server.Port).
		Msg("Starting private transfer relay")

	ctx := context.Background()

	// Initialize PostgreSQL pool
	dbPool, err := pgStorage.NewPool(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer dbPool.Close()

	// Initialize Redis client
	rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	// Chain RPC client (holds the relayer key)
	chainClient, err := chain.NewClient(ctx, cfg.Chain, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to chain RPC")
	}
	defer chainClient.Close()

	// Privacy pool client
	poolClient := pool.NewClient(cfg.Pool, log)

	// User notifications go through the message broker; without one
	// configured they land in the log.
	var notifier ports.Notifier
	var amqpNotifier *notify.AMQPNotifier
	if cfg.AMQP.URL != "" {
		amqpNotifier, err = notify.NewAMQPNotifier(cfg.AMQP, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to AMQP broker")
		}
		defer amqpNotifier.Close()
		notifier = amqpNotifier
	} else {
		log.Warn().Msg("No AMQP broker configured, notifications go to the log only")
		notifier = notify.NewLogNotifier(log)
	}

	feePolicy := domain.FeePolicy{
		FixedUnits:  cfg.Fees.FixedUnits,
		VariableBps: cfg.Fees.VariableBps,
		SweepBuffer: cfg.Fees.SweepBufferUnits,
		MinAmount:   cfg.Fees.MinAmountUnits,
		MaxAmount:   cfg.Fees.MaxAmountUnits,
	}

	met := metrics.New()
	transferRepo := pgStorage.NewTransferRepo(dbPool)

	// Lifecycle services
	executor := service.NewTransferExecutor(transferRepo, chainClient, poolClient, feePolicy, met, log)
	queue := service.NewQueueWorker(executor, notifier, cfg.Queue.SettleDelay, met, log)
	watcher := service.NewPaymentWatcher(transferRepo, chainClient, queue, notifier,
		cfg.Watcher.Interval, cfg.Watcher.Expiry, met, log)
	transferSvc := service.NewTransferService(transferRepo, chainClient, feePolicy, log)

	if err := watcher.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to start payment watcher")
	}

	// Rate limit store and health checkers
	rateLimitStore := redisStorage.NewRateLimitStore(rdb)
	pgHealth := pgStorage.NewHealthCheck(dbPool)
	redisHealth := redisStorage.NewHealthCheck(rdb)

	// Setup Gin router with all routes
	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		TransferSvc:    transferSvc,
		RateLimitStore: rateLimitStore,
		HealthCheckers: []ports.HealthChecker{pgHealth, redisHealth},
		Metrics:        met,
		Logger:         log,
	})

	// HTTP Server with graceful shutdown
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Stop taking new work first, then let the in-flight transfer finish.
	watcher.Stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	if err := queue.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Queue worker did not drain in time")
	}

	log.Info().Msg("Relay exited")
}
