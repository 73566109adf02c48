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

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/Jung028/donation-platform/internal/analytics"
	"github.com/Jung028/donation-platform/internal/config"
	"github.com/Jung028/donation-platform/internal/logging"
)

// consumer delivers broker messages to the analytics service until ctx ends.
type consumer interface {
	Start(ctx context.Context) error
	Close() error
}

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	logger := logging.New(cfg.AppEnv, "analytics-worker")

	if err := run(cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("analytics worker failed")
	}
	logger.Info().Msg("analytics worker stopped")
}

func run(cfg *config.Config, logger zerolog.Logger) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize ClickHouse client
	clickhouseClient, err := analytics.NewClickHouseClient(ctx, cfg.ClickHouse)
	if err != nil {
		return fmt.Errorf("failed to initialize ClickHouse client: %w", err)
	}
	defer clickhouseClient.Close()

	if err := clickhouseClient.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("failed to create analytics schema: %w", err)
	}
	logger.Info().Str("host", cfg.ClickHouse.Host).Str("database", cfg.ClickHouse.Database).Msg("connected to ClickHouse")

	var cache analytics.SummaryCache
	if cfg.Redis.URL != "" {
		redisClient, err := analytics.ConnectRedis(ctx, cfg.Redis.URL)
		if err != nil {
			logger.Warn().Err(err).Msg("summary cache disabled")
		} else {
			defer redisClient.Close()
			cache = analytics.NewRedisSummaryCache(redisClient)
			logger.Info().Dur("ttl", cfg.Redis.SummaryTTL).Msg("summary cache enabled")
		}
	}

	service := analytics.NewService(analytics.NewRepository(clickhouseClient), cache, cfg.Redis.SummaryTTL, logger)

	eventConsumer, err := openConsumer(cfg, service, logger)
	if err != nil {
		return fmt.Errorf("failed to create %s consumer: %w", cfg.Events.Broker, err)
	}
	defer eventConsumer.Close()

	httpServer := &http.Server{
		Addr:              ":" + cfg.Analytics.HTTPPort,
		Handler:           analytics.NewRouter(service, clickhouseClient, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		logger.Info().Str("port", cfg.Analytics.HTTPPort).Msg("analytics http server starting")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("analytics http server failed")
			cancel()
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		logger.Info().Str("broker", cfg.Events.Broker).Msg("event consumer starting")
		if err := eventConsumer.Start(ctx); err != nil {
			logger.Error().Err(err).Msg("event consumer stopped")
			cancel()
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info().Str("signal", sig.String()).Msg("initiating shutdown")
	case <-ctx.Done():
		logger.Info().Msg("context cancelled, initiating shutdown")
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown http server")
	}

	wg.Wait()
	return nil
}

func openConsumer(cfg *config.Config, handler analytics.MessageHandler, logger zerolog.Logger) (consumer, error) {
	switch cfg.Events.Broker {
	case config.BrokerKafka:
		return analytics.NewKafkaConsumer(cfg.Kafka, handler, logger)
	default:
		return analytics.NewRabbitMQConsumer(cfg.RabbitMQ, handler, logger)
	}
}
