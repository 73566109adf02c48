package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/Jung028/donation-platform/internal/clients"
	"github.com/Jung028/donation-platform/internal/config"
	"github.com/Jung028/donation-platform/internal/db"
	"github.com/Jung028/donation-platform/internal/db/memory"
	"github.com/Jung028/donation-platform/internal/domain"
	"github.com/Jung028/donation-platform/internal/events"
	"github.com/Jung028/donation-platform/internal/handlers"
	"github.com/Jung028/donation-platform/internal/logging"
	"github.com/Jung028/donation-platform/internal/server"
)

const healthCheckInterval = 10 * time.Second

// store is a DonationStore that can report whether its backend is reachable.
type store interface {
	domain.DonationStore
	Ping(ctx context.Context) error
}

// publisher is an EventPublisher that holds a broker connection.
type publisher interface {
	domain.EventPublisher
	Close() error
}

func main() {
	// .env is optional
	_ = godotenv.Load()

	cfg := config.Load()
	logger := logging.New(cfg.AppEnv, "donation-service")

	if err := run(cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("donation service failed")
	}
	logger.Info().Msg("donation service stopped")
}

// run serves until a signal or a server failure. Resources are released in
// reverse order of acquisition before it returns.
func run(cfg *config.Config, logger zerolog.Logger) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx := context.Background()

	donationStore, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to open donation store: %w", err)
	}
	defer closeStore()

	accountClient := clients.NewAccountClient(cfg.Services.AccountURL, cfg.Services.AccountTimeout)
	transactionClient := clients.NewTransactionClient(cfg.Services.TransactionURL, cfg.Services.TransactionTimeout)

	opts := []domain.Option{
		domain.WithTimeouts(domain.Timeouts{
			FundsCheck:  cfg.Services.AccountTimeout,
			Transaction: cfg.Services.TransactionTimeout,
			Store:       cfg.Store.Timeout,
		}),
	}
	if cfg.Events.Enabled {
		eventPublisher, err := openPublisher(cfg)
		if err != nil {
			// Events are best-effort; donations keep flowing without them
			logger.Warn().Err(err).Str("broker", cfg.Events.Broker).Msg("event publishing disabled")
		} else {
			defer eventPublisher.Close()
			opts = append(opts, domain.WithEventPublisher(eventPublisher))
			logger.Info().Str("broker", cfg.Events.Broker).Msg("event publisher connected")
		}
	}

	donationService := domain.NewDonationService(donationStore, accountClient, transactionClient, logger, opts...)

	router := chi.NewRouter()
	router.Use(server.RequestID, server.Logger(logger))
	router.Get("/healthz", healthHandler(donationStore, cfg.Store.Timeout))

	httpServer := &http.Server{
		Addr: ":" + cfg.HTTPPort,
		Handler: server.HandlerWithOptions(handlers.NewHandler(donationService, logger), server.ChiServerOptions{
			BaseRouter:       router,
			ErrorHandlerFunc: handlers.ParamErrorHandler,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	grpcServer := grpc.NewServer()
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	reflection.Register(grpcServer)

	lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		return fmt.Errorf("failed to listen on port %s: %w", cfg.GRPCPort, err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go watchStoreHealth(runCtx, donationStore, healthServer, cfg.Store.Timeout, logger)

	go func() {
		logger.Info().Str("port", cfg.GRPCPort).Msg("gRPC health server starting")
		if err := grpcServer.Serve(lis); err != nil {
			logger.Error().Err(err).Msg("gRPC server failed")
			cancel()
		}
	}()

	go func() {
		logger.Info().
			Str("port", cfg.HTTPPort).
			Str("account_service", cfg.Services.AccountURL).
			Str("transaction_service", cfg.Services.TransactionURL).
			Msg("donation service starting")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("http server failed")
			cancel()
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
	case <-runCtx.Done():
		logger.Info().Msg("server error, shutting down")
	}

	healthServer.Shutdown()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	// In-flight donations finish their terminal writes before the store closes
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown http server")
	}
	grpcServer.GracefulStop()

	// Events queued by those donations go out before the publisher closes
	if err := donationService.Drain(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("gave up waiting for event publishes")
	}
	return nil
}

// openStore builds the configured store and returns a function releasing it.
func openStore(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (store, func(), error) {
	if cfg.Store.Driver == config.StoreDriverMemory {
		logger.Warn().Msg("using in-memory donation store; data is lost on restart")
		return memory.NewStore(), func() {}, nil
	}

	pool, err := db.NewPool(ctx, cfg.Store)
	if err != nil {
		return nil, nil, err
	}
	logger.Info().Msg("database connection pool initialized")

	if cfg.AutoMigrate {
		applied, err := db.NewMigrator(pool.Pool, logger).Up(ctx)
		if err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("failed to apply migrations: %w", err)
		}
		logger.Info().Strs("applied", applied).Msg("database migrations up to date")
	}

	return db.NewDonationRepository(pool.Pool), pool.Close, nil
}

func openPublisher(cfg *config.Config) (publisher, error) {
	switch cfg.Events.Broker {
	case config.BrokerKafka:
		return events.NewKafkaPublisher(cfg.Kafka.Brokers, map[string]string{
			events.EventTypeDonationCompleted: cfg.Kafka.CompletedTopic,
			events.EventTypeDonationFailed:    cfg.Kafka.FailedTopic,
		})
	default:
		return events.NewRabbitMQPublisher(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange)
	}
}

func healthHandler(s store, timeout time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		w.Header().Set("Content-Type", "application/json")
		if err := s.Ping(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}
}

// watchStoreHealth mirrors store reachability into the gRPC health service.
func watchStoreHealth(ctx context.Context, s store, healthServer *health.Server, timeout time.Duration, logger zerolog.Logger) {
	ticker := time.NewTicker(healthCheckInterval)
	defer ticker.Stop()

	last := healthpb.HealthCheckResponse_UNKNOWN
	for {
		pingCtx, cancel := context.WithTimeout(ctx, timeout)
		err := s.Ping(pingCtx)
		cancel()

		status := healthpb.HealthCheckResponse_SERVING
		if err != nil {
			status = healthpb.HealthCheckResponse_NOT_SERVING
		}
		if status != last {
			if err != nil {
				logger.Warn().Err(err).Msg("donation store unreachable")
			}
			healthServer.SetServingStatus("", status)
			last = status
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
