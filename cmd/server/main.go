// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"scan2pay-service/config"
	"scan2pay-service/internal/events"
	"scan2pay-service/internal/handler"
	"scan2pay-service/internal/provider/mpesa"
	"scan2pay-service/internal/repository"
	"scan2pay-service/internal/repository/memory"
	"scan2pay-service/internal/repository/postgres"
	"scan2pay-service/internal/router"
	"scan2pay-service/internal/usecase"
	"scan2pay-service/internal/worker"
	"scan2pay-service/pkg/security"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	logger, err := newLogger(os.Getenv("ENVIRONMENT"))
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer func() { _ = logger.Sync() }()

	if err := run(logger); err != nil {
		logger.Fatal("scan2pay service exited", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger(env string) (*zap.Logger, error) {
	if env == "" || env == config.EnvDevelopment {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func run(logger *zap.Logger) error {
	logger.Info("starting scan2pay service")

	cfg, err := config.Load(logger)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	logger.Info("configuration loaded",
		zap.String("environment", cfg.Server.Env),
		zap.String("port", cfg.Server.Port),
		zap.String("database_driver", cfg.Database.Driver),
		zap.String("events_driver", cfg.Events.Driver),
		zap.Duration("intent_ttl", cfg.Intent.TTL))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	publisher, err := newPublisher(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			logger.Warn("failed to close event publisher", zap.Error(err))
		}
	}()

	gateway := mpesa.NewClient(cfg.Mpesa, logger)
	tokens := security.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)

	// Initialize usecases
	paymentUC := usecase.NewPaymentUsecase(store, gateway, publisher, usecase.Options{
		CallbackURL:        cfg.Mpesa.CallbackURL,
		IntentTTL:          cfg.Intent.TTL,
		GatewayTimeout:     cfg.Mpesa.Timeout,
		MaxConflictRetries: cfg.Intent.MaxConflictRetries,
		SweepBatchSize:     cfg.Intent.SweepBatchSize,
	}, logger)
	callbackUC := usecase.NewCallbackUsecase(paymentUC, store, logger)
	vendorUC := usecase.NewVendorUsecase(store, tokens, logger)

	// Initialize handlers
	handlers := router.Handlers{
		Payments: handler.NewPaymentHandler(paymentUC, logger),
		Callback: handler.NewCallbackHandler(callbackUC, logger),
		Vendors:  handler.NewVendorHandler(vendorUC, logger),
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router.SetupRoutes(handlers, tokens, store, cfg.Server, logger),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	sweeper := worker.NewIntentSweeper(paymentUC, cfg.Intent.SweepInterval, logger)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("server starting", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		sweeper.Start(gctx)
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		sweeper.Stop()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("server forced to shutdown", zap.Error(err))
			return err
		}
		return nil
	})

	logger.Info("scan2pay service started successfully",
		zap.String("port", cfg.Server.Port),
		zap.String("environment", cfg.Server.Env))

	return g.Wait()
}

func openStore(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (repository.Store, func(), error) {
	if cfg.Driver == "memory" {
		logger.Warn("using in-memory ledger store, data will not survive a restart")
		return memory.NewStore(), func() {}, nil
	}

	pool, err := config.ConnectDB(ctx, cfg, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to database: %w", err)
	}
	if cfg.AutoMigrate {
		if err := postgres.Migrate(ctx, pool, logger); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("migrate database: %w", err)
		}
	}

	logger.Info("connected to database", zap.String("database", cfg.DBName))
	return postgres.NewStore(pool), pool.Close, nil
}

func newPublisher(ctx context.Context, cfg *config.Config, logger *zap.Logger) (events.Publisher, error) {
	switch cfg.Events.Driver {
	case "redis":
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			_ = rdb.Close()
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		logger.Info("publishing ledger events to redis",
			zap.String("addr", cfg.Redis.Addr()),
			zap.String("channel", cfg.Events.Channel))
		return events.NewRedisPublisher(rdb, cfg.Events.Channel, logger), nil

	case "kafka":
		logger.Info("publishing ledger events to kafka",
			zap.Strings("brokers", cfg.Kafka.Brokers),
			zap.String("topic", cfg.Kafka.Topic))
		return events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, logger), nil
	}
	return events.NopPublisher{}, nil
}
