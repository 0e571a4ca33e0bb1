package config

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// ConnectDB opens the Postgres pool, retrying with exponential backoff while
// the database comes up.
func ConnectDB(ctx context.Context, cfg DatabaseConfig, logger *zap.Logger) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}
	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	poolCfg.MaxConnIdleTime = cfg.MaxConnIdleTime

	retries := cfg.ConnectRetries
	if retries < 1 {
		retries = 1
	}
	delay := 2 * time.Second

	for i := 1; i <= retries; i++ {
		logger.Info("connecting to database",
			zap.Int("attempt", i),
			zap.Int("max_attempts", retries),
			zap.String("database", cfg.DBName))

		pool, connErr := connectOnce(ctx, poolCfg)
		if connErr == nil {
			return pool, nil
		}
		err = connErr
		logger.Warn("database connection failed", zap.Error(err))

		if i < retries {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}
	}

	return nil, fmt.Errorf("failed to connect to database after %d attempts: %w", retries, err)
}

func connectOnce(ctx context.Context, poolCfg *pgxpool.Config) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping failed: %w", err)
	}
	return pool, nil
}
