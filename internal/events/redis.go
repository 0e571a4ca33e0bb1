package events

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DefaultRedisChannel is the pub/sub channel ledger events go to.
const DefaultRedisChannel = "ledger_events"

type RedisPublisher struct {
	rdb     *redis.Client
	channel string
	logger  *zap.Logger
}

func NewRedisPublisher(rdb *redis.Client, channel string, logger *zap.Logger) *RedisPublisher {
	if channel == "" {
		channel = DefaultRedisChannel
	}
	return &RedisPublisher{rdb: rdb, channel: channel, logger: logger}
}

func (p *RedisPublisher) Publish(ctx context.Context, event *LedgerEvent) error {
	payload, err := event.encode()
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := p.rdb.Publish(ctx, p.channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	p.logger.Debug("ledger event published",
		zap.String("event_type", string(event.EventType)),
		zap.Int64("vendor_id", event.VendorID),
		zap.String("reference", event.Reference))
	return nil
}

func (p *RedisPublisher) Close() error {
	return p.rdb.Close()
}
