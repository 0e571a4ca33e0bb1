package usecase

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"

	"scan2pay-service/internal/domain"
)

const (
	baseRetryDelay = 10 * time.Millisecond
	maxRetryDelay  = 500 * time.Millisecond
)

// retryOnConflict runs fn until it stops failing with ErrConcurrentConflict,
// backing off exponentially with jitter. Conflicts are never returned: once
// attempts run out the caller gets ErrStorageUnavailable.
func retryOnConflict(ctx context.Context, maxAttempts int, logger *zap.Logger, op string, fn func() error) error {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	delay := baseRetryDelay

	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err = fn()
		if err == nil || !errors.Is(err, domain.ErrConcurrentConflict) {
			return err
		}

		conflictRetries.WithLabelValues(op).Inc()
		logger.Debug("concurrent update conflict, retrying",
			zap.String("operation", op),
			zap.Int("attempt", attempt),
			zap.Error(err))

		if attempt == maxAttempts {
			break
		}

		wait := delay + time.Duration(rand.Int64N(int64(delay)/2+1))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		if delay *= 2; delay > maxRetryDelay {
			delay = maxRetryDelay
		}
	}

	logger.Error("giving up after repeated conflicts",
		zap.String("operation", op),
		zap.Int("attempts", maxAttempts),
		zap.Error(err))
	return domain.Wrap(domain.ErrStorageUnavailable,
		fmt.Errorf("%s: %d attempts conflicted, last: %v", op, maxAttempts, err))
}
