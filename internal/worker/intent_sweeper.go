// internal/worker/intent_sweeper.go
package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// IntentExpirer settles pending intents that outlived their TTL.
type IntentExpirer interface {
	ExpireIntents(ctx context.Context) (int, error)
}

// IntentSweeper periodically fails or settles payment intents whose callback
// never arrived.
type IntentSweeper struct {
	expirer  IntentExpirer
	interval time.Duration
	logger   *zap.Logger
	stopChan chan struct{}
	stopOnce sync.Once
}

func NewIntentSweeper(expirer IntentExpirer, interval time.Duration, logger *zap.Logger) *IntentSweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &IntentSweeper{
		expirer:  expirer,
		interval: interval,
		logger:   logger,
		stopChan: make(chan struct{}),
	}
}

// Start blocks until ctx is cancelled or Stop is called.
func (s *IntentSweeper) Start(ctx context.Context) {
	s.logger.Info("starting intent sweeper", zap.Duration("interval", s.interval))

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweep(ctx)

		case <-s.stopChan:
			s.logger.Info("stopping intent sweeper")
			return

		case <-ctx.Done():
			s.logger.Info("context cancelled, stopping intent sweeper")
			return
		}
	}
}

func (s *IntentSweeper) sweep(ctx context.Context) {
	// Drain in batches so a backlog clears within one tick.
	for {
		n, err := s.expirer.ExpireIntents(ctx)
		if err != nil {
			if ctx.Err() == nil {
				s.logger.Error("intent sweep failed", zap.Error(err))
			}
			return
		}
		if n > 0 {
			s.logger.Info("expired payment intents settled", zap.Int("count", n))
		}
		if n == 0 || ctx.Err() != nil {
			return
		}
	}
}

func (s *IntentSweeper) Stop() {
	s.stopOnce.Do(func() { close(s.stopChan) })
}
