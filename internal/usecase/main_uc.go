// internal/usecase/main_uc.go
package usecase

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"scan2pay-service/internal/domain"
	"scan2pay-service/internal/events"
	"scan2pay-service/internal/provider"
	"scan2pay-service/internal/repository"
)

// IntentRegistry creates payment intents and resolves them from gateway callbacks.
type IntentRegistry interface {
	CreateIntent(ctx context.Context, in CreateIntentInput) (*domain.Transaction, error)
	Resolve(ctx context.Context, correlationID string, outcome domain.Outcome) (*domain.Resolution, error)
}

// Engine is the full reconciliation surface used by the HTTP layer and workers.
type Engine interface {
	IntentRegistry
	Withdraw(ctx context.Context, vendorID int64, amount domain.Money) (*domain.Transaction, error)
	Ledger(ctx context.Context, vendorID int64) (*domain.LedgerSnapshot, error)
	Statement(ctx context.Context, vendorID int64, from, to time.Time) (*domain.Statement, error)
	ExpireIntents(ctx context.Context) (int, error)
}

type Options struct {
	CallbackURL        string
	IntentTTL          time.Duration
	GatewayTimeout     time.Duration
	MaxConflictRetries int
	SweepBatchSize     int
}

func (o *Options) withDefaults() {
	if o.IntentTTL <= 0 {
		o.IntentTTL = 10 * time.Minute
	}
	if o.GatewayTimeout <= 0 {
		o.GatewayTimeout = 15 * time.Second
	}
	if o.MaxConflictRetries < 1 {
		o.MaxConflictRetries = 5
	}
	if o.SweepBatchSize <= 0 {
		o.SweepBatchSize = 100
	}
}

type PaymentUsecase struct {
	store     repository.Store
	gateway   provider.Gateway
	publisher events.Publisher
	opts      Options
	logger    *zap.Logger
	now       func() time.Time
}

var _ Engine = (*PaymentUsecase)(nil)

func NewPaymentUsecase(
	store repository.Store,
	gateway provider.Gateway,
	publisher events.Publisher,
	opts Options,
	logger *zap.Logger,
) *PaymentUsecase {
	opts.withDefaults()
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &PaymentUsecase{
		store:     store,
		gateway:   gateway,
		publisher: publisher,
		opts:      opts,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (uc *PaymentUsecase) retry(ctx context.Context, op string, fn func() error) error {
	return retryOnConflict(ctx, uc.opts.MaxConflictRetries, uc.logger, op, fn)
}

// publish sends the event after commit. Failures are logged and counted; the
// ledger outcome stands regardless.
func (uc *PaymentUsecase) publish(ctx context.Context, event *events.LedgerEvent) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if err := uc.publisher.Publish(ctx, event); err != nil {
		eventPublishErrors.Inc()
		uc.logger.Warn("failed to publish ledger event",
			zap.String("event_type", string(event.EventType)),
			zap.String("reference", event.Reference),
			zap.Error(err))
	}
}

func observe(op string, start time.Time) {
	operationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func newReference() string {
	return ulid.Make().String()
}
