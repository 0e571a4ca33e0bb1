package usecase

import (
	"context"
	"time"

	"go.uber.org/zap"

	"scan2pay-service/internal/domain"
)

// ExpireIntents settles pending intents past their expiry. The gateway is
// asked first; intents it cannot give a final answer for are failed as
// expired. Resolution goes through the same conditional transition as
// callbacks, so a late callback and the sweep cannot both apply.
func (uc *PaymentUsecase) ExpireIntents(ctx context.Context) (int, error) {
	defer observe("expire_intents", time.Now())

	expired, err := uc.store.ListExpiredPending(ctx, uc.now(), uc.opts.SweepBatchSize)
	if err != nil {
		return 0, err
	}
	if len(expired) == 0 {
		return 0, nil
	}

	uc.logger.Info("settling expired payment intents", zap.Int("count", len(expired)))

	settled := 0
	for i := range expired {
		if err := ctx.Err(); err != nil {
			return settled, err
		}

		correlationID := expired[i].Correlation()
		outcome, source := uc.expiryOutcome(ctx, correlationID)

		res, err := uc.Resolve(ctx, correlationID, outcome)
		if err != nil {
			uc.logger.Error("failed to settle expired intent",
				zap.String("checkout_request_id", correlationID),
				zap.Error(err))
			continue
		}
		if res.Kind == domain.ResolutionApplied {
			intentsExpired.WithLabelValues(source).Inc()
			settled++
		}
	}
	return settled, nil
}

func (uc *PaymentUsecase) expiryOutcome(ctx context.Context, correlationID string) (domain.Outcome, string) {
	qctx, cancel := context.WithTimeout(ctx, uc.opts.GatewayTimeout)
	defer cancel()

	result, err := uc.gateway.Query(qctx, correlationID)
	if err != nil {
		uc.logger.Warn("gateway query for expired intent failed",
			zap.String("checkout_request_id", correlationID),
			zap.Error(err))
		return domain.ExpiredOutcome(), "ttl"
	}
	if !result.Final() {
		return domain.ExpiredOutcome(), "ttl"
	}
	return result.Outcome(), "gateway"
}
