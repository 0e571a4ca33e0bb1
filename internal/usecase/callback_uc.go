// internal/usecase/callback_uc.go
package usecase

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"scan2pay-service/internal/domain"
	"scan2pay-service/internal/provider/mpesa"
	"scan2pay-service/internal/repository"
)

// CallbackUsecase turns raw gateway callbacks into intent resolutions and keeps
// an audit row for every callback received.
type CallbackUsecase struct {
	registry IntentRegistry
	store    repository.Store
	logger   *zap.Logger
}

func NewCallbackUsecase(registry IntentRegistry, store repository.Store, logger *zap.Logger) *CallbackUsecase {
	return &CallbackUsecase{registry: registry, store: store, logger: logger}
}

// ProcessSTKCallback decodes and applies an STK push callback. Duplicate and
// unknown callbacks come back as a Resolution with a nil error; a payload that
// cannot be decoded returns domain.ErrInvalidCallback.
func (uc *CallbackUsecase) ProcessSTKCallback(ctx context.Context, payload []byte) (*domain.Resolution, error) {
	uc.logger.Info("received M-Pesa STK callback", zap.Int("payload_size", len(payload)))

	cb, err := mpesa.DecodeSTKCallback(payload)
	if err != nil {
		correlationID := mpesa.CorrelationIDOf(payload)
		callbacksResolved.WithLabelValues(string(domain.ResolutionInvalid), "").Inc()
		uc.logger.Warn("rejected invalid STK callback",
			zap.String("checkout_request_id", correlationID),
			zap.Error(err))
		uc.record(ctx, correlationID, nil, domain.ResolutionInvalid, payload)
		return nil, err
	}

	uc.logger.Info("M-Pesa STK callback parsed",
		zap.String("checkout_request_id", cb.CheckoutRequestID),
		zap.Int("result_code", cb.ResultCode),
		zap.String("mpesa_receipt", cb.Receipt))

	res, err := uc.registry.Resolve(ctx, cb.CheckoutRequestID, cb.Outcome())
	if err != nil {
		return nil, err
	}

	code := cb.ResultCode
	uc.record(ctx, cb.CheckoutRequestID, &code, res.Kind, payload)
	return res, nil
}

// record writes the callback log entry. A failure here is logged only: the
// resolution has already committed.
func (uc *CallbackUsecase) record(ctx context.Context, correlationID string, resultCode *int, kind domain.ResolutionKind, payload []byte) {
	rec := &domain.CallbackRecord{
		CorrelationID: correlationID,
		ResultCode:    resultCode,
		Resolution:    kind,
	}
	if json.Valid(payload) {
		rec.Payload = json.RawMessage(payload)
	}
	if err := uc.store.RecordCallback(context.WithoutCancel(ctx), rec); err != nil {
		uc.logger.Error("failed to record callback",
			zap.String("checkout_request_id", correlationID),
			zap.String("resolution", string(kind)),
			zap.Error(err))
	}
}
