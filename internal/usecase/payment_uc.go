// internal/usecase/payment_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"scan2pay-service/internal/domain"
	"scan2pay-service/internal/events"
	"scan2pay-service/internal/provider"
	"scan2pay-service/internal/repository"
)

// CreateIntentInput identifies the vendor either by ID or by the business
// number the customer typed in.
type CreateIntentInput struct {
	VendorID       int64
	BusinessNumber string
	Amount         domain.Money
	PhoneNumber    string
}

// CreateIntent prompts the customer's phone and records a pending intent keyed
// by the gateway's correlation id. Nothing is written if the gateway refuses.
func (uc *PaymentUsecase) CreateIntent(ctx context.Context, in CreateIntentInput) (*domain.Transaction, error) {
	defer observe("create_intent", time.Now())

	if in.Amount <= 0 {
		intentsCreated.WithLabelValues("invalid").Inc()
		return nil, domain.ErrInvalidAmount
	}
	if in.Amount > domain.MaxPaymentAmount {
		intentsCreated.WithLabelValues("invalid").Inc()
		return nil, domain.WithMessage(domain.ErrInvalidAmount,
			"amount exceeds the maximum of "+domain.MaxPaymentAmount.String()+" per payment")
	}
	if _, whole := in.Amount.WholeUnits(); !whole {
		intentsCreated.WithLabelValues("invalid").Inc()
		return nil, domain.WithMessage(domain.ErrInvalidAmount, "amount must be a whole number of shillings")
	}
	phone, err := domain.NormalizePhone(in.PhoneNumber)
	if err != nil {
		intentsCreated.WithLabelValues("invalid").Inc()
		return nil, domain.WithMessage(domain.ErrInvalidRequest, err.Error())
	}

	vendor, err := uc.lookupVendor(ctx, in)
	if err != nil {
		intentsCreated.WithLabelValues("vendor_error").Inc()
		return nil, err
	}

	uc.logger.Info("initiating payment intent",
		zap.Int64("vendor_id", vendor.ID),
		zap.String("business_number", vendor.BusinessNumber),
		zap.String("amount", in.Amount.String()),
		zap.String("gateway", uc.gateway.Name()))

	pushCtx, cancel := context.WithTimeout(ctx, uc.opts.GatewayTimeout)
	resp, err := uc.gateway.Push(pushCtx, &provider.PushRequest{
		Amount:      in.Amount,
		PhoneNumber: phone,
		CallbackURL: uc.opts.CallbackURL,
		Reference:   vendor.BusinessNumber,
		Description: "Payment to " + vendor.BusinessName,
	})
	cancel()
	if err != nil {
		intentsCreated.WithLabelValues("gateway_error").Inc()
		uc.logger.Error("stk push failed",
			zap.Int64("vendor_id", vendor.ID),
			zap.Error(err))
		return nil, domain.Wrap(domain.ErrGatewayUnavailable, err)
	}
	if !resp.Accepted() {
		intentsCreated.WithLabelValues("gateway_rejected").Inc()
		uc.logger.Warn("stk push rejected by gateway",
			zap.Int64("vendor_id", vendor.ID),
			zap.String("response_code", resp.ResponseCode),
			zap.String("response_description", resp.ResponseDescription))
		return nil, domain.Wrap(domain.ErrGatewayUnavailable,
			fmt.Errorf("push rejected: code %q: %s", resp.ResponseCode, resp.ResponseDescription))
	}

	now := uc.now()
	expiresAt := now.Add(uc.opts.IntentTTL)
	correlationID := resp.CorrelationID
	intent := &domain.Transaction{
		Reference:     newReference(),
		VendorID:      vendor.ID,
		Direction:     domain.DirectionIn,
		Amount:        in.Amount,
		Counterparty:  phone,
		Status:        domain.TxStatusPending,
		CorrelationID: &correlationID,
		CreatedAt:     now,
		ExpiresAt:     &expiresAt,
	}

	err = uc.retry(ctx, "create_intent", func() error {
		return uc.store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
			return tx.InsertTransaction(ctx, intent)
		})
	})
	if err != nil {
		intentsCreated.WithLabelValues("storage_error").Inc()
		// The prompt is already on the customer's phone; its callback will be
		// logged as unknown and can be reconciled from the callback log.
		uc.logger.Error("failed to record payment intent after accepted push",
			zap.Int64("vendor_id", vendor.ID),
			zap.String("checkout_request_id", correlationID),
			zap.Error(err))
		return nil, err
	}

	intentsCreated.WithLabelValues("accepted").Inc()
	uc.logger.Info("payment intent created",
		zap.Int64("transaction_id", intent.ID),
		zap.String("reference", intent.Reference),
		zap.String("checkout_request_id", correlationID),
		zap.Time("expires_at", expiresAt))

	uc.publish(ctx, events.NewLedgerEvent(events.PaymentInitiated, intent, nil))
	return intent, nil
}

func (uc *PaymentUsecase) lookupVendor(ctx context.Context, in CreateIntentInput) (*domain.Vendor, error) {
	switch {
	case in.BusinessNumber != "":
		return uc.store.GetVendorByBusinessNumber(ctx, in.BusinessNumber)
	case in.VendorID > 0:
		return uc.store.GetVendorByID(ctx, in.VendorID)
	}
	return nil, domain.ErrVendorNotFound
}

// Resolve applies a gateway outcome to the intent for correlationID. Only the
// first resolution of a pending intent changes the ledger; later ones report a
// duplicate with the original outcome. An unknown correlation id is reported,
// not failed.
func (uc *PaymentUsecase) Resolve(ctx context.Context, correlationID string, outcome domain.Outcome) (*domain.Resolution, error) {
	defer observe("resolve", time.Now())

	var res *domain.Resolution
	err := uc.retry(ctx, "resolve", func() error {
		return uc.store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
			r, err := uc.resolveInTx(ctx, tx, correlationID, outcome)
			if err != nil {
				return err
			}
			res = r
			return nil
		})
	})
	if err != nil {
		uc.logger.Error("failed to resolve payment intent",
			zap.String("checkout_request_id", correlationID),
			zap.Int("result_code", outcome.ResultCode),
			zap.Error(err))
		return nil, err
	}

	switch res.Kind {
	case domain.ResolutionApplied:
		txn := res.Transaction
		callbacksResolved.WithLabelValues(string(res.Kind), string(txn.Status)).Inc()
		uc.logger.Info("payment intent resolved",
			zap.String("checkout_request_id", correlationID),
			zap.Int64("vendor_id", txn.VendorID),
			zap.String("status", string(txn.Status)),
			zap.Int("result_code", outcome.ResultCode),
			zap.String("result_desc", outcome.ResultDesc),
			zap.String("amount", txn.Amount.String()))
		uc.publish(ctx, events.NewLedgerEvent(events.ResolutionEventType(txn), txn, res.BalanceAfter))

	case domain.ResolutionDuplicate:
		callbacksResolved.WithLabelValues(string(res.Kind), string(res.Transaction.Status)).Inc()
		uc.logger.Info("duplicate callback for resolved intent",
			zap.String("checkout_request_id", correlationID),
			zap.String("status", string(res.Transaction.Status)),
			zap.Int("result_code", outcome.ResultCode))

	case domain.ResolutionUnknown:
		callbacksResolved.WithLabelValues(string(res.Kind), "").Inc()
		uc.logger.Warn("callback for unknown payment intent",
			zap.String("checkout_request_id", correlationID),
			zap.Int("result_code", outcome.ResultCode),
			zap.String("result_desc", outcome.ResultDesc))
	}

	return res, nil
}

func (uc *PaymentUsecase) resolveInTx(ctx context.Context, tx repository.Tx, correlationID string, outcome domain.Outcome) (*domain.Resolution, error) {
	txn, err := tx.TransitionPending(ctx, correlationID, outcome, uc.now())
	if err != nil {
		return nil, err
	}

	if txn != nil {
		res := &domain.Resolution{Kind: domain.ResolutionApplied, CorrelationID: correlationID, Transaction: txn}
		if txn.Status == domain.TxStatusCompleted {
			balance, err := tx.AdjustBalance(ctx, txn.VendorID, txn.Amount)
			if err != nil {
				return nil, fmt.Errorf("credit vendor %d: %w", txn.VendorID, err)
			}
			res.BalanceAfter = &balance
		}
		return res, nil
	}

	existing, err := tx.GetByCorrelationID(ctx, correlationID)
	if errors.Is(err, repository.ErrNotFound) {
		return &domain.Resolution{Kind: domain.ResolutionUnknown, CorrelationID: correlationID}, nil
	}
	if err != nil {
		return nil, err
	}
	return &domain.Resolution{Kind: domain.ResolutionDuplicate, CorrelationID: correlationID, Transaction: existing}, nil
}
