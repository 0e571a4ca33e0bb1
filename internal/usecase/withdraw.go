// internal/usecase/withdraw.go
package usecase

import (
	"context"
	"time"

	"go.uber.org/zap"

	"scan2pay-service/internal/domain"
	"scan2pay-service/internal/events"
	"scan2pay-service/internal/repository"
)

// Withdraw debits the vendor's balance and records a completed outbound row.
// The balance check and the debit happen under the vendor lock, so concurrent
// withdrawals can never take the balance below zero.
func (uc *PaymentUsecase) Withdraw(ctx context.Context, vendorID int64, amount domain.Money) (*domain.Transaction, error) {
	defer observe("withdraw", time.Now())

	if amount <= 0 {
		withdrawalsTotal.WithLabelValues("invalid").Inc()
		return nil, domain.ErrInvalidAmount
	}

	var (
		out     *domain.Transaction
		balance domain.Money
	)
	err := uc.retry(ctx, "withdraw", func() error {
		return uc.store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
			vendor, err := tx.LockVendor(ctx, vendorID)
			if err != nil {
				return err
			}
			if vendor.Balance < amount {
				return domain.ErrInsufficientBalance
			}

			newBalance, err := tx.AdjustBalance(ctx, vendorID, -amount)
			if err != nil {
				return err
			}

			now := uc.now()
			txn := &domain.Transaction{
				Reference:    newReference(),
				VendorID:     vendorID,
				Direction:    domain.DirectionOut,
				Amount:       amount,
				Counterparty: domain.WithdrawalCounterparty,
				Status:       domain.TxStatusCompleted,
				CreatedAt:    now,
				ResolvedAt:   &now,
			}
			if err := tx.InsertTransaction(ctx, txn); err != nil {
				return err
			}

			out, balance = txn, newBalance
			return nil
		})
	})
	if err != nil {
		withdrawalsTotal.WithLabelValues(string(domain.KindOf(err))).Inc()
		uc.logger.Warn("withdrawal failed",
			zap.Int64("vendor_id", vendorID),
			zap.String("amount", amount.String()),
			zap.Error(err))
		return nil, err
	}

	withdrawalsTotal.WithLabelValues("completed").Inc()
	uc.logger.Info("withdrawal completed",
		zap.Int64("vendor_id", vendorID),
		zap.String("reference", out.Reference),
		zap.String("amount", amount.String()),
		zap.String("balance_after", balance.String()))

	uc.publish(ctx, events.NewLedgerEvent(events.WithdrawalCompleted, out, &balance))
	return out, nil
}
