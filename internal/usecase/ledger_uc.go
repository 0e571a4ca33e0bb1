package usecase

import (
	"context"
	"time"

	"scan2pay-service/internal/domain"
)

func (uc *PaymentUsecase) Ledger(ctx context.Context, vendorID int64) (*domain.LedgerSnapshot, error) {
	defer observe("ledger", time.Now())
	return uc.store.Snapshot(ctx, vendorID)
}

// Statement returns the vendor's transactions created in [from, to) with the
// completed in/out totals.
func (uc *PaymentUsecase) Statement(ctx context.Context, vendorID int64, from, to time.Time) (*domain.Statement, error) {
	defer observe("statement", time.Now())

	if !from.Before(to) {
		return nil, domain.WithMessage(domain.ErrInvalidRequest, "statement range start must be before its end")
	}

	rows, err := uc.store.ListRange(ctx, vendorID, from, to)
	if err != nil {
		return nil, err
	}

	st := &domain.Statement{VendorID: vendorID, From: from, To: to, Transactions: rows}
	st.Summarize()
	return st, nil
}
