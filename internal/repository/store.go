// internal/repository/store.go
package repository

import (
	"context"
	"errors"
	"time"

	"scan2pay-service/internal/domain"
)

// ErrBusinessNumberTaken is returned by CreateVendor when the generated business
// number collides with an existing vendor. Callers regenerate and retry.
var ErrBusinessNumberTaken = errors.New("business number already taken")

// ErrNotFound is returned by lookups that find no row.
var ErrNotFound = errors.New("not found")

// Store is the durable ledger: vendors, transactions and the callback log.
// Every balance-affecting mutation goes through WithinTx.
type Store interface {
	// WithinTx runs fn in a single atomic unit. Any error returned by fn
	// rolls back every write made through tx.
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	CreateVendor(ctx context.Context, v *domain.Vendor) error
	GetVendorByID(ctx context.Context, id int64) (*domain.Vendor, error)
	GetVendorByEmail(ctx context.Context, email string) (*domain.Vendor, error)
	GetVendorByBusinessNumber(ctx context.Context, businessNumber string) (*domain.Vendor, error)

	// Snapshot reads the balance and the vendor's transactions from one
	// consistent view, newest first.
	Snapshot(ctx context.Context, vendorID int64) (*domain.LedgerSnapshot, error)
	// ListRange returns transactions with from <= created_at < to, newest first.
	ListRange(ctx context.Context, vendorID int64, from, to time.Time) ([]domain.Transaction, error)
	// ListExpiredPending returns pending inbound intents whose expiry is before asOf.
	ListExpiredPending(ctx context.Context, asOf time.Time, limit int) ([]domain.Transaction, error)

	RecordCallback(ctx context.Context, rec *domain.CallbackRecord) error
	Ping(ctx context.Context) error
}

// Tx is the write surface available inside WithinTx.
type Tx interface {
	// LockVendor reads the vendor and holds it against concurrent
	// balance changes until the unit ends.
	LockVendor(ctx context.Context, vendorID int64) (*domain.Vendor, error)
	// AdjustBalance adds delta to the balance and returns the new value.
	// A result below zero fails with domain.ErrInsufficientBalance.
	AdjustBalance(ctx context.Context, vendorID int64, delta domain.Money) (domain.Money, error)
	InsertTransaction(ctx context.Context, t *domain.Transaction) error
	// TransitionPending moves the intent for correlationID from pending to
	// the outcome's terminal status. It returns nil, nil when no pending
	// intent matched: the row is absent or already terminal.
	TransitionPending(ctx context.Context, correlationID string, outcome domain.Outcome, at time.Time) (*domain.Transaction, error)
	GetByCorrelationID(ctx context.Context, correlationID string) (*domain.Transaction, error)
}
