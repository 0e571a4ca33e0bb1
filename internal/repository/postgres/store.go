// Package postgres is the durable ledger store. Balance changes serialise on
// the vendor row lock and intents resolve through a conditional update, so
// concurrent callbacks for the same intent cannot both apply.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"scan2pay-service/internal/domain"
	"scan2pay-service/internal/repository"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Store struct {
	db *pgxpool.Pool
}

var _ repository.Store = (*Store)(nil)

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

func (s *Store) Ping(ctx context.Context) error {
	return mapError(s.db.Ping(ctx))
}

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return mapError(fmt.Errorf("begin transaction: %w", err))
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	if err := fn(ctx, &pgTx{tx: tx}); err != nil {
		return mapError(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return mapError(fmt.Errorf("commit transaction: %w", err))
	}
	return nil
}

func (s *Store) Snapshot(ctx context.Context, vendorID int64) (*domain.LedgerSnapshot, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, mapError(fmt.Errorf("begin snapshot: %w", err))
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	snap := &domain.LedgerSnapshot{VendorID: vendorID}
	err = tx.QueryRow(ctx, `SELECT balance FROM vendors WHERE id = $1`, vendorID).Scan(&snap.Balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrVendorNotFound
		}
		return nil, mapError(fmt.Errorf("read balance: %w", err))
	}

	snap.Transactions, err = queryTransactions(ctx, tx, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE vendor_id = $1
		ORDER BY created_at DESC, id DESC`, vendorID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, mapError(fmt.Errorf("end snapshot: %w", err))
	}
	return snap, nil
}

func (s *Store) ListRange(ctx context.Context, vendorID int64, from, to time.Time) ([]domain.Transaction, error) {
	var exists bool
	if err := s.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM vendors WHERE id = $1)`, vendorID).Scan(&exists); err != nil {
		return nil, mapError(fmt.Errorf("check vendor: %w", err))
	}
	if !exists {
		return nil, domain.ErrVendorNotFound
	}

	return queryTransactions(ctx, s.db, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE vendor_id = $1 AND created_at >= $2 AND created_at < $3
		ORDER BY created_at DESC, id DESC`, vendorID, from, to)
}

func (s *Store) ListExpiredPending(ctx context.Context, asOf time.Time, limit int) ([]domain.Transaction, error) {
	return queryTransactions(ctx, s.db, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE status = 'pending' AND direction = 'in' AND expires_at < $1
		ORDER BY expires_at
		LIMIT $2`, asOf, limit)
}

// pgTx implements repository.Tx on an open pgx transaction.
type pgTx struct {
	tx pgx.Tx
}
