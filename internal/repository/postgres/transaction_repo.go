package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"scan2pay-service/internal/domain"
	"scan2pay-service/internal/repository"
)

const transactionColumns = `
	id, reference, vendor_id, direction, amount, counterparty, status,
	correlation_id, result_code, result_desc, receipt, created_at, resolved_at, expires_at`

func scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	var t domain.Transaction
	err := row.Scan(
		&t.ID,
		&t.Reference,
		&t.VendorID,
		&t.Direction,
		&t.Amount,
		&t.Counterparty,
		&t.Status,
		&t.CorrelationID,
		&t.ResultCode,
		&t.ResultDesc,
		&t.Receipt,
		&t.CreatedAt,
		&t.ResolvedAt,
		&t.ExpiresAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func queryTransactions(ctx context.Context, q querier, query string, args ...any) ([]domain.Transaction, error) {
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, mapError(fmt.Errorf("query transactions: %w", err))
	}
	defer rows.Close()

	out := make([]domain.Transaction, 0)
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, mapError(fmt.Errorf("scan transaction: %w", err))
		}
		out = append(out, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(fmt.Errorf("iterate transactions: %w", err))
	}
	return out, nil
}

func (t *pgTx) InsertTransaction(ctx context.Context, txn *domain.Transaction) error {
	query := `
		INSERT INTO transactions (
			reference, vendor_id, direction, amount, counterparty, status,
			correlation_id, result_code, result_desc, receipt, created_at, resolved_at, expires_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, COALESCE($11, NOW()), $12, $13)
		RETURNING id, created_at`

	var createdAt *time.Time
	if !txn.CreatedAt.IsZero() {
		createdAt = &txn.CreatedAt
	}

	err := t.tx.QueryRow(ctx, query,
		txn.Reference,
		txn.VendorID,
		string(txn.Direction),
		int64(txn.Amount),
		txn.Counterparty,
		string(txn.Status),
		txn.CorrelationID,
		txn.ResultCode,
		txn.ResultDesc,
		txn.Receipt,
		createdAt,
		txn.ResolvedAt,
		txn.ExpiresAt,
	).Scan(&txn.ID, &txn.CreatedAt)
	if err != nil {
		return mapError(fmt.Errorf("insert transaction: %w", err))
	}
	return nil
}

// TransitionPending is a compare-and-set on status: the WHERE clause only
// matches a pending row, and a concurrent resolver blocks on the row lock and
// then sees zero rows.
func (t *pgTx) TransitionPending(ctx context.Context, correlationID string, outcome domain.Outcome, at time.Time) (*domain.Transaction, error) {
	query := `
		UPDATE transactions
		SET status = $2,
			result_code = $3,
			result_desc = $4,
			receipt = COALESCE(NULLIF($5, ''), receipt),
			resolved_at = $6
		WHERE correlation_id = $1 AND status = 'pending'
		RETURNING ` + transactionColumns

	txn, err := scanTransaction(t.tx.QueryRow(ctx, query,
		correlationID,
		string(outcome.TerminalStatus()),
		outcome.ResultCode,
		outcome.ResultDesc,
		outcome.Receipt,
		at,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, mapError(fmt.Errorf("transition intent: %w", err))
	}
	return txn, nil
}

func (t *pgTx) GetByCorrelationID(ctx context.Context, correlationID string) (*domain.Transaction, error) {
	txn, err := scanTransaction(t.tx.QueryRow(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE correlation_id = $1`, correlationID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, mapError(fmt.Errorf("get transaction: %w", err))
	}
	return txn, nil
}
