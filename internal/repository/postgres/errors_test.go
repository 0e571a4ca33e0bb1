package postgres

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"scan2pay-service/internal/domain"
	"scan2pay-service/internal/repository"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"serialization failure", &pgconn.PgError{Code: codeSerializationFailure}, domain.ErrConcurrentConflict},
		{"deadlock", fmt.Errorf("update: %w", &pgconn.PgError{Code: codeDeadlockDetected}), domain.ErrConcurrentConflict},
		{"lock not available", &pgconn.PgError{Code: codeLockNotAvailable}, domain.ErrConcurrentConflict},
		{"connection lost", errors.New("dial tcp: connection refused"), domain.ErrStorageUnavailable},
		{"admin shutdown", &pgconn.PgError{Code: codeAdminShutdown}, domain.ErrStorageUnavailable},
		{"connection exception class", &pgconn.PgError{Code: "08006"}, domain.ErrStorageUnavailable},
		{"deadline", context.DeadlineExceeded, domain.ErrStorageUnavailable},
		{"negative balance", &pgconn.PgError{Code: codeCheckViolation, ConstraintName: "vendors_balance_non_negative"}, domain.ErrInsufficientBalance},
		{"duplicate email", &pgconn.PgError{Code: codeUniqueViolation, ConstraintName: "vendors_email_key"}, domain.ErrVendorExists},
		{"duplicate phone", &pgconn.PgError{Code: codeUniqueViolation, ConstraintName: "vendors_phone_number_key"}, domain.ErrVendorExists},
		{"business number collision", &pgconn.PgError{Code: codeUniqueViolation, ConstraintName: "vendors_business_number_key"}, repository.ErrBusinessNumberTaken},
		{"other server error", &pgconn.PgError{Code: "42P01"}, domain.ErrInternal},
		{"domain error passes through", domain.ErrVendorNotFound, domain.ErrVendorNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, mapError(tt.err), tt.want)
		})
	}

	assert.NoError(t, mapError(nil))
	assert.ErrorIs(t, mapError(context.Canceled), context.Canceled)
}
