package postgres

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"scan2pay-service/internal/domain"
	"scan2pay-service/internal/repository"
)

// Postgres SQLSTATE codes the store reacts to.
const (
	codeUniqueViolation      = "23505"
	codeCheckViolation       = "23514"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeLockNotAvailable     = "55P03"
	codeTooManyConnections   = "53300"
	codeAdminShutdown        = "57P01"
	codeCrashShutdown        = "57P02"
	codeCannotConnectNow     = "57P03"
)

// mapError translates driver errors into the ledger error taxonomy. Errors
// already carrying a domain kind pass through untouched.
func mapError(err error) error {
	if err == nil {
		return nil
	}

	var de *domain.Error
	if errors.As(err, &de) {
		return err
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.Wrap(domain.ErrStorageUnavailable, err)
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		// No server response: dial, network or pool failures.
		return domain.Wrap(domain.ErrStorageUnavailable, err)
	}

	switch pgErr.Code {
	case codeSerializationFailure, codeDeadlockDetected, codeLockNotAvailable:
		return domain.Wrap(domain.ErrConcurrentConflict, err)
	case codeTooManyConnections, codeAdminShutdown, codeCrashShutdown, codeCannotConnectNow:
		return domain.Wrap(domain.ErrStorageUnavailable, err)
	case codeCheckViolation:
		if pgErr.ConstraintName == "vendors_balance_non_negative" {
			return domain.Wrap(domain.ErrInsufficientBalance, err)
		}
	case codeUniqueViolation:
		switch pgErr.ConstraintName {
		case "vendors_email_key":
			return domain.WithMessage(domain.ErrVendorExists, "email already registered")
		case "vendors_phone_number_key":
			return domain.WithMessage(domain.ErrVendorExists, "phone number already registered")
		case "vendors_business_number_key":
			return repository.ErrBusinessNumberTaken
		}
	}
	if strings.HasPrefix(pgErr.Code, "08") {
		return domain.Wrap(domain.ErrStorageUnavailable, err)
	}
	return domain.Wrap(domain.ErrInternal, err)
}
