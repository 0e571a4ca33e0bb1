package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"scan2pay-service/internal/domain"
)

const vendorColumns = `
	id, business_name, business_number, email, phone_number, password_hash,
	business_type, full_name, id_number, is_verified, balance, registered_at`

func scanVendor(row pgx.Row) (*domain.Vendor, error) {
	var v domain.Vendor
	err := row.Scan(
		&v.ID,
		&v.BusinessName,
		&v.BusinessNumber,
		&v.Email,
		&v.PhoneNumber,
		&v.PasswordHash,
		&v.BusinessType,
		&v.FullName,
		&v.IDNumber,
		&v.IsVerified,
		&v.Balance,
		&v.RegisteredAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrVendorNotFound
		}
		return nil, mapError(fmt.Errorf("scan vendor: %w", err))
	}
	return &v, nil
}

func (s *Store) CreateVendor(ctx context.Context, v *domain.Vendor) error {
	query := `
		INSERT INTO vendors (
			business_name, business_number, email, phone_number, password_hash,
			business_type, full_name, id_number, is_verified
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, balance, registered_at`

	err := s.db.QueryRow(ctx, query,
		v.BusinessName,
		v.BusinessNumber,
		v.Email,
		v.PhoneNumber,
		v.PasswordHash,
		v.BusinessType,
		v.FullName,
		v.IDNumber,
		v.IsVerified,
	).Scan(&v.ID, &v.Balance, &v.RegisteredAt)
	if err != nil {
		return mapError(fmt.Errorf("insert vendor: %w", err))
	}
	return nil
}

func (s *Store) GetVendorByID(ctx context.Context, id int64) (*domain.Vendor, error) {
	return scanVendor(s.db.QueryRow(ctx, `SELECT `+vendorColumns+` FROM vendors WHERE id = $1`, id))
}

func (s *Store) GetVendorByEmail(ctx context.Context, email string) (*domain.Vendor, error) {
	return scanVendor(s.db.QueryRow(ctx, `SELECT `+vendorColumns+` FROM vendors WHERE email = $1`, email))
}

func (s *Store) GetVendorByBusinessNumber(ctx context.Context, businessNumber string) (*domain.Vendor, error) {
	return scanVendor(s.db.QueryRow(ctx, `SELECT `+vendorColumns+` FROM vendors WHERE business_number = $1`, businessNumber))
}

// LockVendor fetches the vendor with a row lock (SELECT FOR UPDATE) held until
// the transaction ends.
func (t *pgTx) LockVendor(ctx context.Context, vendorID int64) (*domain.Vendor, error) {
	return scanVendor(t.tx.QueryRow(ctx, `SELECT `+vendorColumns+` FROM vendors WHERE id = $1 FOR UPDATE`, vendorID))
}

func (t *pgTx) AdjustBalance(ctx context.Context, vendorID int64, delta domain.Money) (domain.Money, error) {
	query := `
		UPDATE vendors
		SET balance = balance + $2, updated_at = NOW()
		WHERE id = $1 AND balance + $2 >= 0
		RETURNING balance`

	var balance domain.Money
	err := t.tx.QueryRow(ctx, query, vendorID, int64(delta)).Scan(&balance)
	if err == nil {
		return balance, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, mapError(fmt.Errorf("adjust balance: %w", err))
	}

	// Nothing updated: either the vendor is missing or the result would be negative.
	var exists bool
	if err := t.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM vendors WHERE id = $1)`, vendorID).Scan(&exists); err != nil {
		return 0, mapError(fmt.Errorf("check vendor: %w", err))
	}
	if !exists {
		return 0, domain.ErrVendorNotFound
	}
	return 0, domain.ErrInsufficientBalance
}
