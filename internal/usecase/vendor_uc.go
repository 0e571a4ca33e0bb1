package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"scan2pay-service/internal/domain"
	"scan2pay-service/internal/repository"
	"scan2pay-service/pkg/security"
)

const (
	businessNumberDigits      = 10
	businessNumberMaxAttempts = 5
)

type VendorUsecase struct {
	store  repository.Store
	tokens *security.TokenManager
	logger *zap.Logger
}

func NewVendorUsecase(store repository.Store, tokens *security.TokenManager, logger *zap.Logger) *VendorUsecase {
	return &VendorUsecase{store: store, tokens: tokens, logger: logger}
}

// LoginResult is a session token and the vendor it belongs to.
type LoginResult struct {
	Token     string         `json:"token"`
	ExpiresAt time.Time      `json:"expires_at"`
	Vendor    *domain.Vendor `json:"vendor"`
}

// Register creates a vendor account with a freshly generated business number.
func (uc *VendorUsecase) Register(ctx context.Context, req *domain.RegisterRequest) (*domain.Vendor, error) {
	if err := req.Validate(); err != nil {
		return nil, domain.WithMessage(domain.ErrInvalidRequest, err.Error())
	}

	hash, err := security.HashPassword(req.Password)
	if err != nil {
		return nil, domain.Wrap(domain.ErrInternal, fmt.Errorf("hash password: %w", err))
	}

	for attempt := 1; attempt <= businessNumberMaxAttempts; attempt++ {
		businessNumber, err := security.RandomDigits(businessNumberDigits)
		if err != nil {
			return nil, domain.Wrap(domain.ErrInternal, fmt.Errorf("generate business number: %w", err))
		}

		vendor := &domain.Vendor{
			BusinessName:   req.BusinessName,
			BusinessNumber: businessNumber,
			Email:          req.Email,
			PhoneNumber:    req.PhoneNumber,
			PasswordHash:   hash,
			BusinessType:   req.BusinessType,
			FullName:       req.FullName,
			IDNumber:       req.IDNumber,
		}

		err = uc.store.CreateVendor(ctx, vendor)
		if errors.Is(err, repository.ErrBusinessNumberTaken) {
			uc.logger.Debug("business number collision, regenerating", zap.Int("attempt", attempt))
			continue
		}
		if err != nil {
			if !errors.Is(err, domain.ErrVendorExists) {
				uc.logger.Error("failed to register vendor", zap.String("email", req.Email), zap.Error(err))
			}
			return nil, err
		}

		uc.logger.Info("vendor registered",
			zap.Int64("vendor_id", vendor.ID),
			zap.String("business_number", vendor.BusinessNumber))
		return vendor, nil
	}

	return nil, domain.Wrap(domain.ErrInternal, errors.New("could not allocate a unique business number"))
}

// Login checks the vendor's credentials and issues a session token.
func (uc *VendorUsecase) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, domain.WithMessage(domain.ErrInvalidRequest, "email and password are required")
	}

	vendor, err := uc.store.GetVendorByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrVendorNotFound) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}
	if !security.CheckPasswordHash(password, vendor.PasswordHash) {
		uc.logger.Info("failed login attempt", zap.Int64("vendor_id", vendor.ID))
		return nil, domain.ErrInvalidCredentials
	}

	token, expiresAt, err := uc.tokens.Generate(vendor.ID)
	if err != nil {
		return nil, domain.Wrap(domain.ErrInternal, err)
	}

	uc.logger.Info("vendor logged in", zap.Int64("vendor_id", vendor.ID))
	return &LoginResult{Token: token, ExpiresAt: expiresAt, Vendor: vendor}, nil
}

// Profile returns the vendor for an authenticated session.
func (uc *VendorUsecase) Profile(ctx context.Context, vendorID int64) (*domain.Vendor, error) {
	return uc.store.GetVendorByID(ctx, vendorID)
}
