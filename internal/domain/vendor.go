// internal/domain/vendor.go
package domain

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

type Vendor struct {
	ID             int64     `json:"id" db:"id"`
	BusinessName   string    `json:"business_name" db:"business_name"`
	BusinessNumber string    `json:"business_number" db:"business_number"`
	Email          string    `json:"email" db:"email"`
	PhoneNumber    string    `json:"phone_number" db:"phone_number"`
	PasswordHash   string    `json:"-" db:"password_hash"`
	BusinessType   string    `json:"business_type" db:"business_type"`
	FullName       string    `json:"full_name" db:"full_name"`
	IDNumber       string    `json:"-" db:"id_number"`
	IsVerified     bool      `json:"is_verified" db:"is_verified"`
	Balance        Money     `json:"balance" db:"balance"`
	RegisteredAt   time.Time `json:"registration_date" db:"registered_at"`
}

// RegisterRequest is the vendor sign-up payload.
type RegisterRequest struct {
	BusinessName string `json:"business_name" validate:"required,max=255"`
	Email        string `json:"email" validate:"required,email,max=255"`
	Password     string `json:"password" validate:"required,min=8,max=72"`
	PhoneNumber  string `json:"phone_number" validate:"required"`
	BusinessType string `json:"business_type" validate:"required,max=100"`
	FullName     string `json:"full_name" validate:"required,max=255"`
	IDNumber     string `json:"id_number" validate:"required,max=32"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func (r *RegisterRequest) Validate() error {
	r.BusinessName = strings.TrimSpace(r.BusinessName)
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	r.BusinessType = strings.TrimSpace(r.BusinessType)
	r.FullName = strings.TrimSpace(r.FullName)
	r.IDNumber = strings.TrimSpace(r.IDNumber)

	if err := validate.Struct(r); err != nil {
		return validationMessage(err)
	}
	phone, err := NormalizePhone(r.PhoneNumber)
	if err != nil {
		return err
	}
	r.PhoneNumber = phone
	return nil
}

// validationMessage reports the first failed rule in terms of the JSON field.
func validationMessage(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}
	fe := verrs[0]
	field := jsonFieldName(fe.StructField())
	switch fe.Tag() {
	case "required":
		return errors.New("missing required fields")
	case "email":
		return errors.New("invalid email format")
	case "min":
		return fmt.Errorf("%s must be at least %s characters long", field, fe.Param())
	case "max":
		return fmt.Errorf("%s must be at most %s characters long", field, fe.Param())
	}
	return fmt.Errorf("%s is invalid", field)
}

func jsonFieldName(structField string) string {
	if f, ok := reflect.TypeOf(RegisterRequest{}).FieldByName(structField); ok {
		if name, _, _ := strings.Cut(f.Tag.Get("json"), ","); name != "" {
			return name
		}
	}
	return structField
}
