package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Currency is the single settlement currency of the ledger.
const Currency = "KES"

// MaxPaymentAmount is the gateway's per-transaction ceiling (KES 250,000).
const MaxPaymentAmount Money = 250_000 * 100

// minorUnitExp is the number of decimal places stored per unit (cents).
const minorUnitExp = 2

// Money holds an amount in minor units. 500.00 KES is stored as 50000.
type Money int64

// ParseMoney converts a decimal amount in major units ("500", "500.5", "500.50")
// into minor units. More than two fractional digits is rejected rather than rounded.
func ParseMoney(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return fromDecimal(d)
}

// maxMinorDigits is the most decimal digits an int64 amount in minor units can have.
const maxMinorDigits = 19

func fromDecimal(d decimal.Decimal) (Money, error) {
	if d.IsZero() {
		return 0, nil
	}
	// Bound the exponent before any arithmetic: "1e100000000" is a valid
	// decimal whose integer form is a hundred million digits long.
	exp := int64(d.Exponent()) + minorUnitExp
	if exp < -maxMinorDigits {
		return 0, fmt.Errorf("amount has more than %d decimal places", minorUnitExp)
	}
	if exp >= maxMinorDigits || int64(d.NumDigits())+exp > maxMinorDigits {
		return 0, errors.New("amount out of range")
	}

	minor := d.Shift(minorUnitExp)
	if !minor.IsInteger() {
		return 0, fmt.Errorf("amount %s has more than %d decimal places", d.String(), minorUnitExp)
	}
	if !minor.BigInt().IsInt64() {
		return 0, errors.New("amount out of range")
	}
	return Money(minor.IntPart()), nil
}

// WholeUnits returns the amount in major units and whether it had no fractional part.
func (m Money) WholeUnits() (int64, bool) {
	const scale = 100
	return int64(m) / scale, int64(m)%scale == 0
}

func (m Money) Decimal() decimal.Decimal {
	return decimal.New(int64(m), -minorUnitExp)
}

func (m Money) String() string {
	return m.Decimal().StringFixed(minorUnitExp)
}

// MarshalJSON renders the amount as a fixed two-place decimal string.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(`"` + m.String() + `"`), nil
}

// UnmarshalJSON accepts both JSON numbers and quoted decimal strings.
func (m *Money) UnmarshalJSON(b []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(b); err != nil {
		return fmt.Errorf("invalid amount: %w", err)
	}
	v, err := fromDecimal(d)
	if err != nil {
		return err
	}
	*m = v
	return nil
}
