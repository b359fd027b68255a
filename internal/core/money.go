// Package core provides money parsing and handling utilities.
//
// Amounts are kept as integer cents. Parsing goes through shopspring/decimal so
// that no float ever touches a monetary value, and anything that is not an exact
// two-decimal amount is rejected rather than rounded.
package core

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

// MaxAmountCents bounds any single amount (999,999,999,999.99).
const MaxAmountCents int64 = 99_999_999_999_999

type Money struct {
	Cents int64
}

// ParseAmount converts a decimal string to Money.
//
// It accepts a dot (12.34) or, when no dot is present, a comma (12,34) as the
// decimal separator. Signs, zero, and values with a non-zero third decimal are
// rejected:
//
//	ParseAmount("12.34")   -> 1234 cents
//	ParseAmount("12,3")    -> 1230 cents
//	ParseAmount("250.000") -> 25000 cents
//	ParseAmount("250.005") -> ErrAmountPrecision
func ParseAmount(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Money{}, ErrInvalidAmount
	}
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return Money{}, ErrInvalidAmount
	}
	if !strings.Contains(s, ".") && strings.Count(s, ",") == 1 {
		s = strings.Replace(s, ",", ".", 1)
	}
	for _, r := range s {
		if (r < '0' || r > '9') && r != '.' {
			return Money{}, ErrInvalidAmount
		}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, ErrInvalidAmount
	}
	return MoneyFromDecimal(d)
}

// MoneyFromDecimal converts an exact decimal to Money with the same rules as
// ParseAmount.
func MoneyFromDecimal(d decimal.Decimal) (Money, error) {
	if !d.IsPositive() {
		return Money{}, ErrInvalidAmount
	}
	cents := d.Shift(2)
	if !cents.IsInteger() {
		return Money{}, ErrAmountPrecision
	}
	if cents.GreaterThan(decimal.NewFromInt(MaxAmountCents)) {
		return Money{}, ErrAmountTooLarge
	}
	return Money{Cents: cents.IntPart()}, nil
}

// Decimal returns the exact decimal value of m.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Cents, -2)
}

// String formats m with exactly two decimals, e.g. "12.30".
func (m Money) String() string {
	return m.Decimal().StringFixed(2)
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	if m.Cents > MaxAmountCents {
		return ErrAmountTooLarge
	}
	return nil
}

// Add returns the sum of m and o.
func (m Money) Add(o Money) Money {
	return Money{Cents: m.Cents + o.Cents}
}

// Exceeds reports whether m is strictly above ceiling. A zero ceiling disables
// the check.
func (m Money) Exceeds(ceiling Money) bool {
	return ceiling.Cents > 0 && m.Cents > ceiling.Cents
}

// MarshalJSON encodes m as a decimal string ("12.30") so clients never see a
// float.
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

// UnmarshalJSON accepts a JSON string or number. Numbers are read from their
// literal text, so 250.005 is rejected rather than rounded.
func (m *Money) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	raw := string(b)
	if len(b) > 0 && b[0] == '"' {
		if err := json.Unmarshal(b, &raw); err != nil {
			return NewValidationError("invalid amount", ErrInvalidAmount)
		}
	}
	parsed, err := ParseAmount(raw)
	if err != nil {
		return NewValidationError("invalid amount", err)
	}
	*m = parsed
	return nil
}
