// Package core provides money parsing and handling utilities.
//
// Amounts are held as integer cents so that running totals never drift the
// way binary floating point does. Decimal strings are the wire and storage
// representation.
package core

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// Money is a signed fixed-point amount with two fractional digits.
type Money struct {
	Cents int64
}

var maxCents = decimal.NewFromInt(math.MaxInt64)

// MaxAmountCents caps a single transaction amount (100 billion units).
const MaxAmountCents int64 = 10_000_000_000_000

// NewMoney returns a Money of the given cents.
func NewMoney(cents int64) Money {
	return Money{Cents: cents}
}

func (m Money) Add(o Money) Money { return Money{Cents: m.Cents + o.Cents} }
func (m Money) Sub(o Money) Money { return Money{Cents: m.Cents - o.Cents} }
func (m Money) Neg() Money        { return Money{Cents: -m.Cents} }
func (m Money) IsZero() bool      { return m.Cents == 0 }
func (m Money) IsNegative() bool  { return m.Cents < 0 }

// Decimal returns the amount as an exact decimal.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Cents, -2)
}

// String formats the amount with exactly two fractional digits, e.g. "-12.30".
func (m Money) String() string {
	return m.Decimal().StringFixed(2)
}

// Validate rejects negative magnitudes and amounts above MaxAmountCents.
// Zero is allowed.
func (m Money) Validate() error {
	if m.Cents < 0 {
		return ErrInvalidAmount
	}
	if m.Cents > MaxAmountCents {
		return ErrAmountTooLarge
	}
	return nil
}

// addChecked returns a+b, or false when the sum leaves the int64 range.
func addChecked(a, b int64) (int64, bool) {
	sum := a + b
	if (b > 0 && sum < a) || (b < 0 && sum > a) {
		return 0, false
	}
	return sum, true
}

// ParseMoney converts a non-negative decimal string to Money.
//
// It accepts both dot (12.34) and comma (12,34) separators and rounds
// half-up on the third decimal place.
//
// Examples:
//
//	ParseMoney("12.34")  -> 1234
//	ParseMoney("12,345") -> 1235
//	ParseMoney("-1")     -> ErrInvalidAmount
//	ParseMoney("1e12")   -> ErrAmountTooLarge
func ParseMoney(s string) (Money, error) {
	m, err := ParseSignedMoney(s)
	if err != nil {
		return Money{}, err
	}
	if err := m.Validate(); err != nil {
		return Money{}, err
	}
	return m, nil
}

// ParseSignedMoney is ParseMoney without the sign restriction or the cap. Persisted
// running totals go through it.
func ParseSignedMoney(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Money{}, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, ErrInvalidAmount
	}
	return FromDecimal(d)
}

// FromDecimal rounds d half-up to cents.
func FromDecimal(d decimal.Decimal) (Money, error) {
	cents := d.Shift(2).Round(0)
	if cents.Abs().GreaterThan(maxCents) {
		return Money{}, ErrInvalidAmount
	}
	return Money{Cents: cents.IntPart()}, nil
}

// FromFloat converts a legacy floating point amount, rejecting NaN and infinities.
func FromFloat(f float64) (Money, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Money{}, ErrInvalidAmount
	}
	return FromDecimal(decimal.NewFromFloat(f))
}

// MarshalJSON encodes the amount as a decimal string.
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

// UnmarshalJSON accepts a decimal string or a JSON number.
func (m *Money) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	var (
		parsed Money
		err    error
	)
	switch v := raw.(type) {
	case string:
		parsed, err = ParseSignedMoney(v)
	case float64:
		parsed, err = ParseSignedMoney(string(data))
	default:
		err = fmt.Errorf("%w: unsupported JSON value %s", ErrInvalidAmount, string(data))
	}
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
