package money

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

func init() {
	// Currency math never divides below this precision; half-up rounding
	// happens only at the 2-decimal output boundary.
	decimal.DivisionPrecision = 28
}

// Money is an exact decimal amount. All pricing arithmetic goes through this
// type; conversion to float64 is allowed only at the display/storage boundary.
type Money struct {
	d decimal.Decimal
}

// Zero is the zero amount.
func Zero() Money {
	return Money{}
}

// FromString parses a decimal string like "9.99".
func FromString(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, fmt.Errorf("invalid money value %q: %w", s, err)
	}
	return Money{d: d}, nil
}

// MustFromString is FromString for literals known to be valid.
func MustFromString(s string) Money {
	m, err := FromString(s)
	if err != nil {
		panic(err)
	}
	return m
}

// FromInt returns a whole-unit amount.
func FromInt(n int64) Money {
	return Money{d: decimal.NewFromInt(n)}
}

// FromFloat converts a float at the input boundary (e.g. legacy documents).
func FromFloat(f float64) Money {
	return Money{d: decimal.NewFromFloat(f)}
}

// Add returns m + other.
func (m Money) Add(other Money) Money {
	return Money{d: m.d.Add(other.d)}
}

// Sub returns m - other.
func (m Money) Sub(other Money) Money {
	return Money{d: m.d.Sub(other.d)}
}

// MulInt returns m × n, exact.
func (m Money) MulInt(n int) Money {
	return Money{d: m.d.Mul(decimal.NewFromInt(int64(n)))}
}

// Mul returns m × other at full precision. Used for tax multipliers, which
// are carried as Money-typed decimals to keep all arithmetic exact.
func (m Money) Mul(other Money) Money {
	return Money{d: m.d.Mul(other.d)}
}

// Percent returns m × p / 100 at full precision.
func (m Money) Percent(p int64) Money {
	return Money{d: m.d.Mul(decimal.NewFromInt(p)).Div(decimal.NewFromInt(100))}
}

// Round2 rounds half-up to 2 decimal places. Call only at output boundaries.
func (m Money) Round2() Money {
	return Money{d: m.d.Round(2)}
}

// Cmp returns -1, 0 or 1 comparing m to other.
func (m Money) Cmp(other Money) int {
	return m.d.Cmp(other.d)
}

// IsZero reports whether the amount is exactly zero.
func (m Money) IsZero() bool {
	return m.d.IsZero()
}

// IsPositive reports whether the amount is greater than zero.
func (m Money) IsPositive() bool {
	return m.d.IsPositive()
}

// IsNegative reports whether the amount is less than zero.
func (m Money) IsNegative() bool {
	return m.d.IsNegative()
}

// Float64 converts to a binary float. Output boundary only.
func (m Money) Float64() float64 {
	f, _ := m.d.Float64()
	return f
}

// String renders the exact decimal value.
func (m Money) String() string {
	return m.d.String()
}

// StringFixed2 renders with exactly two decimal places, e.g. "27.79".
func (m Money) StringFixed2() string {
	return m.d.StringFixed(2)
}

// MarshalJSON encodes as a decimal string so stored documents never go
// through binary floats.
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.d.String())
}

// UnmarshalJSON accepts either a decimal string or a bare JSON number; the
// legacy document format stored numbers.
func (m *Money) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		d, err := decimal.NewFromString(s)
		if err != nil {
			return fmt.Errorf("invalid money string %q: %w", s, err)
		}
		m.d = d
		return nil
	}
	var d decimal.Decimal
	if err := json.Unmarshal(data, &d); err != nil {
		return fmt.Errorf("invalid money value %s: %w", data, err)
	}
	m.d = d
	return nil
}
