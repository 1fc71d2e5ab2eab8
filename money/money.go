// Package money holds the fixed-precision amounts and positive quantities
// shared by every entity of the point of sale.
package money

import (
	"database/sql/driver"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/yeremiapane/restaurant-pos/apperrors"
)

// Scale is the number of decimal places every Money value carries.
const Scale = 2

var halfUnit = decimal.New(5, -(Scale + 1))

// Money is an amount rounded half-up to two decimal places.
type Money struct {
	d decimal.Decimal
}

var Zero = Money{d: decimal.Zero}

func round(d decimal.Decimal) decimal.Decimal {
	return d.Add(halfUnit).RoundFloor(Scale)
}

func FromDecimal(d decimal.Decimal) Money {
	return Money{d: round(d)}
}

// New parses a decimal string such as "50.00".
func New(s string) (Money, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return Zero, apperrors.Validation("money.New", "invalid amount %q", s)
	}
	return FromDecimal(d), nil
}

// MustNew is New for constants and tests.
func MustNew(s string) Money {
	m, err := New(s)
	if err != nil {
		panic(err)
	}
	return m
}

func FromFloat(f float64) Money {
	return FromDecimal(decimal.NewFromFloat(f))
}

func FromCents(cents int64) Money {
	return Money{d: decimal.New(cents, -Scale)}
}

func (m Money) Decimal() decimal.Decimal { return m.d }

func (m Money) Add(o Money) Money { return Money{d: m.d.Add(o.d)} }

func (m Money) Sub(o Money) Money { return Money{d: m.d.Sub(o.d)} }

func (m Money) MulQty(q Quantity) Money {
	return Money{d: m.d.Mul(decimal.NewFromInt(int64(q)))}
}

// MulRate multiplies by a rate such as a VAT of 0.18 and rounds the result.
func (m Money) MulRate(rate decimal.Decimal) Money {
	return FromDecimal(m.d.Mul(rate))
}

func (m Money) IsZero() bool     { return m.d.IsZero() }
func (m Money) IsNegative() bool { return m.d.IsNegative() }
func (m Money) Cmp(o Money) int  { return m.d.Cmp(o.d) }
func (m Money) Equal(o Money) bool {
	return m.d.Equal(o.d)
}

func (m Money) Float64() float64 {
	f, _ := m.d.Float64()
	return f
}

// Cents returns the amount in minor units.
func (m Money) Cents() int64 {
	return m.d.Shift(Scale).IntPart()
}

func (m Money) String() string { return m.d.StringFixed(Scale) }

func Sum(amounts ...Money) Money {
	total := Zero
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}

func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *Money) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "null" || s == "" {
		*m = Zero
		return nil
	}
	parsed, err := New(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Scan implements sql.Scanner for decimal(12,2) columns.
func (m *Money) Scan(value interface{}) error {
	var d decimal.NullDecimal
	if err := d.Scan(value); err != nil {
		return fmt.Errorf("failed to scan money: %w", err)
	}
	if !d.Valid {
		*m = Zero
		return nil
	}
	*m = FromDecimal(d.Decimal)
	return nil
}

// Value implements driver.Valuer.
func (m Money) Value() (driver.Value, error) {
	return m.d.StringFixed(Scale), nil
}
