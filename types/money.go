// Package types provides common value types used across placement.
package types

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
)

// ErrOverflow is returned when integer money arithmetic would overflow int64.
var ErrOverflow = errors.New("money: arithmetic overflow")

// Money represents a monetary value in the smallest currency unit.
// All arithmetic is integer-only. The currency is an opaque tag and is
// never converted.
//
// Examples:
//   - USD(50000) = $500.00
//   - EUR(1200)  = €12.00
type Money struct {
	Amount   int64  `json:"amount"`   // Smallest unit (cents, pence, etc)
	Currency string `json:"currency"` // ISO 4217 lowercase: "usd", "eur", "gbp"
}

// New creates a Money value with a normalized currency tag.
func New(amount int64, currency string) Money {
	return Money{Amount: amount, Currency: strings.ToLower(currency)}
}

// USD creates a Money value in US Dollars (cents).
func USD(cents int64) Money { return Money{Amount: cents, Currency: "usd"} }

// EUR creates a Money value in Euros (cents).
func EUR(cents int64) Money { return Money{Amount: cents, Currency: "eur"} }

// GBP creates a Money value in British Pounds (pence).
func GBP(pence int64) Money { return Money{Amount: pence, Currency: "gbp"} }

// Zero returns a zero Money value in the specified currency.
func Zero(currency string) Money { return Money{Amount: 0, Currency: strings.ToLower(currency)} }

// Ptr returns a pointer to a copy of m. Handy for optional price fields.
func (m Money) Ptr() *Money { return &m }

// Arithmetic operations

// Add adds two Money values. Panics if currencies don't match.
func (m Money) Add(other Money) Money {
	m.assertSameCurrency(other)
	return Money{Amount: m.Amount + other.Amount, Currency: m.Currency}
}

// Subtract subtracts another Money value. Panics if currencies don't match.
func (m Money) Subtract(other Money) Money {
	m.assertSameCurrency(other)
	return Money{Amount: m.Amount - other.Amount, Currency: m.Currency}
}

// Multiply multiplies the Money by a quantity.
func (m Money) Multiply(qty int64) Money {
	return Money{Amount: m.Amount * qty, Currency: m.Currency}
}

// ApplyRate scales m by (10000 + delta) / 10000 where delta is expressed in
// basis points, rounding half up to the nearest minor unit. A result below
// zero is floored at zero.
func (m Money) ApplyRate(delta BasisPoints) (Money, error) {
	factor := int64(BasisPointsPerUnit) + int64(delta)
	if factor <= 0 || m.Amount <= 0 {
		return Money{Amount: 0, Currency: m.Currency}, nil
	}
	if m.Amount > (math.MaxInt64-BasisPointsPerUnit/2)/factor {
		return Money{}, ErrOverflow
	}

	scaled := m.Amount*factor + BasisPointsPerUnit/2
	return Money{Amount: scaled / BasisPointsPerUnit, Currency: m.Currency}, nil
}

// AddDelta adds a signed minor-unit delta, flooring the result at zero.
func (m Money) AddDelta(delta int64) (Money, error) {
	if delta > 0 && m.Amount > math.MaxInt64-delta {
		return Money{}, ErrOverflow
	}

	out := Money{Amount: m.Amount + delta, Currency: m.Currency}
	if out.Amount < 0 {
		out.Amount = 0
	}
	return out, nil
}

// Comparison methods

// IsZero returns true if the amount is zero.
func (m Money) IsZero() bool { return m.Amount == 0 }

// IsPositive returns true if the amount is greater than zero.
func (m Money) IsPositive() bool { return m.Amount > 0 }

// IsNegative returns true if the amount is less than zero.
func (m Money) IsNegative() bool { return m.Amount < 0 }

// SameCurrency reports whether both values carry the same currency tag.
func (m Money) SameCurrency(other Money) bool { return m.Currency == other.Currency }

// Equal returns true if both Money values are equal (same amount and currency).
func (m Money) Equal(other Money) bool {
	return m.Amount == other.Amount && m.Currency == other.Currency
}

// LessThan returns true if this Money is less than other. Panics if currencies don't match.
func (m Money) LessThan(other Money) bool {
	m.assertSameCurrency(other)
	return m.Amount < other.Amount
}

// GreaterThan returns true if this Money is greater than other. Panics if currencies don't match.
func (m Money) GreaterThan(other Money) bool {
	m.assertSameCurrency(other)
	return m.Amount > other.Amount
}

// EqualPtr compares two optional money values. Two nil values are equal.
func EqualPtr(a, b *Money) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

// Formatting methods

// FormatMajor returns the major unit string without currency symbol.
// For currencies with 2 decimal places: "49.00" for USD(4900).
// For currencies with 0 decimal places (JPY): "100".
func (m Money) FormatMajor() string {
	decimals := currencyDecimals(m.Currency)
	if decimals == 0 {
		return fmt.Sprintf("%d", m.Amount)
	}

	divisor := int64(1)
	for i := 0; i < decimals; i++ {
		divisor *= 10
	}

	isNegative := m.Amount < 0
	absAmount := m.Amount
	if isNegative {
		absAmount = -absAmount
	}

	result := fmt.Sprintf(fmt.Sprintf("%%d.%%0%dd", decimals), absAmount/divisor, absAmount%divisor)
	if isNegative {
		return "-" + result
	}
	return result
}

// String returns a human-readable string with currency symbol.
func (m Money) String() string {
	return currencySymbol(m.Currency) + m.FormatMajor()
}

// MarshalJSON implements json.Marshaler.
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Amount   int64  `json:"amount"`
		Currency string `json:"currency"`
		Display  string `json:"display"`
	}{
		Amount:   m.Amount,
		Currency: m.Currency,
		Display:  m.String(),
	})
}

// Helper functions

// assertSameCurrency panics if currencies don't match.
func (m Money) assertSameCurrency(other Money) {
	if m.Currency != other.Currency {
		panic(fmt.Sprintf("money: currency mismatch: %s != %s", m.Currency, other.Currency))
	}
}

func currencySymbol(currency string) string {
	symbols := map[string]string{
		"usd": "$",
		"eur": "€",
		"gbp": "£",
		"jpy": "¥",
		"cad": "C$",
		"aud": "A$",
	}
	if sym, ok := symbols[strings.ToLower(currency)]; ok {
		return sym
	}
	return strings.ToUpper(currency) + " "
}

func currencyDecimals(currency string) int {
	switch strings.ToLower(currency) {
	case "jpy", "krw", "vnd", "clp", "pyg", "idr":
		return 0
	default:
		return 2
	}
}
