// Package core holds the domain model shared by the sync engine, the
// matcher and the stores: accounts, transactions, categories,
// classifications and cents-based money.
package core

import (
	"fmt"
	"math"
)

// Money is a signed amount in cents. Negative values are expenses,
// positive values income. All arithmetic happens on cents; floats only
// appear at the provider boundary and for display.
type Money struct {
	Cents int64
}

// MoneyFromFloat converts a decimal amount (e.g. a provider balance of
// 85.50) to cents with half-up rounding away from zero.
func MoneyFromFloat(amount float64) Money {
	if amount < 0 {
		return Money{Cents: -int64(math.Round(-amount * 100))}
	}
	return Money{Cents: int64(math.Round(amount * 100))}
}

// Float returns the decimal value for display and JSON responses.
// Use cents for calculations to avoid floating-point drift.
func (m Money) Float() float64 {
	return float64(m.Cents) / 100.0
}

// Abs returns the magnitude, used when rendering expenses.
func (m Money) Abs() Money {
	if m.Cents < 0 {
		return Money{Cents: -m.Cents}
	}
	return m
}

// Neg flips the sign. The provider adapter uses this to normalize feeds
// whose convention is positive-for-outgoing.
func (m Money) Neg() Money {
	return Money{Cents: -m.Cents}
}

func (m Money) IsZero() bool {
	return m.Cents == 0
}

// String formats as a plain decimal, e.g. "-50.00".
func (m Money) String() string {
	sign := ""
	c := m.Cents
	if c < 0 {
		sign = "-"
		c = -c
	}
	return fmt.Sprintf("%s%d.%02d", sign, c/100, c%100)
}
