// Package core holds the domain model shared by the scheduler jobs.
//
// Money is an exact decimal amount. All arithmetic on balances, sums and
// percentages goes through this type; floating point never touches money.
package core

import (
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Money is an exact currency amount backed by a decimal value.
type Money struct {
	amount decimal.Decimal
}

// MoneyFromCents builds a Money from integer minor units, the representation
// amounts take across the store boundary.
func MoneyFromCents(cents int64) Money {
	return Money{amount: decimal.NewFromInt(cents).Div(hundred)}
}

// MoneyFromString parses a decimal amount such as "12.34".
func MoneyFromString(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, ErrInvalidAmount
	}
	return Money{amount: d}, nil
}

// Cents returns the amount in integer minor units, rounding half-up on any
// sub-cent remainder.
func (m Money) Cents() int64 {
	return m.amount.Mul(hundred).Round(0).IntPart()
}

func (m Money) Add(other Money) Money {
	return Money{amount: m.amount.Add(other.amount)}
}

func (m Money) Sub(other Money) Money {
	return Money{amount: m.amount.Sub(other.amount)}
}

func (m Money) Neg() Money {
	return Money{amount: m.amount.Neg()}
}

func (m Money) IsZero() bool {
	return m.amount.IsZero()
}

func (m Money) IsPositive() bool {
	return m.amount.IsPositive()
}

// Equal reports exact equality of the two amounts.
func (m Money) Equal(other Money) bool {
	return m.amount.Equal(other.amount)
}

// String formats the amount with two decimal places, e.g. "1234.50".
func (m Money) String() string {
	return m.amount.StringFixed(2)
}

// PercentUsed returns round(100 * spent / budget) as an integer percentage.
// The caller must ensure budget is positive.
func PercentUsed(spent, budget Money) int64 {
	return spent.amount.Div(budget.amount).Mul(hundred).Round(0).IntPart()
}
