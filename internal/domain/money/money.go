// Package money holds the decimal monetary amount shared by the catalog and
// cart projections.
package money

import (
	"github.com/shopspring/decimal"
)

// Money is a decimal amount in a single ISO 4217 currency.
type Money struct {
	Amount       decimal.Decimal
	CurrencyCode string
}

// New returns Money for the given amount and currency.
func New(amount decimal.Decimal, currency string) Money {
	return Money{Amount: amount, CurrencyCode: currency}
}

// Zero returns a zero amount in the given currency.
func Zero(currency string) Money {
	return Money{Amount: decimal.Zero, CurrencyCode: currency}
}

// IsZero reports whether the amount is zero.
func (m Money) IsZero() bool {
	return m.Amount.IsZero()
}

// Mul multiplies the amount by an integer quantity.
func (m Money) Mul(qty int) Money {
	return Money{Amount: m.Amount.Mul(decimal.NewFromInt(int64(qty))), CurrencyCode: m.CurrencyCode}
}

// String renders the amount with two decimal places followed by the currency
// code, e.g. "340.00 EUR".
func (m Money) String() string {
	if m.CurrencyCode == "" {
		return m.Amount.StringFixed(2)
	}
	return m.Amount.StringFixed(2) + " " + m.CurrencyCode
}
