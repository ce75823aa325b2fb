// Package money carries storefront amounts as decimal values tagged with an
// ISO 4217 currency code.
package money

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrMixedCurrency is returned when amounts in different currencies are combined.
var ErrMixedCurrency = errors.New("mixed currencies")

// Money is an amount in a single currency.
type Money struct {
	Amount       decimal.Decimal `json:"amount"`
	CurrencyCode string          `json:"currency_code"`
}

// New parses a decimal string such as "189.95" as returned by the storefront API.
func New(amount, currency string) (Money, error) {
	value, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		return Money{}, fmt.Errorf("parse amount %q: %w", amount, err)
	}
	return Money{Amount: value, CurrencyCode: normalizeCurrency(currency)}, nil
}

// Zero returns a zero amount in the given currency.
func Zero(currency string) Money {
	return Money{Amount: decimal.Zero, CurrencyCode: normalizeCurrency(currency)}
}

// IsZero reports whether the amount is zero.
func (m Money) IsZero() bool {
	return m.Amount.IsZero()
}

// Mul returns the amount multiplied by a quantity.
func (m Money) Mul(quantity int) Money {
	return Money{Amount: m.Amount.Mul(decimal.NewFromInt(int64(quantity))), CurrencyCode: m.CurrencyCode}
}

// Add sums two amounts. A zero amount without a currency adopts the other side's currency.
func (m Money) Add(other Money) (Money, error) {
	switch {
	case m.CurrencyCode == "":
		return Money{Amount: m.Amount.Add(other.Amount), CurrencyCode: other.CurrencyCode}, nil
	case other.CurrencyCode == "" || other.CurrencyCode == m.CurrencyCode:
		return Money{Amount: m.Amount.Add(other.Amount), CurrencyCode: m.CurrencyCode}, nil
	}
	return Money{}, fmt.Errorf("%w: %s and %s", ErrMixedCurrency, m.CurrencyCode, other.CurrencyCode)
}

// Equal compares amount and currency.
func (m Money) Equal(other Money) bool {
	return m.CurrencyCode == other.CurrencyCode && m.Amount.Equal(other.Amount)
}

// String renders "189.95 EUR".
func (m Money) String() string {
	if m.CurrencyCode == "" {
		return m.Amount.StringFixed(2)
	}
	return m.Amount.StringFixed(2) + " " + m.CurrencyCode
}

func normalizeCurrency(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
