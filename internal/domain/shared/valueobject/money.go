package valueobject

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Currency represents a currency code (ISO 4217)
type Currency string

const (
	BRL Currency = "BRL" // Brazilian Real (default)
	USD Currency = "USD"
	EUR Currency = "EUR"
)

// DefaultCurrency is the default currency for the system
const DefaultCurrency = BRL

// MinorUnitPlaces is the number of decimal places of the currency minor unit
const MinorUnitPlaces int32 = 2

var hundred = decimal.NewFromInt(100)

// Money is an immutable monetary amount in a currency
type Money struct {
	amount   decimal.Decimal
	currency Currency
}

// NewMoney creates a new Money with the specified amount and currency
func NewMoney(amount decimal.Decimal, currency Currency) (Money, error) {
	if currency == "" {
		return Money{}, errors.New("currency cannot be empty")
	}
	return Money{amount: amount, currency: currency}, nil
}

// NewMoneyBRL creates Money in the default currency
func NewMoneyBRL(amount decimal.Decimal) Money {
	return Money{amount: amount, currency: DefaultCurrency}
}

// NewMoneyFromString creates Money from a string representation
func NewMoneyFromString(amount string, currency Currency) (Money, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return Money{}, fmt.Errorf("invalid amount string: %w", err)
	}
	return NewMoney(d, currency)
}

// FromMinorUnits creates Money from an integer count of minor units (cents)
func FromMinorUnits(units int64, currency Currency) Money {
	return Money{amount: decimal.New(units, -MinorUnitPlaces), currency: currency}
}

// Zero returns a zero amount in the given currency
func Zero(currency Currency) Money {
	return Money{amount: decimal.Zero, currency: currency}
}

// Amount returns the decimal amount
func (m Money) Amount() decimal.Decimal {
	return m.amount
}

// Currency returns the currency code
func (m Money) Currency() Currency {
	return m.currency
}

// IsZero returns true if the amount is zero
func (m Money) IsZero() bool {
	return m.amount.IsZero()
}

// IsPositive returns true if the amount is greater than zero
func (m Money) IsPositive() bool {
	return m.amount.IsPositive()
}

// MinorUnits returns the amount in minor units, rounded half away from zero
func (m Money) MinorUnits() int64 {
	return m.amount.Shift(MinorUnitPlaces).Round(0).IntPart()
}

// Round rounds half-up to the currency minor unit
func (m Money) Round() Money {
	return Money{amount: m.amount.Round(MinorUnitPlaces), currency: m.currency}
}

// Add returns the sum of two amounts of the same currency
func (m Money) Add(other Money) (Money, error) {
	if m.currency != other.currency {
		return Money{}, fmt.Errorf("currency mismatch: %s vs %s", m.currency, other.currency)
	}
	return Money{amount: m.amount.Add(other.amount), currency: m.currency}, nil
}

// Equals reports equal amount and currency
func (m Money) Equals(other Money) bool {
	return m.currency == other.currency && m.amount.Equal(other.amount)
}

// Percentage returns pct percent of the amount, rounded to the minor unit
func (m Money) Percentage(pct decimal.Decimal) Money {
	return Money{
		amount:   m.amount.Mul(pct).Div(hundred).Round(MinorUnitPlaces),
		currency: m.currency,
	}
}

// Split divides the amount into n parts of floor(total/n) minor units; the
// first part absorbs the remainder so the parts sum to the original exactly.
func (m Money) Split(n int) ([]Money, error) {
	if n < 1 {
		return nil, errors.New("parts must be at least 1")
	}
	total := m.MinorUnits()
	base := total / int64(n)
	parts := make([]Money, n)
	parts[0] = FromMinorUnits(total-base*int64(n-1), m.currency)
	for i := 1; i < n; i++ {
		parts[i] = FromMinorUnits(base, m.currency)
	}
	return parts, nil
}

// String returns the amount with two decimals and its currency
func (m Money) String() string {
	return fmt.Sprintf("%s %s", m.amount.StringFixed(MinorUnitPlaces), m.currency)
}

// MarshalJSON implements json.Marshaler
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Amount   string   `json:"amount"`
		Currency Currency `json:"currency"`
	}{
		Amount:   m.amount.StringFixed(MinorUnitPlaces),
		Currency: m.currency,
	})
}
