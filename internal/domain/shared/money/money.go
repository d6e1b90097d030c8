package money

import "fmt"

// Money keeps USD amounts in integer cents to avoid floating point issues.
// The marketplace is single-currency, so no currency code is carried.
type Money struct {
	Cents int64
}

// FromCents wraps an integer cent amount.
func FromCents(cents int64) Money {
	return Money{Cents: cents}
}

// FromDollars builds an amount from whole dollars.
func FromDollars(dollars int64) Money {
	return Money{Cents: dollars * 100}
}

// Zero is the zero amount.
func Zero() Money {
	return Money{}
}

func (m Money) Add(other Money) Money {
	return Money{Cents: m.Cents + other.Cents}
}

func (m Money) Sub(other Money) Money {
	return Money{Cents: m.Cents - other.Cents}
}

// Multiply multiplies the amount by the provided factor, e.g. a night count.
func (m Money) Multiply(times int64) Money {
	return Money{Cents: m.Cents * times}
}

// Percent returns pct% of the amount, rounded half up to the cent.
func (m Money) Percent(pct int) Money {
	if pct <= 0 {
		return Money{}
	}
	if pct > 100 {
		pct = 100
	}
	return Money{Cents: (m.Cents*int64(pct) + 50) / 100}
}

func (m Money) IsZero() bool {
	return m.Cents == 0
}

// String renders the amount as dollars, e.g. "1000.00".
func (m Money) String() string {
	sign := ""
	cents := m.Cents
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}
