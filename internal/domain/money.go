package domain

import "fmt"

// Money is an amount in integer euro cents. All arithmetic in the ledgers is
// done in cents so sums are exact; floats only appear at the API edge.
type Money int64

// FromEuros converts a euro amount (as parsed from JSON/form input) to cents,
// rounding half away from zero.
func FromEuros(euros float64) Money {
	if euros >= 0 {
		return Money(euros*100 + 0.5)
	}
	return Money(euros*100 - 0.5)
}

// Euros returns the amount as a float for display purposes.
func (m Money) Euros() float64 {
	return float64(m) / 100
}

func (m Money) String() string {
	cents := int64(m)
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}
