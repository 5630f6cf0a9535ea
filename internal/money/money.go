package money

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Amounts stay exact decimals through the whole pricing pipeline.
// Formatting to display strings happens here, at the boundary, and
// nowhere earlier.

var Zero = decimal.Zero

// Parse converts a decimal string ("145.00") into an exact amount.
func Parse(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse amount %q: %w", s, err)
	}
	return d, nil
}

// MustParse is for fixtures and tests where the literal is known good.
func MustParse(s string) decimal.Decimal {
	d, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return d
}

// Format renders an amount with two fraction digits for API responses.
func Format(d decimal.Decimal) string {
	return d.StringFixed(2)
}
