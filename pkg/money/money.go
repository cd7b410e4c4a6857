// Package money holds the rounding rules shared by every priced record.
// Amounts are decimals with two places, rounded half away from zero after every
// arithmetic step.
package money

import "github.com/shopspring/decimal"

const Places int32 = 2

var hundred = decimal.NewFromInt(100)

// Round rounds to two decimal places.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(Places)
}

// Mul multiplies a unit amount by an integer quantity and rounds the result.
func Mul(unit decimal.Decimal, qty int64) decimal.Decimal {
	return Round(unit.Mul(decimal.NewFromInt(qty)))
}

// Percent returns round(amount * pct / 100).
func Percent(amount, pct decimal.Decimal) decimal.Decimal {
	return Round(amount.Mul(pct).Div(hundred))
}

// Sum adds already rounded values. The result stays exact.
func Sum(values ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}

// HasAtMostTwoPlaces reports whether d is representable without rounding.
func HasAtMostTwoPlaces(d decimal.Decimal) bool {
	return d.Equal(d.Round(Places))
}
