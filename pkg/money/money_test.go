package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestRoundHalfAwayFromZero(t *testing.T) {
	assert.True(t, Round(decimal.RequireFromString("1.005")).Equal(decimal.RequireFromString("1.01")))
	assert.True(t, Round(decimal.RequireFromString("-1.005")).Equal(decimal.RequireFromString("-1.01")))
	assert.True(t, Round(decimal.RequireFromString("2.344")).Equal(decimal.RequireFromString("2.34")))
}

func TestMulAndPercent(t *testing.T) {
	gross := Mul(decimal.RequireFromString("33.335"), 3)
	assert.Equal(t, "100.01", gross.StringFixed(2))

	disc := Percent(decimal.NewFromInt(1000), decimal.NewFromInt(10))
	assert.Equal(t, "100.00", disc.StringFixed(2))

	disc = Percent(decimal.RequireFromString("99.99"), decimal.RequireFromString("12.5"))
	assert.Equal(t, "12.50", disc.StringFixed(2))
}

func TestSumAndPlaces(t *testing.T) {
	total := Sum(decimal.RequireFromString("0.10"), decimal.RequireFromString("0.20"))
	assert.Equal(t, "0.30", total.StringFixed(2))
	assert.True(t, HasAtMostTwoPlaces(decimal.RequireFromString("10.5")))
	assert.False(t, HasAtMostTwoPlaces(decimal.RequireFromString("10.555")))
}
