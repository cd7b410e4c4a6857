package domain

import (
	"errors"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func textbook(id int64) *snowflake.ID {
	v := snowflake.ID(id)
	return &v
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestPriceItemsWorkedExample(t *testing.T) {
	items, totals, err := PriceItems(KindInvoice, []ItemInput{
		{TextbookID: textbook(1), Quantity: 10, UnitPrice: dec("100"), DiscountPercent: dec("10")},
		{TextbookID: textbook(2), Quantity: 1, UnitPrice: dec("50"), DiscountPercent: decimal.Zero},
	})
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.True(t, items[0].GrossAmount.Equal(dec("1000")))
	assert.True(t, items[0].DiscountAmount.Equal(dec("100")))
	assert.True(t, items[0].NetAmount.Equal(dec("900")))
	assert.True(t, items[1].NetAmount.Equal(dec("50")))
	assert.Equal(t, 1, items[0].LineNo)
	assert.Equal(t, 2, items[1].LineNo)

	assert.Equal(t, int64(11), totals.Quantity)
	assert.True(t, totals.Gross.Equal(dec("1050")))
	assert.True(t, totals.Discount.Equal(dec("100")))
	assert.True(t, totals.Net.Equal(dec("950")))
}

func TestPriceLineRoundsEachStep(t *testing.T) {
	amounts := PriceLine(3, dec("33.33"), dec("12.5"))

	assert.Equal(t, "99.99", amounts.Gross.StringFixed(2))
	// 99.99 * 12.5 / 100 = 12.49875
	assert.Equal(t, "12.50", amounts.Discount.StringFixed(2))
	assert.Equal(t, "87.49", amounts.Net.StringFixed(2))
}

func TestPriceItemsTotalsAreSumsOfRoundedLines(t *testing.T) {
	_, totals, err := PriceItems(KindCreditNote, []ItemInput{
		{Quantity: 1, UnitPrice: dec("0.67"), DiscountPercent: dec("50")},
		{Quantity: 1, UnitPrice: dec("0.67"), DiscountPercent: dec("50")},
	})
	require.NoError(t, err)
	// Each line discount rounds 0.335 to 0.34; 50% of the 1.34 aggregate would be 0.67.
	assert.Equal(t, "1.34", totals.Gross.StringFixed(2))
	assert.Equal(t, "0.68", totals.Discount.StringFixed(2))
	assert.Equal(t, "0.66", totals.Net.StringFixed(2))
}

func TestPriceItemsRejectsBadLines(t *testing.T) {
	cases := []struct {
		name string
		kind Kind
		item ItemInput
		want error
	}{
		{"full discount", KindInvoice, ItemInput{TextbookID: textbook(1), Quantity: 1, UnitPrice: dec("10"), DiscountPercent: dec("100")}, ErrInvalidDiscount},
		{"discount rounding to full", KindInvoice, ItemInput{TextbookID: textbook(1), Quantity: 1, UnitPrice: dec("50"), DiscountPercent: dec("99.995")}, ErrInvalidDiscount},
		{"discount with three places", KindInvoice, ItemInput{TextbookID: textbook(1), Quantity: 1, UnitPrice: dec("50"), DiscountPercent: dec("12.125")}, ErrInvalidDiscount},
		{"unit price with three places", KindInvoice, ItemInput{TextbookID: textbook(1), Quantity: 3, UnitPrice: dec("1.005")}, ErrInvalidUnitPrice},
		{"negative discount", KindInvoice, ItemInput{TextbookID: textbook(1), Quantity: 1, UnitPrice: dec("10"), DiscountPercent: dec("-1")}, ErrInvalidDiscount},
		{"zero quantity", KindInvoice, ItemInput{TextbookID: textbook(1), Quantity: 0, UnitPrice: dec("10")}, ErrInvalidQuantity},
		{"negative price", KindCreditNote, ItemInput{Quantity: 1, UnitPrice: dec("-10")}, ErrInvalidUnitPrice},
		{"invoice without textbook", KindInvoice, ItemInput{Quantity: 1, UnitPrice: dec("10")}, ErrTextbookRequired},
		{"purchase without textbook", KindPurchaseInvoice, ItemInput{Quantity: 1, UnitPrice: dec("10")}, ErrTextbookRequired},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := PriceItems(tc.kind, []ItemInput{
				{TextbookID: textbook(9), Quantity: 1, UnitPrice: dec("5")},
				tc.item,
			})
			var itemErr *ItemError
			require.True(t, errors.As(err, &itemErr))
			assert.Equal(t, 2, itemErr.Line)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestPriceItemsRejectsEmptyAndZeroTotal(t *testing.T) {
	_, _, err := PriceItems(KindInvoice, nil)
	assert.ErrorIs(t, err, ErrNoItems)

	_, _, err = PriceItems(KindEstimation, []ItemInput{{Quantity: 4, UnitPrice: decimal.Zero}})
	assert.ErrorIs(t, err, ErrNonPositiveTotal)
}

func TestStockQuantitiesAggregatesPerTextbook(t *testing.T) {
	got := StockQuantities([]Item{
		{TextbookID: textbook(1), Quantity: 3},
		{TextbookID: textbook(2), Quantity: 1},
		{TextbookID: textbook(1), Quantity: 4},
		{Quantity: 9},
	})
	assert.Equal(t, map[snowflake.ID]int64{1: 7, 2: 1}, got)
}

func TestKindRules(t *testing.T) {
	assert.True(t, KindInvoice.IssuesStock())
	assert.True(t, KindProvisionalInvoice.IssuesStock())
	assert.True(t, KindPurchaseInvoice.ReceivesStock())
	assert.False(t, KindCreditNote.AffectsStock())
	assert.False(t, KindEstimation.AffectsBalance())
	assert.True(t, KindCreditNote.AffectsBalance())

	assert.True(t, KindPurchaseInvoice.AllowedFor("DEALER"))
	assert.False(t, KindInvoice.AllowedFor("DEALER"))
	assert.True(t, KindInvoice.AllowedFor("SCHOOL"))
	assert.False(t, KindPurchaseInvoice.AllowedFor("COMPANY"))
}
