package domain

import (
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/bookledger/pkg/money"
)

var maxDiscount = decimal.NewFromInt(100)

// ItemInput is a client supplied line. Amounts are derived server side.
type ItemInput struct {
	TextbookID      *snowflake.ID
	Description     string
	Tags            map[string]any
	Quantity        int64
	UnitPrice       decimal.Decimal
	DiscountPercent decimal.Decimal
}

// LineAmounts holds the rounded amounts of one line.
type LineAmounts struct {
	Gross    decimal.Decimal
	Discount decimal.Decimal
	Net      decimal.Decimal
}

// PriceLine rounds after every step:
//
//	gross = round(quantity * unitPrice)
//	discount = round(gross * discountPercent / 100)
//	net = round(gross - discount)
func PriceLine(quantity int64, unitPrice, discountPercent decimal.Decimal) LineAmounts {
	gross := money.Mul(unitPrice, quantity)
	discount := money.Percent(gross, discountPercent)
	return LineAmounts{
		Gross:    gross,
		Discount: discount,
		Net:      money.Round(gross.Sub(discount)),
	}
}

type Totals struct {
	Quantity int64
	Gross    decimal.Decimal
	Discount decimal.Decimal
	Net      decimal.Decimal
}

// ItemError ties a validation failure to a 1-based line number.
type ItemError struct {
	Line int
	Err  error
}

func (e *ItemError) Error() string { return fmt.Sprintf("line %d: %v", e.Line, e.Err) }

func (e *ItemError) Unwrap() error { return e.Err }

func validateItem(kind Kind, in ItemInput) error {
	if in.Quantity < 1 {
		return ErrInvalidQuantity
	}
	if in.UnitPrice.IsNegative() || !money.HasAtMostTwoPlaces(in.UnitPrice) {
		return ErrInvalidUnitPrice
	}
	// Checked unrounded: 99.995 would otherwise round to 100.
	if in.DiscountPercent.IsNegative() || !money.HasAtMostTwoPlaces(in.DiscountPercent) ||
		in.DiscountPercent.GreaterThanOrEqual(maxDiscount) {
		return ErrInvalidDiscount
	}
	if kind.AffectsStock() && (in.TextbookID == nil || *in.TextbookID <= 0) {
		return ErrTextbookRequired
	}
	return nil
}

// PriceItems validates every line and returns unsaved items with their totals.
// Totals are sums of rounded line values, never re-derived from aggregates.
func PriceItems(kind Kind, inputs []ItemInput) ([]Item, Totals, error) {
	if len(inputs) == 0 {
		return nil, Totals{}, ErrNoItems
	}

	items := make([]Item, 0, len(inputs))
	totals := Totals{Gross: decimal.Zero, Discount: decimal.Zero, Net: decimal.Zero}
	for i, in := range inputs {
		if err := validateItem(kind, in); err != nil {
			return nil, Totals{}, &ItemError{Line: i + 1, Err: err}
		}

		unitPrice := money.Round(in.UnitPrice)
		discountPercent := in.DiscountPercent.Round(2)
		amounts := PriceLine(in.Quantity, unitPrice, discountPercent)

		items = append(items, Item{
			LineNo:          i + 1,
			TextbookID:      in.TextbookID,
			Description:     in.Description,
			Tags:            in.Tags,
			Quantity:        in.Quantity,
			UnitPrice:       unitPrice,
			DiscountPercent: discountPercent,
			GrossAmount:     amounts.Gross,
			DiscountAmount:  amounts.Discount,
			NetAmount:       amounts.Net,
		})

		totals.Quantity += in.Quantity
		totals.Gross = totals.Gross.Add(amounts.Gross)
		totals.Discount = totals.Discount.Add(amounts.Discount)
		totals.Net = totals.Net.Add(amounts.Net)
	}

	if !totals.Net.IsPositive() {
		return nil, Totals{}, ErrNonPositiveTotal
	}
	return items, totals, nil
}

// StockQuantities aggregates item quantities per textbook.
func StockQuantities(items []Item) map[snowflake.ID]int64 {
	out := map[snowflake.ID]int64{}
	for _, item := range items {
		if item.TextbookID == nil {
			continue
		}
		out[*item.TextbookID] += item.Quantity
	}
	return out
}
