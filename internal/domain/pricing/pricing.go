// Package pricing derives order totals from line items. It is the single
// copy of the arithmetic: both the display-side quote endpoint and order
// placement go through Quote, so the two can never disagree.
package pricing

import "github.com/shopspring/decimal"

var (
	// TaxRate is applied to the subtotal.
	TaxRate = decimal.NewFromFloat(0.18)
	// FlatShippingFee is charged per order when at least one item ships.
	// Zero items means nothing ships, so no fee.
	FlatShippingFee = decimal.NewFromInt(50)
)

// Line is one (unit price, quantity) pair. Product identity is irrelevant to
// the arithmetic.
type Line struct {
	UnitPrice decimal.Decimal
	Quantity  int
}

// Totals holds the derived monetary fields, each rounded to 2 decimal places.
type Totals struct {
	Subtotal decimal.Decimal
	Tax      decimal.Decimal
	Shipping decimal.Decimal
	Total    decimal.Decimal
}

// Quote computes subtotal, tax, shipping, and total for the given lines.
func Quote(lines []Line) Totals {
	subtotal := decimal.Zero
	for _, l := range lines {
		subtotal = subtotal.Add(l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	subtotal = subtotal.Round(2)

	tax := subtotal.Mul(TaxRate).Round(2)

	shipping := decimal.Zero
	if len(lines) > 0 {
		shipping = FlatShippingFee
	}

	return Totals{
		Subtotal: subtotal,
		Tax:      tax,
		Shipping: shipping,
		Total:    subtotal.Add(tax).Add(shipping).Round(2),
	}
}
