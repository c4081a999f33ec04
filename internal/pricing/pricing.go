// Package pricing derives quote totals from line items and the
// discount/tax configuration. Everything here is pure: the same inputs
// always produce the same result and malformed numbers degrade to zero
// instead of returning errors. Callers validate before persisting.
package pricing

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/fasodevis/fasodevis-backend/pkg/models"
)

// Item carries the two inputs the engine needs from a quote line.
type Item struct {
	Quantity  decimal.Decimal
	UnitPrice decimal.Decimal
}

// Result is the full totals breakdown, in computation order.
type Result struct {
	ItemAmounts    []decimal.Decimal // quantity x unit price, per item, no cross-item rounding
	Subtotal       decimal.Decimal
	DiscountAmount decimal.Decimal
	AfterDiscount  decimal.Decimal
	TaxAmount      decimal.Decimal
	Total          decimal.Decimal
}

// Compute walks the fixed derivation order:
//
//	amount_i    = quantity_i x unit_price_i
//	subtotal    = sum(amount_i)
//	discount    = 0 | subtotal*value/100 | value (none | percent | fixed)
//	after       = max(subtotal - discount, 0)
//	tax         = after * rate / 100
//	total       = after + tax
//
// A fixed discount larger than the subtotal is clamped so the document
// never shows a negative amount due. Negative discount values and tax
// rates normalize to zero.
func Compute(items []Item, dt models.DiscountType, discountValue, taxRate decimal.Decimal) Result {
	res := Result{ItemAmounts: make([]decimal.Decimal, 0, len(items))}

	for _, it := range items {
		amt := it.Quantity.Mul(it.UnitPrice)
		res.ItemAmounts = append(res.ItemAmounts, amt)
		res.Subtotal = res.Subtotal.Add(amt)
	}

	if discountValue.IsNegative() {
		discountValue = decimal.Zero
	}
	switch dt {
	case models.DiscountPercent:
		res.DiscountAmount = res.Subtotal.Mul(discountValue).Div(decimal.NewFromInt(100))
	case models.DiscountFixed:
		res.DiscountAmount = discountValue
	default: // none, or anything unknown
		res.DiscountAmount = decimal.Zero
	}

	res.AfterDiscount = res.Subtotal.Sub(res.DiscountAmount)
	if res.AfterDiscount.IsNegative() {
		res.AfterDiscount = decimal.Zero
	}

	if taxRate.IsNegative() {
		taxRate = decimal.Zero
	}
	res.TaxAmount = res.AfterDiscount.Mul(taxRate).Div(decimal.NewFromInt(100))
	res.Total = res.AfterDiscount.Add(res.TaxAmount)
	return res
}

// ParseAmount turns a user-entered numeric string into a decimal.
// Interior whitespace is stripped and a decimal comma becomes a decimal
// point ("2 500,50" -> 2500.50). Anything unparseable is 0, never an error.
func ParseAmount(s string) decimal.Decimal {
	s = strings.NewReplacer(" ", "", " ", "", " ", "", ",", ".").Replace(strings.TrimSpace(s))
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
