// Package money formats FCFA amounts for display. The CFA franc has no
// sub-unit in practice, so every amount is rounded to zero decimal places
// and grouped with the French thousands separator.
package money

import (
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var fr = message.NewPrinter(language.French)

// Format renders an amount as e.g. "1 250 000". Rounding is half-up to
// zero decimals, matching the on-screen totals.
func Format(d decimal.Decimal) string {
	return fr.Sprintf("%d", d.Round(0).IntPart())
}

// FormatFCFA appends the currency label: "1 250 000 FCFA".
func FormatFCFA(d decimal.Decimal) string {
	return Format(d) + " FCFA"
}
