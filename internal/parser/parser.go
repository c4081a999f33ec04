// Package parser turns free-form text (typed or voice-dictated) into draft
// quote line items. One non-empty input line always yields exactly one
// item: anything the grammar cannot read falls back to a name-only item
// flagged for completion, so dictated input is never dropped.
package parser

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/fasodevis/fasodevis-backend/internal/pricing"
)

// DefaultUnit is the flat-fee unit used when no unit is given or parsed.
const DefaultUnit = "forfait"

// LineItem is a parsed draft line, not yet persisted.
type LineItem struct {
	Name            string          `json:"name"`
	Description     string          `json:"description,omitempty"`
	Quantity        decimal.Decimal `json:"quantity"`
	Unit            string          `json:"unit"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
	NeedsCompletion bool            `json:"needs_completion,omitempty"`
}

var (
	// Price marker: a standalone "à", "a" or "@" token. The LAST marker on
	// the line splits name/quantity from the price, so item names that
	// themselves contain "à" still parse.
	reMarker = regexp.MustCompile(`(?i)\s+(?:à|a|@)\s+`)

	// "<price>[ fcfa|xof]" with spaces or a decimal comma inside the number.
	rePrice = regexp.MustCompile(`(?i)^([0-9][0-9 \x{00a0}\x{202f}]*(?:[.,][0-9]+)?)\s*(?:fcfa|xof)?$`)

	// "<name> <qty> <unit>" — full form, unit immediately after quantity.
	reNameQtyUnit = regexp.MustCompile(`^(.+?)\s+([0-9]+(?:[.,][0-9]+)?)\s+(\S+)$`)

	// "<qty> <unit> <name>" — quantity/unit prefix form.
	reQtyUnitName = regexp.MustCompile(`^([0-9]+(?:[.,][0-9]+)?)\s+(\S+)\s+(.+)$`)
)

// unitAliases maps case-insensitive spoken/typed variants to canonical
// unit labels. Unknown units pass through verbatim.
var unitAliases = map[string]string{
	"m2": "m²", "m²": "m²",
	"h": "heure", "heure": "heure", "heures": "heure",
	"pcs": "pièce", "piece": "pièce", "pieces": "pièce", "pièce": "pièce", "pièces": "pièce",
	"l": "litre", "litre": "litre", "litres": "litre",
	"kg": "kg",
	"m": "mètre", "metre": "mètre", "mètre": "mètre", "metres": "mètre", "mètres": "mètre",
	"sac": "sac", "sacs": "sac",
	"forfait": "forfait",
}

// NormalizeUnit resolves a unit token against the alias table.
// Empty tokens default to the flat-fee unit.
func NormalizeUnit(u string) string {
	u = strings.TrimSpace(u)
	if u == "" {
		return DefaultUnit
	}
	if canon, ok := unitAliases[strings.ToLower(u)]; ok {
		return canon
	}
	return u
}

// ParseLines splits multi-line input and parses each non-empty line
// independently, preserving input order.
func ParseLines(text string) []LineItem {
	var items []LineItem
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		items = append(items, ParseLine(line))
	}
	return items
}

// ParseLine parses one logical line. Tried in priority order:
//
//  1. <name> <qty> <unit> à <price>
//  2. <qty> <unit> <name> à <price>
//  3. <name> à <price>          (qty 1, unit "forfait")
//  4. fallback: whole line as name, price 0, flagged for completion
func ParseLine(line string) LineItem {
	line = strings.TrimSpace(line)

	markers := reMarker.FindAllStringIndex(line, -1)
	if len(markers) == 0 {
		return fallbackItem(line)
	}
	last := markers[len(markers)-1]
	left := strings.TrimSpace(line[:last[0]])
	right := strings.TrimSpace(line[last[1]:])
	if left == "" {
		return fallbackItem(line)
	}

	price := parsePrice(right)

	if m := reNameQtyUnit.FindStringSubmatch(left); m != nil {
		return LineItem{
			Name:      strings.TrimSpace(m[1]),
			Quantity:  pricing.ParseAmount(m[2]),
			Unit:      NormalizeUnit(m[3]),
			UnitPrice: price,
		}
	}
	if m := reQtyUnitName.FindStringSubmatch(left); m != nil {
		return LineItem{
			Name:      strings.TrimSpace(m[3]),
			Quantity:  pricing.ParseAmount(m[1]),
			Unit:      NormalizeUnit(m[2]),
			UnitPrice: price,
		}
	}
	return LineItem{
		Name:      left,
		Quantity:  decimal.NewFromInt(1),
		Unit:      DefaultUnit,
		UnitPrice: price,
	}
}

func parsePrice(s string) decimal.Decimal {
	m := rePrice.FindStringSubmatch(s)
	if m == nil {
		return decimal.Zero
	}
	return pricing.ParseAmount(m[1])
}

func fallbackItem(line string) LineItem {
	return LineItem{
		Name:            line,
		Description:     "À compléter",
		Quantity:        decimal.NewFromInt(1),
		Unit:            DefaultUnit,
		UnitPrice:       decimal.Zero,
		NeedsCompletion: true,
	}
}
