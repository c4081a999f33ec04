package parser

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func d(s string) decimal.Decimal {
	v, _ := decimal.NewFromString(s)
	return v
}

func TestParseLine_FullForm(t *testing.T) {
	it := ParseLine("Peinture mur 20 m2 à 2500")

	assert.Equal(t, "Peinture mur", it.Name)
	assert.True(t, it.Quantity.Equal(d("20")))
	assert.Equal(t, "m²", it.Unit)
	assert.True(t, it.UnitPrice.Equal(d("2500")))
	assert.False(t, it.NeedsCompletion)
}

func TestParseLine_QtyUnitPrefixForm(t *testing.T) {
	it := ParseLine("20 m2 peinture mur à 2500")

	assert.Equal(t, "peinture mur", it.Name)
	assert.True(t, it.Quantity.Equal(d("20")))
	assert.Equal(t, "m²", it.Unit)
	assert.True(t, it.UnitPrice.Equal(d("2500")))
}

func TestParseLine_MinimalForm(t *testing.T) {
	it := ParseLine("bonjour à 500")

	assert.Equal(t, "bonjour", it.Name)
	assert.True(t, it.Quantity.Equal(d("1")))
	assert.Equal(t, "forfait", it.Unit)
	assert.True(t, it.UnitPrice.Equal(d("500")))
	assert.False(t, it.NeedsCompletion)
}

func TestParseLine_Fallback(t *testing.T) {
	it := ParseLine("bonjour")

	assert.Equal(t, "bonjour", it.Name)
	assert.True(t, it.Quantity.Equal(d("1")))
	assert.Equal(t, "forfait", it.Unit)
	assert.True(t, it.UnitPrice.IsZero())
	assert.True(t, it.NeedsCompletion)
	assert.NotEmpty(t, it.Description)
}

func TestParseLine_MarkerVariantsAndCurrencySuffix(t *testing.T) {
	for _, line := range []string{
		"Carrelage 10 m2 à 4000",
		"Carrelage 10 m2 a 4000",
		"Carrelage 10 m2 @ 4000",
		"Carrelage 10 m2 à 4000 fcfa",
		"Carrelage 10 m2 à 4000 XOF",
		"Carrelage 10 m2 à 4 000",
	} {
		it := ParseLine(line)
		assert.Equal(t, "Carrelage", it.Name, line)
		assert.True(t, it.Quantity.Equal(d("10")), line)
		assert.True(t, it.UnitPrice.Equal(d("4000")), "%s -> %s", line, it.UnitPrice)
	}
}

func TestParseLine_NameContainingMarkerWord(t *testing.T) {
	// The last marker wins, so "à" inside the item name survives.
	it := ParseLine("Pose à l'ancienne 5 m2 à 3000")

	assert.Equal(t, "Pose à l'ancienne", it.Name)
	assert.True(t, it.Quantity.Equal(d("5")))
	assert.Equal(t, "m²", it.Unit)
	assert.True(t, it.UnitPrice.Equal(d("3000")))
}

func TestParseLine_DecimalCommaQuantityAndPrice(t *testing.T) {
	it := ParseLine("Ciment 2,5 sac à 7500,50")

	assert.True(t, it.Quantity.Equal(d("2.5")))
	assert.Equal(t, "sac", it.Unit)
	assert.True(t, it.UnitPrice.Equal(d("7500.5")))
}

func TestParseLine_UnparseablePriceIsZero(t *testing.T) {
	it := ParseLine("Nettoyage à cher")

	assert.Equal(t, "Nettoyage", it.Name)
	assert.True(t, it.UnitPrice.IsZero())
}

func TestNormalizeUnit(t *testing.T) {
	cases := map[string]string{
		"m2": "m²", "M2": "m²", "m²": "m²",
		"h": "heure", "Heures": "heure",
		"pcs": "pièce", "piece": "pièce",
		"l": "litre", "kg": "kg",
		"metre": "mètre", "M": "mètre",
		"sac": "sac", "": "forfait",
		"jour": "jour", // unknown units pass through
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeUnit(in), "unit %q", in)
	}
}

func TestParseLines_OneItemPerLine(t *testing.T) {
	text := "Peinture mur 20 m2 à 2500\n\n  bonjour\nPlomberie à 15000\n"
	items := ParseLines(text)

	assert.Len(t, items, 3)
	assert.Equal(t, "Peinture mur", items[0].Name)
	assert.Equal(t, "bonjour", items[1].Name)
	assert.True(t, items[1].NeedsCompletion)
	assert.Equal(t, "Plomberie", items[2].Name)
	assert.True(t, items[2].UnitPrice.Equal(d("15000")))
}

func TestParseLines_Empty(t *testing.T) {
	assert.Empty(t, ParseLines("   \n \n"))
}
