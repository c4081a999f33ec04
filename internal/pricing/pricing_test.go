package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/fasodevis/fasodevis-backend/pkg/models"
)

func d(s string) decimal.Decimal {
	v, _ := decimal.NewFromString(s)
	return v
}

func TestCompute_ReferenceExample(t *testing.T) {
	// 2 x 5000 + 1 x 10000, 10% discount, 18% tax
	items := []Item{
		{Quantity: d("2"), UnitPrice: d("5000")},
		{Quantity: d("1"), UnitPrice: d("10000")},
	}
	res := Compute(items, models.DiscountPercent, d("10"), d("18"))

	assert.True(t, res.Subtotal.Equal(d("20000")), "subtotal %s", res.Subtotal)
	assert.True(t, res.DiscountAmount.Equal(d("2000")), "discount %s", res.DiscountAmount)
	assert.True(t, res.AfterDiscount.Equal(d("18000")), "after discount %s", res.AfterDiscount)
	assert.True(t, res.TaxAmount.Equal(d("3240")), "tax %s", res.TaxAmount)
	assert.True(t, res.Total.Equal(d("21240")), "total %s", res.Total)
}

func TestCompute_PerItemAmounts(t *testing.T) {
	items := []Item{
		{Quantity: d("2.5"), UnitPrice: d("1000")},
		{Quantity: d("0"), UnitPrice: d("9999")},
	}
	res := Compute(items, models.DiscountNone, decimal.Zero, decimal.Zero)

	assert.Len(t, res.ItemAmounts, 2)
	assert.True(t, res.ItemAmounts[0].Equal(d("2500")))
	assert.True(t, res.ItemAmounts[1].Equal(d("0")))
	assert.True(t, res.Total.Equal(d("2500")))
}

func TestCompute_DiscountNoneIgnoresValue(t *testing.T) {
	items := []Item{{Quantity: d("1"), UnitPrice: d("10000")}}
	res := Compute(items, models.DiscountNone, d("9999"), decimal.Zero)
	assert.True(t, res.DiscountAmount.IsZero())
	assert.True(t, res.Total.Equal(d("10000")))
}

func TestCompute_NegativeDiscountNormalizesToZero(t *testing.T) {
	items := []Item{{Quantity: d("1"), UnitPrice: d("5000")}}
	for _, dt := range []models.DiscountType{models.DiscountPercent, models.DiscountFixed} {
		res := Compute(items, dt, d("-10"), decimal.Zero)
		assert.True(t, res.DiscountAmount.IsZero(), "type %s", dt)
	}
}

func TestCompute_FixedDiscountClampedAtSubtotal(t *testing.T) {
	items := []Item{{Quantity: d("1"), UnitPrice: d("5000")}}
	res := Compute(items, models.DiscountFixed, d("8000"), d("18"))

	// The discount line keeps its face value but the amount due floors at 0.
	assert.True(t, res.DiscountAmount.Equal(d("8000")))
	assert.True(t, res.AfterDiscount.IsZero())
	assert.True(t, res.TaxAmount.IsZero())
	assert.True(t, res.Total.IsZero())
}

func TestCompute_Deterministic(t *testing.T) {
	items := []Item{
		{Quantity: d("3.33"), UnitPrice: d("1234.56")},
		{Quantity: d("7"), UnitPrice: d("999")},
	}
	a := Compute(items, models.DiscountPercent, d("12.5"), d("18"))
	b := Compute(items, models.DiscountPercent, d("12.5"), d("18"))
	assert.True(t, a.Total.Equal(b.Total))
	assert.True(t, a.TaxAmount.Equal(b.TaxAmount))
	assert.True(t, a.DiscountAmount.Equal(b.DiscountAmount))
}

func TestCompute_EmptyItems(t *testing.T) {
	res := Compute(nil, models.DiscountPercent, d("10"), d("18"))
	assert.True(t, res.Subtotal.IsZero())
	assert.True(t, res.Total.IsZero())
}

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"2500", "2500"},
		{"2 500", "2500"},
		{"2 500,50", "2500.5"},
		{"12,5", "12.5"},
		{"", "0"},
		{"abc", "0"},
		{"12..5", "0"},
	}
	for _, c := range cases {
		assert.True(t, ParseAmount(c.in).Equal(d(c.want)), "input %q -> %s", c.in, ParseAmount(c.in))
	}
}
