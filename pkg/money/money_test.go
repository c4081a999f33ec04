package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestFormat(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"0", "0"},
		{"999", "999"},
		{"2500", "2 500"},
		{"1250000", "1 250 000"},
		{"2500.4", "2 500"},
		{"2500.5", "2 501"}, // half-up to zero decimals
		{"-15000", "-15 000"},
	}
	for _, c := range cases {
		d, _ := decimal.NewFromString(c.in)
		assert.Equal(t, c.want, Format(d), "input %s", c.in)
	}
}

func TestFormatFCFA(t *testing.T) {
	assert.Equal(t, "20 000 FCFA", FormatFCFA(decimal.NewFromInt(20000)))
}
