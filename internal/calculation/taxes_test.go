package calculation

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/finsim/plan-simulator/internal/domain"
)

func TestFederalTaxBracketWalk(t *testing.T) {
	calc := NewTaxCalculator(testTaxConfig())

	tests := []struct {
		name     string
		income   decimal.Decimal
		expected decimal.Decimal
	}{
		{
			name:     "zero income",
			income:   decimal.Zero,
			expected: decimal.Zero,
		},
		{
			name:     "negative income",
			income:   dec(-5000),
			expected: decimal.Zero,
		},
		{
			name:     "inside first bracket",
			income:   dec(5000),
			expected: dec(500), // 5000 * 0.10
		},
		{
			name:     "exactly at bracket boundary",
			income:   dec(10000),
			expected: dec(1000), // 10000 * 0.10
		},
		{
			name:     "spanning three brackets",
			income:   dec(50000),
			expected: dec(6800), // 10000*0.10 + 30000*0.12 + 10000*0.22
		},
		{
			name:     "spanning all brackets",
			income:   dec(200000),
			expected: dec(42000), // 1000 + 3600 + 11000 + 110000*0.24
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := calc.FederalTax(tt.income)
			assert.True(t, tt.expected.Equal(got), "expected %s, got %s", tt.expected, got)
		})
	}
}

func TestMarginalFederalTax(t *testing.T) {
	calc := NewTaxCalculator(testTaxConfig())

	// 10000 of additional income on top of 35000 year to date: 5000 fills
	// the rest of the 12% bracket, 5000 lands in the 22% bracket
	got := calc.MarginalFederalTax(dec(10000), dec(35000))
	assert.True(t, dec(1700).Equal(got), "expected 1700, got %s", got)

	// the same 10000 earned first would all be in lower brackets
	first := calc.MarginalFederalTax(dec(10000), decimal.Zero)
	assert.True(t, dec(1000).Equal(first), "expected 1000, got %s", first)

	assert.True(t, calc.MarginalFederalTax(decimal.Zero, dec(35000)).IsZero())
	assert.True(t, calc.MarginalFederalTax(dec(-100), dec(35000)).IsZero())
}

func TestStateTax(t *testing.T) {
	calc := NewTaxCalculator(testTaxConfig())

	assert.True(t, dec(500).Equal(calc.StateTax(dec(10000))))
	assert.True(t, calc.StateTax(decimal.Zero).IsZero())
	assert.True(t, calc.StateTax(dec(-100)).IsZero())
}

func TestLongTermGainsTax(t *testing.T) {
	calc := NewTaxCalculator(testTaxConfig())

	fed, state := calc.LongTermGainsTax(dec(100))
	assert.True(t, dec(15).Equal(fed), "expected 15, got %s", fed)
	assert.True(t, dec(5).Equal(state), "expected 5, got %s", state)

	fed, state = calc.LongTermGainsTax(dec(-50))
	assert.True(t, fed.IsZero())
	assert.True(t, state.IsZero())
}

func TestGrossFromNetWalksBrackets(t *testing.T) {
	// no state tax so the bracket arithmetic is exact
	config := testTaxConfig()
	config.StateRate = decimal.Zero
	calc := NewTaxCalculator(config)

	// gross 50000 taxes to 6800, so netting 43200 needs exactly 50000
	got := calc.GrossFromNet(dec(43200), decimal.Zero)
	assert.True(t, dec(50000).Equal(got), "expected 50000, got %s", got)

	// small amounts stay inside the first bracket
	got = calc.GrossFromNet(dec(900), decimal.Zero)
	assert.True(t, dec(1000).Equal(got), "expected 1000, got %s", got)

	assert.True(t, calc.GrossFromNet(decimal.Zero, decimal.Zero).IsZero())
}

func TestGrossFromNetRoundTrips(t *testing.T) {
	calc := NewTaxCalculator(testTaxConfig())

	cases := []struct {
		net decimal.Decimal
		ytd decimal.Decimal
	}{
		{dec(5000), decimal.Zero},
		{dec(43200), decimal.Zero},
		{dec(20000), dec(35000)},
		{dec(150000), dec(90000)},
	}

	for _, tc := range cases {
		gross := calc.GrossFromNet(tc.net, tc.ytd)
		fed, state := calc.OrdinaryTax(gross, tc.ytd)
		net := gross.Sub(fed).Sub(state)
		diff := net.Sub(tc.net).Abs()
		assert.True(t, diff.LessThan(dec(0.01)),
			"net %s ytd %s: gross %s nets back to %s", tc.net, tc.ytd, gross, net)
	}
}

func TestGrossFromNetWithoutBrackets(t *testing.T) {
	calc := NewTaxCalculator(domain.TaxConfig{StateRate: dec(0.05)})

	// only the flat state rate applies: gross = net / 0.95
	got := calc.GrossFromNet(dec(95), decimal.Zero)
	assert.True(t, dec(100).Equal(got), "expected 100, got %s", got)
}
