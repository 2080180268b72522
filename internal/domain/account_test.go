package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestAccountLiquidity(t *testing.T) {
	tests := []struct {
		name   string
		acct   Account
		liquid bool
	}{
		{"taxable cash", Account{TaxStatus: Taxable, AssetClass: Cash}, true},
		{"deferred investable", Account{TaxStatus: TaxDeferred, AssetClass: Investable}, true},
		{"illiquid cash", Account{TaxStatus: Illiquid, AssetClass: Cash}, false},
		{"real estate", Account{TaxStatus: Taxable, AssetClass: RealEstate}, false},
		{"liability", Account{TaxStatus: Illiquid, AssetClass: Liability}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.liquid, tt.acct.IsLiquid())
		})
	}
}

func TestUnitsOfSumsAcrossLots(t *testing.T) {
	acct := Account{
		Lots: []AssetLot{
			{AssetID: 1, Units: decimal.NewFromInt(100)},
			{AssetID: 2, Units: decimal.NewFromInt(30)},
			{AssetID: 1, Units: decimal.NewFromInt(25)},
		},
	}
	assert.True(t, decimal.NewFromInt(125).Equal(acct.UnitsOf(1)))
	assert.True(t, decimal.NewFromInt(30).Equal(acct.UnitsOf(2)))
	assert.True(t, acct.UnitsOf(9).IsZero())
}

func TestEffectiveLotMethodDefaultsToFIFO(t *testing.T) {
	assert.Equal(t, FIFO, (&Account{}).EffectiveLotMethod())
	assert.Equal(t, LIFO, (&Account{LotMethod: LIFO}).EffectiveLotMethod())
}

func TestCloneIsDeep(t *testing.T) {
	profile := ProfileID(3)
	original := &Account{
		ID:            1,
		CashBalance:   decimal.NewFromInt(100),
		ReturnProfile: &profile,
		Lots: []AssetLot{
			{AssetID: 1, PurchaseDate: time.Date(2028, 1, 1, 0, 0, 0, 0, time.UTC), Units: decimal.NewFromInt(10), CostBasis: decimal.NewFromInt(50)},
		},
	}

	clone := original.Clone()
	clone.Lots[0].Units = decimal.NewFromInt(99)
	*clone.ReturnProfile = 7

	assert.True(t, decimal.NewFromInt(10).Equal(original.Lots[0].Units), "lot mutation must not leak back")
	assert.Equal(t, ProfileID(3), *original.ReturnProfile)
}

func TestCostPerUnit(t *testing.T) {
	lot := AssetLot{Units: decimal.NewFromInt(40), CostBasis: decimal.NewFromInt(100)}
	assert.True(t, decimal.NewFromFloat(2.5).Equal(lot.CostPerUnit()))
	assert.True(t, AssetLot{}.CostPerUnit().IsZero())
}
