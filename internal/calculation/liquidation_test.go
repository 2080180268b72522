package calculation

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finsim/plan-simulator/internal/domain"
	"github.com/finsim/plan-simulator/pkg/dateutil"
)

// lotAccount holds two lots of asset 1: an old cheap lot and a recent
// expensive one. At $2.00 per unit the old lot carries a gain and the recent
// lot a loss.
func lotAccount(method domain.LotMethod) *domain.Account {
	return &domain.Account{
		ID:         1,
		Name:       "brokerage",
		TaxStatus:  domain.Taxable,
		AssetClass: domain.Investable,
		LotMethod:  method,
		Lots: []domain.AssetLot{
			{AssetID: 1, PurchaseDate: dateutil.Date(2028, time.January, 1), Units: dec(100), CostBasis: dec(150)},
			{AssetID: 1, PurchaseDate: dateutil.Date(2030, time.January, 1), Units: dec(50), CostBasis: dec(110)},
		},
	}
}

var (
	saleDate  = dateutil.Date(2030, time.June, 1)
	salePrice = dec(2.0)
)

func TestConsumeLotsFIFO(t *testing.T) {
	acct := lotAccount(domain.FIFO)

	sales, err := ConsumeLots(acct, 1, dec(240), salePrice, saleDate)
	require.NoError(t, err)
	require.Len(t, sales, 2)

	// the 2028 lot sells out first: held over a year, its gain is long-term
	decimalEq(t, dec(100), sales[0].Units)
	decimalEq(t, dec(150), sales[0].CostBasis)
	decimalEq(t, dec(200), sales[0].Proceeds)
	decimalEq(t, dec(50), sales[0].LongTermGain)
	assert.True(t, sales[0].ShortTermGain.IsZero())

	// 20 of the recent lot's 50 units cover the rest; the sale is at a loss
	// so no gain is tracked
	decimalEq(t, dec(20), sales[1].Units)
	decimalEq(t, dec(44), sales[1].CostBasis)
	decimalEq(t, dec(40), sales[1].Proceeds)
	assert.True(t, sales[1].ShortTermGain.IsZero())
	assert.True(t, sales[1].LongTermGain.IsZero())
}

func TestConsumeLotsLIFO(t *testing.T) {
	acct := lotAccount(domain.LIFO)

	sales, err := ConsumeLots(acct, 1, dec(240), salePrice, saleDate)
	require.NoError(t, err)
	require.Len(t, sales, 2)

	// the 2030 lot goes first and realizes no gain (it is underwater)
	decimalEq(t, dec(50), sales[0].Units)
	decimalEq(t, dec(110), sales[0].CostBasis)
	assert.True(t, sales[0].ShortTermGain.IsZero())
	assert.True(t, sales[0].LongTermGain.IsZero())

	// 70 units of the old lot cover the rest at a long-term gain
	decimalEq(t, dec(70), sales[1].Units)
	decimalEq(t, dec(105), sales[1].CostBasis)
	decimalEq(t, dec(35), sales[1].LongTermGain)
}

func TestConsumeLotsCostOrdering(t *testing.T) {
	// highest cost per unit first: the 2.20 lot before the 1.50 lot
	sales, err := ConsumeLots(lotAccount(domain.HighestCost), 1, dec(240), salePrice, saleDate)
	require.NoError(t, err)
	require.Len(t, sales, 2)
	assert.True(t, sales[0].LotDate.Equal(dateutil.Date(2030, time.January, 1)))

	// lowest cost per unit first: the 1.50 lot leads
	sales, err = ConsumeLots(lotAccount(domain.LowestCost), 1, dec(240), salePrice, saleDate)
	require.NoError(t, err)
	require.Len(t, sales, 2)
	assert.True(t, sales[0].LotDate.Equal(dateutil.Date(2028, time.January, 1)))
}

func TestConsumeLotsAverageCost(t *testing.T) {
	acct := lotAccount(domain.AverageCost)

	sales, err := ConsumeLots(acct, 1, dec(240), salePrice, saleDate)
	require.NoError(t, err)
	require.Len(t, sales, 1)

	// 120 of 150 units at the blended basis of 260/150 per unit
	decimalEq(t, dec(120), sales[0].Units)
	decimalEq(t, dec(208), sales[0].CostBasis)
	decimalEq(t, dec(240), sales[0].Proceeds)

	// the units-weighted average purchase date lands in 2028, well over a
	// year before the sale, so the whole gain is long-term
	assert.True(t, sales[0].LotDate.Equal(dateutil.Date(2028, time.August, 31)),
		"blended date %s", sales[0].LotDate)
	decimalEq(t, dec(32), sales[0].LongTermGain)
	assert.True(t, sales[0].ShortTermGain.IsZero())
}

func TestApplyLotSalesDistinguishesSameDateLots(t *testing.T) {
	// two lots bought the same day must shrink independently: the sale plan
	// consumes the first fully and 20 units of the second, leaving 30
	plan := newTestPlan()
	plan.Taxes = domain.TaxConfig{}
	sameDay := dateutil.Date(2028, time.January, 1)
	plan.Accounts = []domain.Account{{
		ID: 1, Name: "brokerage", TaxStatus: domain.Taxable,
		AssetClass: domain.Investable, LotMethod: domain.FIFO,
		Lots: []domain.AssetLot{
			{AssetID: 1, PurchaseDate: sameDay, Units: dec(100), CostBasis: dec(150)},
			{AssetID: 1, PurchaseDate: sameDay, Units: dec(50), CostBasis: dec(110)},
		},
	}}
	s := newTestState(t, plan)

	net, err := Liquidate(s, domain.AssetCoord{AccountID: 1, AssetID: 1}, dec(240), nil)
	require.NoError(t, err)
	decimalEq(t, dec(240), net)

	acct := s.Accounts[1]
	decimalEq(t, dec(30), acct.UnitsOf(1))
	require.Len(t, acct.Lots, 1)
	decimalEq(t, dec(30), acct.Lots[0].Units)
	decimalEq(t, dec(66), acct.Lots[0].CostBasis)
}

func TestConsumeLotsOversell(t *testing.T) {
	acct := lotAccount(domain.FIFO)

	// asking for more than the position holds sells it out completely
	sales, err := ConsumeLots(acct, 1, dec(400), salePrice, saleDate)
	require.NoError(t, err)

	totalUnits := decimal.Zero
	totalProceeds := decimal.Zero
	for _, s := range sales {
		totalUnits = totalUnits.Add(s.Units)
		totalProceeds = totalProceeds.Add(s.Proceeds)
	}
	decimalEq(t, dec(150), totalUnits)
	decimalEq(t, dec(300), totalProceeds)
}

func TestConsumeLotsEdgeCases(t *testing.T) {
	acct := lotAccount(domain.FIFO)

	_, err := ConsumeLots(acct, 1, dec(100), decimal.Zero, saleDate)
	assert.Error(t, err, "zero price must be rejected")

	sales, err := ConsumeLots(acct, 1, decimal.Zero, salePrice, saleDate)
	require.NoError(t, err)
	assert.Empty(t, sales)

	sales, err = ConsumeLots(acct, 99, dec(100), salePrice, saleDate)
	require.NoError(t, err)
	assert.Empty(t, sales, "unknown asset has no units to sell")
}

func TestLiquidateTaxableWithholdsGainsTax(t *testing.T) {
	plan := newTestPlan()
	plan.Accounts = []domain.Account{*lotAccount(domain.FIFO)}
	s := newTestState(t, plan)

	net, err := Liquidate(s, domain.AssetCoord{AccountID: 1, AssetID: 1}, dec(240), nil)
	require.NoError(t, err)

	// 50 of long-term gain taxed at 15% + 5% state leaves 230 of the 240
	decimalEq(t, dec(230), net)
	decimalEq(t, dec(230), s.Accounts[1].CashBalance)
	decimalEq(t, dec(50), s.YTDTax.CapitalGains)

	// the recent lot keeps its unsold units and proportional basis
	require.Len(t, s.Accounts[1].Lots, 1)
	decimalEq(t, dec(30), s.Accounts[1].Lots[0].Units)
	decimalEq(t, dec(66), s.Accounts[1].Lots[0].CostBasis)
}

func TestLiquidateTaxDeferredIsOrdinaryIncome(t *testing.T) {
	plan := newTestPlan()
	acct := lotAccount(domain.FIFO)
	acct.TaxStatus = domain.TaxDeferred
	plan.Accounts = []domain.Account{*acct}
	s := newTestState(t, plan)

	net, err := Liquidate(s, domain.AssetCoord{AccountID: 1, AssetID: 1}, dec(240), nil)
	require.NoError(t, err)

	// the whole 240 is ordinary income: 10% federal + 5% state withheld
	decimalEq(t, dec(204), net)
	decimalEq(t, dec(240), s.YTDTax.OrdinaryIncome)
	assert.True(t, s.YTDTax.CapitalGains.IsZero())
	assert.True(t, s.YTDTax.EarlyWithdrawalPenalties.IsZero(), "owner is past the penalty age")
}

func TestLiquidateTaxDeferredEarlyPenalty(t *testing.T) {
	plan := newTestPlan()
	plan.BirthDate = dateutil.Date(1980, time.January, 1) // age 50 at sale
	acct := lotAccount(domain.FIFO)
	acct.TaxStatus = domain.TaxDeferred
	plan.Accounts = []domain.Account{*acct}
	s := newTestState(t, plan)

	net, err := Liquidate(s, domain.AssetCoord{AccountID: 1, AssetID: 1}, dec(240), nil)
	require.NoError(t, err)

	// taxes as above plus the 10% early withdrawal penalty on the gross
	decimalEq(t, dec(180), net)
	decimalEq(t, dec(24), s.YTDTax.EarlyWithdrawalPenalties)
}

func TestLiquidateTaxFreeTracksUntaxed(t *testing.T) {
	plan := newTestPlan()
	acct := lotAccount(domain.FIFO)
	acct.TaxStatus = domain.TaxFree
	plan.Accounts = []domain.Account{*acct}
	s := newTestState(t, plan)

	net, err := Liquidate(s, domain.AssetCoord{AccountID: 1, AssetID: 1}, dec(240), nil)
	require.NoError(t, err)

	decimalEq(t, dec(240), net)
	decimalEq(t, dec(240), s.YTDTax.TaxFreeWithdrawals)
	assert.True(t, s.YTDTax.FederalTax.IsZero())
}

func TestGainRatioEstimatorGrossesUp(t *testing.T) {
	plan := newTestPlan()
	plan.Accounts = []domain.Account{*lotAccount(domain.FIFO)}
	s := newTestState(t, plan)

	coord := domain.AssetCoord{AccountID: 1, AssetID: 1}
	gross, err := GainRatioEstimator{}.EstimateGross(dec(100), coord, s)
	require.NoError(t, err)

	// avg cost 260/150, gain ratio (2 - 1.7333)/2, effective rate
	// 0.13333 * 0.20, so gross = 100 / 0.97333
	decimalNear(t, dec(102.74), gross)
	assert.True(t, gross.GreaterThan(dec(100)))
}

func TestGainRatioEstimatorKeepFloor(t *testing.T) {
	// an absurd tax configuration cannot more than double the sale
	plan := newTestPlan()
	plan.Taxes.CapitalGainsRate = dec(0.90)
	plan.Taxes.StateRate = dec(0.50)
	acct := lotAccount(domain.FIFO)
	acct.Lots[0].CostBasis = decimal.Zero
	acct.Lots[1].CostBasis = decimal.Zero
	plan.Accounts = []domain.Account{*acct}
	s := newTestState(t, plan)

	coord := domain.AssetCoord{AccountID: 1, AssetID: 1}
	gross, err := GainRatioEstimator{}.EstimateGross(dec(100), coord, s)
	require.NoError(t, err)
	decimalEq(t, dec(200), gross)
}
