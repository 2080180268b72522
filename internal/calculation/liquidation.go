package calculation

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/finsim/plan-simulator/internal/domain"
	"github.com/finsim/plan-simulator/pkg/dateutil"
)

// longTermHoldingDays is the holding period at which a gain becomes long-term
const longTermHoldingDays = 365

// LotSale is the outcome of consuming (part of) one lot. LotIndex is the
// lot's position in the account's Lots slice, so applying the sale shrinks
// exactly the lot that was planned; it is -1 for an average-cost sale, which
// shaves every lot proportionally instead.
type LotSale struct {
	LotIndex      int
	LotDate       time.Time
	Units         decimal.Decimal
	CostBasis     decimal.Decimal
	Proceeds      decimal.Decimal
	ShortTermGain decimal.Decimal
	LongTermGain  decimal.Decimal
}

// ConsumeLots plans the sale of up to amount dollars of one asset from an
// account, honoring the account's lot method. It does not mutate the
// account; the returned sales say exactly which lots shrink by how much.
// When the position cannot cover the amount the sales simply total less.
func ConsumeLots(acct *domain.Account, assetID domain.AssetID, amount, price decimal.Decimal, currentDate time.Time) ([]LotSale, error) {
	if !price.IsPositive() {
		return nil, fmt.Errorf("no positive price for %s", assetID)
	}
	if !amount.IsPositive() {
		return nil, nil
	}

	totalUnits := acct.UnitsOf(assetID)
	if !totalUnits.IsPositive() {
		return nil, nil
	}

	unitsToSell := decimal.Min(amount.Div(price), totalUnits)

	if acct.EffectiveLotMethod() == domain.AverageCost {
		return consumeAverage(acct, assetID, unitsToSell, totalUnits, price, currentDate), nil
	}
	return consumeOrdered(acct, assetID, unitsToSell, price, currentDate), nil
}

// consumeAverage blends every lot into one position with a single average
// basis. The blended lot's holding period is the units-weighted average
// purchase date.
func consumeAverage(acct *domain.Account, assetID domain.AssetID, unitsToSell, totalUnits, price decimal.Decimal, currentDate time.Time) []LotSale {
	totalBasis := decimal.Zero
	weightedDays := decimal.Zero
	epoch := acct.Lots[0].PurchaseDate
	for _, lot := range acct.Lots {
		if lot.AssetID != assetID {
			continue
		}
		totalBasis = totalBasis.Add(lot.CostBasis)
		if lot.PurchaseDate.Before(epoch) {
			epoch = lot.PurchaseDate
		}
	}
	for _, lot := range acct.Lots {
		if lot.AssetID != assetID {
			continue
		}
		days := decimal.NewFromInt(int64(dateutil.DaysBetween(epoch, lot.PurchaseDate)))
		weightedDays = weightedDays.Add(days.Mul(lot.Units))
	}

	avgOffset := weightedDays.Div(totalUnits)
	avgDate := dateutil.AddDays(epoch, int(avgOffset.IntPart()))

	proportion := unitsToSell.Div(totalUnits)
	basisUsed := totalBasis.Mul(proportion)
	proceeds := unitsToSell.Mul(price)
	gain := proceeds.Sub(basisUsed)

	sale := LotSale{
		LotIndex:  -1,
		LotDate:   avgDate,
		Units:     unitsToSell,
		CostBasis: basisUsed,
		Proceeds:  proceeds,
	}
	if gain.IsPositive() {
		if dateutil.DaysBetween(avgDate, currentDate) >= longTermHoldingDays {
			sale.LongTermGain = gain
		} else {
			sale.ShortTermGain = gain
		}
	}
	return []LotSale{sale}
}

// consumeOrdered walks lots in the method's order, consuming whole lots
// until the last partial one.
func consumeOrdered(acct *domain.Account, assetID domain.AssetID, unitsToSell, price decimal.Decimal, currentDate time.Time) []LotSale {
	// sort positions, not copies, so each sale knows which lot it came from
	positions := make([]int, 0, len(acct.Lots))
	for i, lot := range acct.Lots {
		if lot.AssetID == assetID {
			positions = append(positions, i)
		}
	}

	lot := func(p int) domain.AssetLot { return acct.Lots[p] }
	switch acct.EffectiveLotMethod() {
	case domain.LIFO:
		sort.SliceStable(positions, func(i, j int) bool {
			return lot(positions[i]).PurchaseDate.After(lot(positions[j]).PurchaseDate)
		})
	case domain.HighestCost:
		sort.SliceStable(positions, func(i, j int) bool {
			return lot(positions[i]).CostPerUnit().GreaterThan(lot(positions[j]).CostPerUnit())
		})
	case domain.LowestCost:
		sort.SliceStable(positions, func(i, j int) bool {
			return lot(positions[i]).CostPerUnit().LessThan(lot(positions[j]).CostPerUnit())
		})
	default: // FIFO
		sort.SliceStable(positions, func(i, j int) bool {
			return lot(positions[i]).PurchaseDate.Before(lot(positions[j]).PurchaseDate)
		})
	}

	var sales []LotSale
	remaining := unitsToSell
	for _, pos := range positions {
		if !remaining.IsPositive() {
			break
		}
		lot := acct.Lots[pos]
		take := decimal.Min(remaining, lot.Units)
		fraction := take.Div(lot.Units)
		basisUsed := lot.CostBasis.Mul(fraction)
		proceeds := take.Mul(price)
		gain := proceeds.Sub(basisUsed)

		sale := LotSale{
			LotIndex:  pos,
			LotDate:   lot.PurchaseDate,
			Units:     take,
			CostBasis: basisUsed,
			Proceeds:  proceeds,
		}
		if gain.IsPositive() {
			if dateutil.DaysBetween(lot.PurchaseDate, currentDate) >= longTermHoldingDays {
				sale.LongTermGain = gain
			} else {
				sale.ShortTermGain = gain
			}
		}
		sales = append(sales, sale)
		remaining = remaining.Sub(take)
	}
	return sales
}

// lotDepletionEpsilon drops lots whose residual units are rounding dust
var lotDepletionEpsilon = decimal.New(1, -3)

// applyLotSales shrinks the account's lots per the planned sales
func applyLotSales(acct *domain.Account, assetID domain.AssetID, sales []LotSale) {
	if acct.EffectiveLotMethod() == domain.AverageCost && len(sales) == 1 {
		// proportional shave across every lot of the asset
		totalUnits := acct.UnitsOf(assetID)
		if !totalUnits.IsPositive() {
			return
		}
		proportion := sales[0].Units.Div(totalUnits)
		for i := range acct.Lots {
			if acct.Lots[i].AssetID != assetID {
				continue
			}
			acct.Lots[i].Units = acct.Lots[i].Units.Sub(acct.Lots[i].Units.Mul(proportion))
			acct.Lots[i].CostBasis = acct.Lots[i].CostBasis.Sub(acct.Lots[i].CostBasis.Mul(proportion))
		}
	} else {
		for _, sale := range sales {
			if sale.LotIndex < 0 || sale.LotIndex >= len(acct.Lots) {
				continue
			}
			lot := &acct.Lots[sale.LotIndex]
			lot.Units = lot.Units.Sub(sale.Units)
			lot.CostBasis = lot.CostBasis.Sub(sale.CostBasis)
		}
	}

	kept := acct.Lots[:0]
	for _, lot := range acct.Lots {
		if lot.AssetID == assetID && lot.Units.LessThanOrEqual(lotDepletionEpsilon) {
			continue
		}
		kept = append(kept, lot)
	}
	acct.Lots = kept
}

// Liquidate sells up to grossAmount of a position into the account's cash,
// applying taxes per the account's tax status. Returns the net cash that
// landed. A position too small to cover the request sells out fully.
func Liquidate(s *SimulationState, coord domain.AssetCoord, grossAmount decimal.Decimal, source *domain.EventID) (decimal.Decimal, error) {
	acct, ok := s.Accounts[coord.AccountID]
	if !ok {
		return decimal.Zero, fmt.Errorf("%s not found", coord.AccountID)
	}
	price, err := s.AssetPrice(coord.AssetID)
	if err != nil {
		return decimal.Zero, err
	}

	sales, err := ConsumeLots(acct, coord.AssetID, grossAmount, price, s.CurrentDate)
	if err != nil {
		return decimal.Zero, err
	}
	if len(sales) == 0 {
		return decimal.Zero, nil
	}

	applyLotSales(acct, coord.AssetID, sales)

	gross := decimal.Zero
	shortGain := decimal.Zero
	longGain := decimal.Zero
	for _, sale := range sales {
		gross = gross.Add(sale.Proceeds)
		shortGain = shortGain.Add(sale.ShortTermGain)
		longGain = longGain.Add(sale.LongTermGain)
		s.Record(source, domain.AssetSold{
			Coord:         coord,
			LotDate:       sale.LotDate,
			Units:         sale.Units,
			CostBasis:     sale.CostBasis,
			Proceeds:      sale.Proceeds,
			ShortTermGain: sale.ShortTermGain,
			LongTermGain:  sale.LongTermGain,
		})
	}

	net := gross
	switch acct.TaxStatus {
	case domain.Taxable:
		if shortGain.IsPositive() {
			fed, state := s.taxes.ShortTermGainsTax(shortGain, s.YTDTax.OrdinaryIncome)
			s.YTDTax.CapitalGains = s.YTDTax.CapitalGains.Add(shortGain)
			s.YTDTax.FederalTax = s.YTDTax.FederalTax.Add(fed)
			s.YTDTax.StateTax = s.YTDTax.StateTax.Add(state)
			net = net.Sub(fed).Sub(state)
			s.Record(source, domain.ShortTermGainsTaxed{GrossGain: shortGain, FederalTax: fed, StateTax: state})
		}
		if longGain.IsPositive() {
			fed, state := s.taxes.LongTermGainsTax(longGain)
			s.YTDTax.CapitalGains = s.YTDTax.CapitalGains.Add(longGain)
			s.YTDTax.FederalTax = s.YTDTax.FederalTax.Add(fed)
			s.YTDTax.StateTax = s.YTDTax.StateTax.Add(state)
			net = net.Sub(fed).Sub(state)
			s.Record(source, domain.LongTermGainsTaxed{GrossGain: longGain, FederalTax: fed, StateTax: state})
		}

	case domain.TaxDeferred:
		// the whole withdrawal is ordinary income
		fed, state := s.taxes.OrdinaryTax(gross, s.YTDTax.OrdinaryIncome)
		s.YTDTax.OrdinaryIncome = s.YTDTax.OrdinaryIncome.Add(gross)
		s.YTDTax.FederalTax = s.YTDTax.FederalTax.Add(fed)
		s.YTDTax.StateTax = s.YTDTax.StateTax.Add(state)
		net = net.Sub(fed).Sub(state)
		s.Record(source, domain.IncomeTaxed{GrossAmount: gross, FederalTax: fed, StateTax: state})

		if dateutil.IsBelowEarlyWithdrawalAge(s.BirthDate, s.CurrentDate) &&
			s.taxes.Config.EarlyWithdrawalPenaltyRate.IsPositive() {
			penalty := gross.Mul(s.taxes.Config.EarlyWithdrawalPenaltyRate)
			s.YTDTax.EarlyWithdrawalPenalties = s.YTDTax.EarlyWithdrawalPenalties.Add(penalty)
			net = net.Sub(penalty)
			s.Record(source, domain.EarlyWithdrawalPenalized{
				GrossAmount: gross,
				Penalty:     penalty,
				Rate:        s.taxes.Config.EarlyWithdrawalPenaltyRate,
			})
		}

	case domain.TaxFree:
		s.YTDTax.TaxFreeWithdrawals = s.YTDTax.TaxFreeWithdrawals.Add(gross)
	}

	acct.CashBalance = acct.CashBalance.Add(net)
	return net, nil
}

// GrossUpEstimator estimates the gross sale needed to net a target amount
// after taxes. Pluggable so strategies can trade accuracy for speed.
type GrossUpEstimator interface {
	EstimateGross(net decimal.Decimal, coord domain.AssetCoord, s *SimulationState) (decimal.Decimal, error)
}

// GainRatioEstimator scales the target by the position's embedded gain: the
// fraction of proceeds that is gain determines the effective tax drag. The
// multiplier is capped so a pathological basis cannot more than double the
// sale.
type GainRatioEstimator struct{}

func (GainRatioEstimator) EstimateGross(net decimal.Decimal, coord domain.AssetCoord, s *SimulationState) (decimal.Decimal, error) {
	acct, ok := s.Accounts[coord.AccountID]
	if !ok {
		return decimal.Zero, fmt.Errorf("%s not found", coord.AccountID)
	}
	price, err := s.AssetPrice(coord.AssetID)
	if err != nil {
		return decimal.Zero, err
	}

	totalUnits := acct.UnitsOf(coord.AssetID)
	if !totalUnits.IsPositive() || !price.IsPositive() {
		return net, nil
	}
	totalBasis := decimal.Zero
	for _, lot := range acct.Lots {
		if lot.AssetID == coord.AssetID {
			totalBasis = totalBasis.Add(lot.CostBasis)
		}
	}
	avgCost := totalBasis.Div(totalUnits)

	gainRatio := price.Sub(avgCost).Div(price)
	if gainRatio.IsNegative() {
		gainRatio = decimal.Zero
	}
	effectiveRate := gainRatio.Mul(s.taxes.Config.CapitalGainsRate.Add(s.taxes.Config.StateRate))

	floor := decimal.NewFromFloat(0.5)
	keep := decimal.Max(floor, decimal.NewFromInt(1).Sub(effectiveRate))
	return net.Div(keep), nil
}
