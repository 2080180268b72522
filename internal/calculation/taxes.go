package calculation

/*
Tax model assumptions:
- Federal brackets are threshold-based: income above a bracket's threshold,
  up to the next threshold, is taxed at that bracket's rate.
- State tax is a flat rate on the same base.
- Short-term capital gains are taxed as ordinary income at the marginal
  rate given year-to-date income; long-term gains at a flat rate.
- Tax-deferred withdrawals are ordinary income in full.
- No filing-status variants, deductions or credits; the bracket table in
  the plan already reflects whatever deduction applies.
*/

import (
	"github.com/shopspring/decimal"

	"github.com/finsim/plan-simulator/internal/domain"
)

// TaxCalculator computes taxes against one plan's TaxConfig
type TaxCalculator struct {
	Config domain.TaxConfig
}

// NewTaxCalculator creates a tax calculator for a plan's tax rules
func NewTaxCalculator(config domain.TaxConfig) *TaxCalculator {
	return &TaxCalculator{Config: config}
}

// FederalTax walks the progressive brackets over the full taxable income
func (tc *TaxCalculator) FederalTax(taxableIncome decimal.Decimal) decimal.Decimal {
	if !taxableIncome.IsPositive() {
		return decimal.Zero
	}

	brackets := tc.Config.FederalBrackets
	tax := decimal.Zero
	for i, b := range brackets {
		if taxableIncome.LessThanOrEqual(b.Threshold) {
			break
		}
		upper := taxableIncome
		if i+1 < len(brackets) {
			upper = decimal.Min(taxableIncome, brackets[i+1].Threshold)
		}
		tax = tax.Add(upper.Sub(b.Threshold).Mul(b.Rate))
	}
	return tax
}

// MarginalFederalTax is the federal tax on additional income given what has
// already been earned this year: tax(ytd+additional) - tax(ytd).
func (tc *TaxCalculator) MarginalFederalTax(additional, ytdIncome decimal.Decimal) decimal.Decimal {
	if !additional.IsPositive() {
		return decimal.Zero
	}
	return tc.FederalTax(ytdIncome.Add(additional)).Sub(tc.FederalTax(ytdIncome))
}

// StateTax is the flat state tax on an amount
func (tc *TaxCalculator) StateTax(amount decimal.Decimal) decimal.Decimal {
	if !amount.IsPositive() {
		return decimal.Zero
	}
	return amount.Mul(tc.Config.StateRate)
}

// OrdinaryTax returns federal and state tax on additional ordinary income
func (tc *TaxCalculator) OrdinaryTax(additional, ytdIncome decimal.Decimal) (federal, state decimal.Decimal) {
	return tc.MarginalFederalTax(additional, ytdIncome), tc.StateTax(additional)
}

// ShortTermGainsTax taxes a short-term gain as ordinary income
func (tc *TaxCalculator) ShortTermGainsTax(gain, ytdIncome decimal.Decimal) (federal, state decimal.Decimal) {
	return tc.OrdinaryTax(gain, ytdIncome)
}

// LongTermGainsTax taxes a long-term gain at the flat capital gains rate
func (tc *TaxCalculator) LongTermGainsTax(gain decimal.Decimal) (federal, state decimal.Decimal) {
	if !gain.IsPositive() {
		return decimal.Zero, decimal.Zero
	}
	return gain.Mul(tc.Config.CapitalGainsRate), tc.StateTax(gain)
}

// GrossFromNet solves for the gross ordinary income that leaves the target
// net after federal and state taxes, walking the brackets from the current
// year-to-date position so each slice keeps its own rate.
func (tc *TaxCalculator) GrossFromNet(net, ytdIncome decimal.Decimal) decimal.Decimal {
	if !net.IsPositive() {
		return decimal.Zero
	}

	one := decimal.NewFromInt(1)
	brackets := tc.Config.FederalBrackets
	if len(brackets) == 0 {
		keep := one.Sub(tc.Config.StateRate)
		if !keep.IsPositive() {
			return net
		}
		return net.Div(keep)
	}

	gross := decimal.Zero
	remainingNet := net
	position := ytdIncome
	if position.IsNegative() {
		position = decimal.Zero
	}

	for i := range brackets {
		hasUpper := i+1 < len(brackets)
		var upper decimal.Decimal
		if hasUpper {
			upper = brackets[i+1].Threshold
			if position.GreaterThanOrEqual(upper) {
				continue
			}
		}

		keep := one.Sub(brackets[i].Rate).Sub(tc.Config.StateRate)
		if !keep.IsPositive() {
			// confiscatory bracket, nothing nets out past here
			break
		}

		if hasUpper {
			capacity := upper.Sub(position)
			netCapacity := capacity.Mul(keep)
			if remainingNet.GreaterThan(netCapacity) {
				gross = gross.Add(capacity)
				remainingNet = remainingNet.Sub(netCapacity)
				position = upper
				continue
			}
		}

		gross = gross.Add(remainingNet.Div(keep))
		return gross
	}

	return gross
}
