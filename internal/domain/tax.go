package domain

import "github.com/shopspring/decimal"

// TaxBracket is one rung of a progressive schedule: income above Threshold
// (up to the next bracket's threshold) is taxed at Rate.
type TaxBracket struct {
	Threshold decimal.Decimal
	Rate      decimal.Decimal
}

// TaxConfig holds the plan's tax rules. Brackets must be sorted ascending by
// threshold with the first at zero; validation enforces this.
type TaxConfig struct {
	FederalBrackets  []TaxBracket
	StateRate        decimal.Decimal
	CapitalGainsRate decimal.Decimal

	// EarlyWithdrawalPenaltyRate applies to tax-deferred withdrawals before
	// age 59 and a half; typically 0.10
	EarlyWithdrawalPenaltyRate decimal.Decimal
}

// TaxSummary accumulates one calendar year of taxable activity
type TaxSummary struct {
	Year                     int
	OrdinaryIncome           decimal.Decimal
	CapitalGains             decimal.Decimal
	TaxFreeWithdrawals       decimal.Decimal
	FederalTax               decimal.Decimal
	StateTax                 decimal.Decimal
	TotalTax                 decimal.Decimal
	EarlyWithdrawalPenalties decimal.Decimal
}

// NewTaxSummary returns an empty summary for a year
func NewTaxSummary(year int) TaxSummary {
	return TaxSummary{
		Year:                     year,
		OrdinaryIncome:           decimal.Zero,
		CapitalGains:             decimal.Zero,
		TaxFreeWithdrawals:       decimal.Zero,
		FederalTax:               decimal.Zero,
		StateTax:                 decimal.Zero,
		TotalTax:                 decimal.Zero,
		EarlyWithdrawalPenalties: decimal.Zero,
	}
}

// HasActivity reports whether anything taxable happened this year
func (s TaxSummary) HasActivity() bool {
	return s.OrdinaryIncome.IsPositive() ||
		s.CapitalGains.IsPositive() ||
		s.TaxFreeWithdrawals.IsPositive() ||
		s.EarlyWithdrawalPenalties.IsPositive()
}
