package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// AccountSnapshot is one account's value at a point in time
type AccountSnapshot struct {
	AccountID  AccountID
	Name       string
	TaxStatus  TaxStatus
	AssetClass AssetClass
	CashValue  decimal.Decimal
	AssetValue decimal.Decimal
	TotalValue decimal.Decimal
}

// WealthSnapshot captures every account's value on a date
type WealthSnapshot struct {
	Date     time.Time
	Accounts []AccountSnapshot
}

// NetWorth sums all account values in the snapshot
func (w WealthSnapshot) NetWorth() decimal.Decimal {
	total := decimal.Zero
	for _, a := range w.Accounts {
		total = total.Add(a.TotalValue)
	}
	return total
}

// WarningKind classifies non-fatal conditions hit during a run
type WarningKind string

const (
	// WarnIterationLimit means same-date event evaluation hit its cap,
	// usually a cyclic trigger chain
	WarnIterationLimit WarningKind = "iteration_limit"
	// WarnShortfall means an effect could not move its full amount
	WarnShortfall WarningKind = "shortfall"
)

// SimulationWarning is a non-fatal condition recorded during a run
type SimulationWarning struct {
	Kind    WarningKind
	Date    time.Time
	EventID *EventID
	Detail  string
}

// YearFlow is the money that crossed the plan boundary in one calendar year
type YearFlow struct {
	Year     int
	Inflows  decimal.Decimal
	Outflows decimal.Decimal
}

// SimulationResult is the complete output of one simulation run
type SimulationResult struct {
	Snapshots   []WealthSnapshot
	YearlyTaxes []TaxSummary
	Ledger      []LedgerRecord
	Warnings    []SimulationWarning

	// Money that crossed the plan boundary over the whole run, and the
	// same totals split by calendar year
	ExternalInflows  decimal.Decimal
	ExternalOutflows decimal.Decimal
	YearlyFlows      []YearFlow
}

// FinalNetWorth is the net worth at the last snapshot
func (r *SimulationResult) FinalNetWorth() decimal.Decimal {
	if len(r.Snapshots) == 0 {
		return decimal.Zero
	}
	return r.Snapshots[len(r.Snapshots)-1].NetWorth()
}

// FinalAccountBalance returns the last snapshotted value of an account
func (r *SimulationResult) FinalAccountBalance(id AccountID) (decimal.Decimal, bool) {
	if len(r.Snapshots) == 0 {
		return decimal.Zero, false
	}
	for _, a := range r.Snapshots[len(r.Snapshots)-1].Accounts {
		if a.AccountID == id {
			return a.TotalValue, true
		}
	}
	return decimal.Zero, false
}

// YearlyNetWorth returns net worth at each year-end snapshot
func (r *SimulationResult) YearlyNetWorth() []struct {
	Date  time.Time
	Value decimal.Decimal
} {
	var out []struct {
		Date  time.Time
		Value decimal.Decimal
	}
	for _, snap := range r.Snapshots {
		if snap.Date.Month() == time.December && snap.Date.Day() == 31 {
			out = append(out, struct {
				Date  time.Time
				Value decimal.Decimal
			}{snap.Date, snap.NetWorth()})
		}
	}
	return out
}

// RecordsOfKind filters the ledger by change kind
func (r *SimulationResult) RecordsOfKind(kind ChangeKind) []LedgerRecord {
	var out []LedgerRecord
	for _, rec := range r.Ledger {
		if rec.Change.Kind() == kind {
			out = append(out, rec)
		}
	}
	return out
}

// RecordsForAccount filters the ledger by touched account
func (r *SimulationResult) RecordsForAccount(id AccountID) []LedgerRecord {
	var out []LedgerRecord
	for _, rec := range r.Ledger {
		if acct, ok := AccountOf(rec.Change); ok && acct == id {
			out = append(out, rec)
		}
	}
	return out
}

// RecordsForEvent filters the ledger by originating event
func (r *SimulationResult) RecordsForEvent(id EventID) []LedgerRecord {
	var out []LedgerRecord
	for _, rec := range r.Ledger {
		if rec.SourceEvent != nil && *rec.SourceEvent == id {
			out = append(out, rec)
		}
	}
	return out
}

// EventWasTriggered reports whether an event fired at any point
func (r *SimulationResult) EventWasTriggered(id EventID) bool {
	for _, rec := range r.Ledger {
		if et, ok := rec.Change.(EventTriggered); ok && et.EventID == id {
			return true
		}
	}
	return false
}

// EventTriggerDate returns the first date an event fired
func (r *SimulationResult) EventTriggerDate(id EventID) (time.Time, bool) {
	for _, rec := range r.Ledger {
		if et, ok := rec.Change.(EventTriggered); ok && et.EventID == id {
			return rec.Date, true
		}
	}
	return time.Time{}, false
}

// PercentileRanges holds the spread of final net worth across iterations
type PercentileRanges struct {
	P10 decimal.Decimal
	P25 decimal.Decimal
	P50 decimal.Decimal
	P75 decimal.Decimal
	P90 decimal.Decimal
}

// GrowthComponents decomposes median final wealth into where it came from
type GrowthComponents struct {
	Principal     decimal.Decimal
	Contributions decimal.Decimal
	MarketGrowth  decimal.Decimal
	Withdrawals   decimal.Decimal
}

// IterationOutcome is the small per-run record kept across a batch. The
// year-end net worth trace stays so batches can be ranked date by date.
type IterationOutcome struct {
	Seed           uint64
	FinalNetWorth  decimal.Decimal
	YearlyNetWorth []decimal.Decimal
	Success        bool
}

// NetWorthBand is the cross-sectional percentile spread of net worth on one
// date, ranked independently of any single run's trajectory
type NetWorthBand struct {
	Date time.Time
	P10  decimal.Decimal
	P50  decimal.Decimal
	P90  decimal.Decimal
}

// YearGrowth decomposes one calendar year's change in net worth
type YearGrowth struct {
	Year          int
	StartNetWorth decimal.Decimal
	Contributions decimal.Decimal
	MarketGrowth  decimal.Decimal
	Withdrawals   decimal.Decimal
	EndNetWorth   decimal.Decimal
}

// MonteCarloResult aggregates a batch of independent runs
type MonteCarloResult struct {
	Iterations  []IterationOutcome
	SuccessRate decimal.Decimal
	Percentiles PercentileRanges
	Growth      GrowthComponents

	// Per-date percentile bands and the median run's per-year growth
	// decomposition
	Bands        []NetWorthBand
	YearlyGrowth []YearGrowth

	// Representative full results re-run at the percentile seeds
	MedianRun *SimulationResult
}
