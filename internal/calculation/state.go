package calculation

import (
	"fmt"
	"math/rand"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/finsim/plan-simulator/internal/domain"
	"github.com/finsim/plan-simulator/pkg/dateutil"
)

// SimulationState is one run's mutable world: the clock, the accounts, the
// sampled market, event runtime state, year-to-date taxes and the ledger.
// Event runtime state lives in dense slices indexed by EventID so the
// same-date fixed point loop stays cheap.
type SimulationState struct {
	StartDate   time.Time
	EndDate     time.Time
	BirthDate   time.Time
	CurrentDate time.Time

	Accounts map[domain.AccountID]*domain.Account
	Market   *Market

	events          []*domain.Event
	triggeredAt     []*time.Time
	nextDate        []*time.Time
	repeatingActive []*bool // nil = not started, true = active, false = paused
	terminated      []bool
	ended           []bool // repeating series that ran out
	occurrences     []int

	flowYTD      map[domain.EventID]decimal.Decimal
	flowLifetime map[domain.EventID]decimal.Decimal

	contributionsYTD map[domain.AccountID]decimal.Decimal
	contributionsMTD map[domain.AccountID]decimal.Decimal

	// yearEndBalances[year][account] snapshots Dec 31 tax-deferred values
	// for next year's required minimum distribution
	yearEndBalances map[int]map[domain.AccountID]decimal.Decimal
	rmdAccounts     map[domain.AccountID]int // account -> starting age

	YTDTax      domain.TaxSummary
	YearlyTaxes []domain.TaxSummary

	Ledger    []domain.LedgerRecord
	Warnings  []domain.SimulationWarning
	Snapshots []domain.WealthSnapshot

	// ExternalInflows and ExternalOutflows total the money that crossed the
	// plan boundary; the per-year maps split the same totals by calendar
	// year, feeding the growth decomposition
	ExternalInflows  decimal.Decimal
	ExternalOutflows decimal.Decimal
	inflowsByYear    map[int]decimal.Decimal
	outflowsByYear   map[int]decimal.Decimal

	pendingTriggers []domain.EventID
	collectLedger   bool

	taxes  *TaxCalculator
	rmd    domain.RMDTable
	logger Logger
}

// NewSimulationState builds a run's state from a validated plan and seed.
// The seed drives market sampling; two states with the same plan and seed
// are indistinguishable.
func NewSimulationState(plan *domain.Plan, seed uint64) (*SimulationState, error) {
	rng := rand.New(rand.NewSource(int64(seed)))

	market, err := NewMarket(plan, rng)
	if err != nil {
		return nil, fmt.Errorf("sampling market: %w", err)
	}

	accounts := make(map[domain.AccountID]*domain.Account, len(plan.Accounts))
	for i := range plan.Accounts {
		acct := plan.Accounts[i].Clone()
		accounts[acct.ID] = acct
	}

	size := int(plan.MaxEventID()) + 1
	s := &SimulationState{
		StartDate:   plan.StartDate,
		EndDate:     plan.EndDate(),
		BirthDate:   plan.BirthDate,
		CurrentDate: plan.StartDate,

		Accounts: accounts,
		Market:   market,

		events:          make([]*domain.Event, size),
		triggeredAt:     make([]*time.Time, size),
		nextDate:        make([]*time.Time, size),
		repeatingActive: make([]*bool, size),
		terminated:      make([]bool, size),
		ended:           make([]bool, size),
		occurrences:     make([]int, size),

		flowYTD:      make(map[domain.EventID]decimal.Decimal),
		flowLifetime: make(map[domain.EventID]decimal.Decimal),

		inflowsByYear:  make(map[int]decimal.Decimal),
		outflowsByYear: make(map[int]decimal.Decimal),

		contributionsYTD: make(map[domain.AccountID]decimal.Decimal),
		contributionsMTD: make(map[domain.AccountID]decimal.Decimal),

		yearEndBalances: make(map[int]map[domain.AccountID]decimal.Decimal),
		rmdAccounts:     make(map[domain.AccountID]int),

		YTDTax:        domain.NewTaxSummary(plan.StartDate.Year()),
		collectLedger: plan.CollectLedger,

		taxes:  NewTaxCalculator(plan.Taxes),
		rmd:    plan.RMDTable,
		logger: NopLogger{},
	}

	for i := range plan.Events {
		e := plan.Events[i]
		s.events[e.ID] = &e
	}

	return s, nil
}

// SetLogger sets the state's logger; nil restores the no-op logger
func (s *SimulationState) SetLogger(l Logger) {
	if l == nil {
		s.logger = NopLogger{}
		return
	}
	s.logger = l
}

// Record appends a change to the ledger when ledger collection is on
func (s *SimulationState) Record(source *domain.EventID, change domain.StateChange) {
	if !s.collectLedger {
		return
	}
	s.Ledger = append(s.Ledger, domain.LedgerRecord{
		Date:        s.CurrentDate,
		SourceEvent: source,
		Change:      change,
	})
}

// Warn records a non-fatal condition
func (s *SimulationState) Warn(kind domain.WarningKind, eventID *domain.EventID, detail string) {
	s.Warnings = append(s.Warnings, domain.SimulationWarning{
		Kind:    kind,
		Date:    s.CurrentDate,
		EventID: eventID,
		Detail:  detail,
	})
}

// Event returns the configured event for an id
func (s *SimulationState) Event(id domain.EventID) (*domain.Event, bool) {
	if int(id) >= len(s.events) || s.events[id] == nil {
		return nil, false
	}
	return s.events[id], true
}

// sortedEventIDs returns configured event ids in ascending order
func (s *SimulationState) sortedEventIDs() []domain.EventID {
	ids := make([]domain.EventID, 0, len(s.events))
	for i, e := range s.events {
		if e != nil {
			ids = append(ids, domain.EventID(i))
		}
	}
	return ids
}

// TriggeredAt returns when an event first fired
func (s *SimulationState) TriggeredAt(id domain.EventID) (time.Time, bool) {
	if int(id) >= len(s.triggeredAt) || s.triggeredAt[id] == nil {
		return time.Time{}, false
	}
	return *s.triggeredAt[id], true
}

func (s *SimulationState) setTriggered(id domain.EventID) {
	d := s.CurrentDate
	s.triggeredAt[id] = &d
	s.occurrences[id]++
}

// EventEnded reports whether an event can never fire again: it was
// terminated, or its repeating series ran out
func (s *SimulationState) EventEnded(id domain.EventID) bool {
	if int(id) >= len(s.ended) {
		return false
	}
	return s.ended[id] || s.terminated[id]
}

// recordExternalInflow tracks money entering the plan boundary
func (s *SimulationState) recordExternalInflow(amount decimal.Decimal) {
	if !amount.IsPositive() {
		return
	}
	s.ExternalInflows = s.ExternalInflows.Add(amount)
	year := s.CurrentDate.Year()
	s.inflowsByYear[year] = s.inflowsByYear[year].Add(amount)
}

// recordExternalOutflow tracks money leaving the plan boundary
func (s *SimulationState) recordExternalOutflow(amount decimal.Decimal) {
	if !amount.IsPositive() {
		return
	}
	s.ExternalOutflows = s.ExternalOutflows.Add(amount)
	year := s.CurrentDate.Year()
	s.outflowsByYear[year] = s.outflowsByYear[year].Add(amount)
}

// yearlyFlows flattens the per-year boundary flows, sorted by year
func (s *SimulationState) yearlyFlows() []domain.YearFlow {
	years := make(map[int]bool, len(s.inflowsByYear))
	for y := range s.inflowsByYear {
		years[y] = true
	}
	for y := range s.outflowsByYear {
		years[y] = true
	}
	out := make([]domain.YearFlow, 0, len(years))
	for y := range years {
		out = append(out, domain.YearFlow{
			Year:     y,
			Inflows:  s.inflowsByYear[y],
			Outflows: s.outflowsByYear[y],
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Year < out[j].Year })
	return out
}

// CurrentAge returns the plan owner's age in whole years and residual months
func (s *SimulationState) CurrentAge() (int, int) {
	return dateutil.AgeYearsMonths(s.BirthDate, s.CurrentDate)
}

// AssetPrice returns the current unit price of an asset
func (s *SimulationState) AssetPrice(id domain.AssetID) (decimal.Decimal, error) {
	price, ok := s.Market.AssetPrice(id, s.CurrentDate)
	if !ok {
		return decimal.Zero, fmt.Errorf("no price for %s", id)
	}
	return decimal.NewFromFloat(price), nil
}

// AccountTotalValue values an account: cash plus marked-to-market lots;
// liabilities value as negative principal.
func (s *SimulationState) AccountTotalValue(acct *domain.Account) decimal.Decimal {
	if acct.AssetClass == domain.Liability {
		return acct.CashBalance.Neg()
	}
	total := acct.CashBalance
	for _, lot := range acct.Lots {
		price, ok := s.Market.AssetPrice(lot.AssetID, s.CurrentDate)
		if !ok {
			continue
		}
		total = total.Add(lot.Units.Mul(decimal.NewFromFloat(price)))
	}
	return total
}

// AccountBalance returns an account's total value by id
func (s *SimulationState) AccountBalance(id domain.AccountID) (decimal.Decimal, error) {
	acct, ok := s.Accounts[id]
	if !ok {
		return decimal.Zero, fmt.Errorf("%s not found", id)
	}
	return s.AccountTotalValue(acct), nil
}

// AccountCashBalance returns an account's cash component by id
func (s *SimulationState) AccountCashBalance(id domain.AccountID) (decimal.Decimal, error) {
	acct, ok := s.Accounts[id]
	if !ok {
		return decimal.Zero, fmt.Errorf("%s not found", id)
	}
	return acct.CashBalance, nil
}

// AssetBalance returns the market value of one asset position
func (s *SimulationState) AssetBalance(coord domain.AssetCoord) (decimal.Decimal, error) {
	acct, ok := s.Accounts[coord.AccountID]
	if !ok {
		return decimal.Zero, fmt.Errorf("%s not found", coord.AccountID)
	}
	price, err := s.AssetPrice(coord.AssetID)
	if err != nil {
		return decimal.Zero, err
	}
	return acct.UnitsOf(coord.AssetID).Mul(price), nil
}

// NetWorth sums every account's value
func (s *SimulationState) NetWorth() decimal.Decimal {
	total := decimal.Zero
	for _, acct := range s.Accounts {
		total = total.Add(s.AccountTotalValue(acct))
	}
	return total
}

// SnapshotWealth appends a dated snapshot of every account, in id order so
// output is deterministic.
func (s *SimulationState) SnapshotWealth() {
	ids := make([]domain.AccountID, 0, len(s.Accounts))
	for id := range s.Accounts {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	snapshots := make([]domain.AccountSnapshot, 0, len(ids))
	for _, id := range ids {
		acct := s.Accounts[id]
		total := s.AccountTotalValue(acct)
		assetValue := total.Sub(acct.CashBalance)
		if acct.AssetClass == domain.Liability {
			assetValue = decimal.Zero
		}
		snapshots = append(snapshots, domain.AccountSnapshot{
			AccountID:  id,
			Name:       acct.Name,
			TaxStatus:  acct.TaxStatus,
			AssetClass: acct.AssetClass,
			CashValue:  acct.CashBalance,
			AssetValue: assetValue,
			TotalValue: total,
		})
	}

	s.Snapshots = append(s.Snapshots, domain.WealthSnapshot{
		Date:     s.CurrentDate,
		Accounts: snapshots,
	})
}

// PriorYearEndBalance returns last Dec 31's balance for an account
func (s *SimulationState) PriorYearEndBalance(id domain.AccountID) (decimal.Decimal, bool) {
	year := s.CurrentDate.Year() - 1
	balances, ok := s.yearEndBalances[year]
	if !ok {
		return decimal.Zero, false
	}
	bal, ok := balances[id]
	return bal, ok
}

// snapshotYearEndBalances captures tax-deferred balances every Dec 31
func (s *SimulationState) snapshotYearEndBalances() {
	year := s.CurrentDate.Year()
	balances := make(map[domain.AccountID]decimal.Decimal)
	for id, acct := range s.Accounts {
		if acct.TaxStatus == domain.TaxDeferred {
			balances[id] = s.AccountTotalValue(acct)
		}
	}
	s.yearEndBalances[year] = balances
}

// ContributionRoom returns how much more the account may receive this
// period, or false when the account is unlimited.
func (s *SimulationState) ContributionRoom(id domain.AccountID) (decimal.Decimal, bool) {
	acct, ok := s.Accounts[id]
	if !ok || acct.ContributionLimit == nil {
		return decimal.Zero, false
	}
	var contributed decimal.Decimal
	switch acct.ContributionLimit.Period {
	case domain.Monthly:
		contributed = s.contributionsMTD[id]
	default:
		contributed = s.contributionsYTD[id]
	}
	room := acct.ContributionLimit.Amount.Sub(contributed)
	if room.IsNegative() {
		room = decimal.Zero
	}
	return room, true
}

// RecordContribution clamps an inflow to the account's remaining room and
// tracks it. Returns the allowed amount.
func (s *SimulationState) RecordContribution(id domain.AccountID, amount decimal.Decimal) decimal.Decimal {
	room, limited := s.ContributionRoom(id)
	if !limited {
		return amount
	}
	allowed := decimal.Min(amount, room)
	acct := s.Accounts[id]
	switch acct.ContributionLimit.Period {
	case domain.Monthly:
		s.contributionsMTD[id] = s.contributionsMTD[id].Add(allowed)
	default:
		s.contributionsYTD[id] = s.contributionsYTD[id].Add(allowed)
	}
	return allowed
}

// FlowRoom returns the amount an event may still move under its limits
func (s *SimulationState) FlowRoom(id domain.EventID, limits *domain.FlowLimits) decimal.Decimal {
	unbounded := decimal.NewFromInt(1 << 62)
	if limits == nil {
		return unbounded
	}
	room := unbounded
	if limits.PerYear != nil {
		r := limits.PerYear.Sub(s.flowYTD[id])
		room = decimal.Min(room, r)
	}
	if limits.Lifetime != nil {
		r := limits.Lifetime.Sub(s.flowLifetime[id])
		room = decimal.Min(room, r)
	}
	if room.IsNegative() {
		return decimal.Zero
	}
	return room
}

// RecordFlow accumulates an event's moved amount against its limits
func (s *SimulationState) RecordFlow(id domain.EventID, amount decimal.Decimal) {
	s.flowYTD[id] = s.flowYTD[id].Add(amount)
	s.flowLifetime[id] = s.flowLifetime[id].Add(amount)
}

// FinalizeYearTaxes closes out the year-to-date summary into the yearly list
func (s *SimulationState) FinalizeYearTaxes() {
	if !s.YTDTax.HasActivity() {
		return
	}
	s.YTDTax.TotalTax = s.YTDTax.FederalTax.Add(s.YTDTax.StateTax)
	s.YearlyTaxes = append(s.YearlyTaxes, s.YTDTax)
}

// resetYearAccumulators starts a fresh tax year
func (s *SimulationState) resetYearAccumulators(year int) {
	s.YTDTax = domain.NewTaxSummary(year)
	s.flowYTD = make(map[domain.EventID]decimal.Decimal)
	s.contributionsYTD = make(map[domain.AccountID]decimal.Decimal)
}

// resetMonthAccumulators clears monthly contribution tracking
func (s *SimulationState) resetMonthAccumulators() {
	s.contributionsMTD = make(map[domain.AccountID]decimal.Decimal)
}
