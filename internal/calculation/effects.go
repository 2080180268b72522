package calculation

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/finsim/plan-simulator/internal/domain"
	"github.com/finsim/plan-simulator/pkg/dateutil"
)

// ExecuteEffect runs one effect, mutating state and recording the ledger.
// Shortfalls are not errors: an effect that cannot move its full amount
// moves what it can and records a warning.
func ExecuteEffect(s *SimulationState, effect domain.EventEffect, eventID domain.EventID) error {
	src := &eventID

	switch e := effect.(type) {
	case domain.CreateAccountEffect:
		acct := e.Account.Clone()
		s.Accounts[acct.ID] = acct
		s.Record(src, domain.AccountCreated{AccountID: acct.ID, Name: acct.Name})
		return nil

	case domain.DeleteAccountEffect:
		delete(s.Accounts, e.AccountID)
		s.Record(src, domain.AccountDeleted{AccountID: e.AccountID})
		return nil

	case domain.TransferEffect:
		return executeTransfer(s, e, eventID)

	case domain.IncomeEffect:
		return executeIncome(s, e, eventID)

	case domain.ExpenseEffect:
		return executeExpense(s, e, eventID)

	case domain.LiquidateEffect:
		return executeLiquidate(s, e, eventID)

	case domain.PurchaseEffect:
		return executePurchase(s, e, eventID)

	case domain.SweepEffect:
		return executeSweep(s, e, eventID)

	case domain.WithdrawEffect:
		return executeWithdraw(s, e, eventID)

	case domain.TriggerEventEffect:
		s.pendingTriggers = append(s.pendingTriggers, e.EventID)
		return nil

	case domain.PauseEventEffect:
		paused := false
		s.repeatingActive[e.EventID] = &paused
		s.Record(src, domain.EventPaused{EventID: e.EventID})
		return nil

	case domain.ResumeEventEffect:
		active := true
		s.repeatingActive[e.EventID] = &active
		s.Record(src, domain.EventResumed{EventID: e.EventID})
		return nil

	case domain.TerminateEventEffect:
		s.terminated[e.EventID] = true
		s.repeatingActive[e.EventID] = nil
		s.nextDate[e.EventID] = nil
		s.Record(src, domain.EventTerminated{EventID: e.EventID})
		return nil

	case domain.CreateRMDWithdrawalEffect:
		s.rmdAccounts[e.AccountID] = e.StartAge
		return nil

	case domain.ApplyRMDEffect:
		return executeApplyRMD(s, eventID)

	case domain.AdjustBalanceEffect:
		return executeAdjustBalance(s, e, eventID)

	default:
		return fmt.Errorf("unknown effect %T", effect)
	}
}

// creditCash adds cash to an account. Crediting a liability pays down its
// principal instead, clamped at zero. Contribution limits clamp the inflow;
// the actual credited amount is returned.
func creditCash(s *SimulationState, id domain.AccountID, amount decimal.Decimal, src *domain.EventID) (decimal.Decimal, error) {
	acct, ok := s.Accounts[id]
	if !ok {
		return decimal.Zero, fmt.Errorf("%s not found", id)
	}
	if !amount.IsPositive() {
		return decimal.Zero, nil
	}

	if acct.AssetClass == domain.Liability {
		previous := acct.CashBalance
		principal := acct.CashBalance.Sub(amount)
		if principal.IsNegative() {
			principal = decimal.Zero
		}
		applied := previous.Sub(principal)
		acct.CashBalance = principal
		s.Record(src, domain.BalanceAdjusted{
			AccountID: id,
			Previous:  previous,
			New:       principal,
			Delta:     applied.Neg(),
		})
		return applied, nil
	}

	allowed := s.RecordContribution(id, amount)
	if !allowed.IsPositive() {
		return decimal.Zero, nil
	}
	acct.CashBalance = acct.CashBalance.Add(allowed)
	s.Record(src, domain.CashCredit{To: id, Amount: allowed})
	return allowed, nil
}

// debitCash removes cash from an account, clamped to what is there. The
// actual debited amount is returned.
func debitCash(s *SimulationState, id domain.AccountID, amount decimal.Decimal, src *domain.EventID) (decimal.Decimal, error) {
	acct, ok := s.Accounts[id]
	if !ok {
		return decimal.Zero, fmt.Errorf("%s not found", id)
	}
	if !amount.IsPositive() {
		return decimal.Zero, nil
	}
	actual := decimal.Min(amount, acct.CashBalance)
	if !actual.IsPositive() {
		return decimal.Zero, nil
	}
	acct.CashBalance = acct.CashBalance.Sub(actual)
	s.Record(src, domain.CashDebit{From: id, Amount: actual})
	return actual, nil
}

// inflationAdjust scales a nominal amount to the price level of the current
// date, so flagged effects keep their purchasing power across the run
func inflationAdjust(s *SimulationState, amount decimal.Decimal) decimal.Decimal {
	return amount.Mul(decimal.NewFromFloat(s.Market.InflationFactor(s.CurrentDate)))
}

func executeTransfer(s *SimulationState, e domain.TransferEffect, eventID domain.EventID) error {
	src := &eventID

	if _, fromExt := e.From.(domain.ExternalEndpoint); fromExt {
		if _, toExt := e.To.(domain.ExternalEndpoint); toExt {
			return fmt.Errorf("transfer from external to external")
		}
	}

	amount, err := EvaluateAmount(e.Amount, e.From, e.To, s)
	if err != nil {
		return err
	}
	if e.AdjustForInflation {
		amount = inflationAdjust(s, amount)
	}
	amount = decimal.Min(amount, s.FlowRoom(eventID, e.Limits))
	amount = decimal.Min(amount, destinationCapacity(s, e.To))
	if !amount.IsPositive() {
		return nil
	}

	// pull the cash out of the source
	var available decimal.Decimal
	switch from := e.From.(type) {
	case domain.ExternalEndpoint:
		available = amount
	case domain.AccountEndpoint:
		available, err = debitCash(s, from.AccountID, amount, src)
		if err != nil {
			return err
		}
	case domain.AssetEndpoint:
		available, err = Liquidate(s, from.Coord, amount, src)
		if err != nil {
			return err
		}
		if available.IsPositive() {
			// liquidation parks cash in the owning account; move it on
			available, err = debitCash(s, from.Coord.AccountID, available, src)
			if err != nil {
				return err
			}
		}
	}

	if available.LessThan(amount) {
		s.Warn(domain.WarnShortfall, &eventID,
			fmt.Sprintf("transfer wanted %s, moved %s", amount.StringFixed(2), available.StringFixed(2)))
	}
	if !available.IsPositive() {
		return nil
	}

	// land it at the destination
	switch to := e.To.(type) {
	case domain.ExternalEndpoint:
		s.recordExternalOutflow(available)
	case domain.AccountEndpoint:
		credited, err := creditCash(s, to.AccountID, available, src)
		if err != nil {
			return err
		}
		if _, fromExt := e.From.(domain.ExternalEndpoint); fromExt {
			s.recordExternalInflow(credited)
		}
	case domain.AssetEndpoint:
		if err := purchaseUnits(s, to.Coord, available, src); err != nil {
			return err
		}
	}

	s.RecordFlow(eventID, available)
	return nil
}

// destinationCapacity bounds what a destination can absorb, so a transfer
// never debits its source for money the other side must refuse. A liability
// absorbs at most its outstanding principal; a contribution-limited account
// its remaining room.
func destinationCapacity(s *SimulationState, to domain.TransferEndpoint) decimal.Decimal {
	ep, ok := to.(domain.AccountEndpoint)
	if !ok {
		return decimal.NewFromInt(1 << 62)
	}
	capacity := decimal.NewFromInt(1 << 62)
	if acct, found := s.Accounts[ep.AccountID]; found && acct.AssetClass == domain.Liability {
		capacity = acct.CashBalance
	}
	if room, limited := s.ContributionRoom(ep.AccountID); limited {
		capacity = decimal.Min(capacity, room)
	}
	return capacity
}

func executeIncome(s *SimulationState, e domain.IncomeEffect, eventID domain.EventID) error {
	src := &eventID
	to := domain.AccountEndpoint{AccountID: e.To}
	amount, err := EvaluateAmount(e.Amount, domain.ExternalEndpoint{}, to, s)
	if err != nil {
		return err
	}
	if e.AdjustForInflation {
		amount = inflationAdjust(s, amount)
	}
	amount = decimal.Min(amount, s.FlowRoom(eventID, e.Limits))
	amount = decimal.Min(amount, destinationCapacity(s, to))
	if !amount.IsPositive() {
		return nil
	}

	var gross decimal.Decimal
	if e.Mode == domain.Net {
		gross = s.taxes.GrossFromNet(amount, s.YTDTax.OrdinaryIncome)
	} else {
		gross = amount
	}

	fed, state := s.taxes.OrdinaryTax(gross, s.YTDTax.OrdinaryIncome)
	s.YTDTax.OrdinaryIncome = s.YTDTax.OrdinaryIncome.Add(gross)
	s.YTDTax.FederalTax = s.YTDTax.FederalTax.Add(fed)
	s.YTDTax.StateTax = s.YTDTax.StateTax.Add(state)
	s.Record(src, domain.IncomeTaxed{GrossAmount: gross, FederalTax: fed, StateTax: state})

	net := gross.Sub(fed).Sub(state)
	credited, err := creditCash(s, e.To, net, src)
	if err != nil {
		return err
	}
	s.recordExternalInflow(credited)
	s.RecordFlow(eventID, gross)
	return nil
}

func executeExpense(s *SimulationState, e domain.ExpenseEffect, eventID domain.EventID) error {
	src := &eventID
	from := domain.AccountEndpoint{AccountID: e.From}
	amount, err := EvaluateAmount(e.Amount, from, domain.ExternalEndpoint{}, s)
	if err != nil {
		return err
	}
	if e.AdjustForInflation {
		amount = inflationAdjust(s, amount)
	}
	amount = decimal.Min(amount, s.FlowRoom(eventID, e.Limits))
	if !amount.IsPositive() {
		return nil
	}

	actual, err := debitCash(s, e.From, amount, src)
	if err != nil {
		return err
	}
	if actual.LessThan(amount) {
		s.Warn(domain.WarnShortfall, &eventID,
			fmt.Sprintf("expense wanted %s, paid %s", amount.StringFixed(2), actual.StringFixed(2)))
	}
	s.recordExternalOutflow(actual)
	s.RecordFlow(eventID, actual)
	return nil
}

func executeLiquidate(s *SimulationState, e domain.LiquidateEffect, eventID domain.EventID) error {
	from := domain.AssetEndpoint{Coord: e.Coord}
	to := domain.AccountEndpoint{AccountID: e.Coord.AccountID}
	amount, err := EvaluateAmount(e.Amount, from, to, s)
	if err != nil {
		return err
	}
	if !amount.IsPositive() {
		return nil
	}

	gross := amount
	if e.Mode == domain.Net {
		gross, err = defaultGrossUp.EstimateGross(amount, e.Coord, s)
		if err != nil {
			return err
		}
	}

	if _, err := Liquidate(s, e.Coord, gross, &eventID); err != nil {
		return err
	}
	return nil
}

// defaultGrossUp estimates gross sales for net-mode liquidations
var defaultGrossUp GrossUpEstimator = GainRatioEstimator{}

// purchaseUnits converts cash already in hand into a new lot
func purchaseUnits(s *SimulationState, coord domain.AssetCoord, amount decimal.Decimal, src *domain.EventID) error {
	acct, ok := s.Accounts[coord.AccountID]
	if !ok {
		return fmt.Errorf("%s not found", coord.AccountID)
	}
	if !acct.HoldsAssets() {
		return fmt.Errorf("%s cannot hold assets", coord.AccountID)
	}
	price, err := s.AssetPrice(coord.AssetID)
	if err != nil {
		return err
	}
	if !price.IsPositive() {
		return fmt.Errorf("no positive price for %s", coord.AssetID)
	}

	units := amount.Div(price)
	acct.Lots = append(acct.Lots, domain.AssetLot{
		AssetID:      coord.AssetID,
		PurchaseDate: s.CurrentDate,
		Units:        units,
		CostBasis:    amount,
	})
	s.Record(src, domain.AssetPurchased{
		Coord:        coord,
		Units:        units,
		CostBasis:    amount,
		PricePerUnit: price,
	})
	return nil
}

func executePurchase(s *SimulationState, e domain.PurchaseEffect, eventID domain.EventID) error {
	src := &eventID
	from := domain.AccountEndpoint{AccountID: e.Coord.AccountID}
	to := domain.AssetEndpoint{Coord: e.Coord}
	amount, err := EvaluateAmount(e.Amount, from, to, s)
	if err != nil {
		return err
	}
	if !amount.IsPositive() {
		return nil
	}

	actual, err := debitCash(s, e.Coord.AccountID, amount, src)
	if err != nil {
		return err
	}
	if actual.LessThan(amount) {
		s.Warn(domain.WarnShortfall, &eventID,
			fmt.Sprintf("purchase wanted %s, funded %s", amount.StringFixed(2), actual.StringFixed(2)))
	}
	if !actual.IsPositive() {
		return nil
	}
	return purchaseUnits(s, e.Coord, actual, src)
}

func executeSweep(s *SimulationState, e domain.SweepEffect, eventID domain.EventID) error {
	src := &eventID
	for _, sourceID := range e.Sources {
		acct, ok := s.Accounts[sourceID]
		if !ok {
			return fmt.Errorf("%s not found", sourceID)
		}

		// sell out every position
		for _, assetID := range heldAssetIDs(acct) {
			coord := domain.AssetCoord{AccountID: sourceID, AssetID: assetID}
			value, err := s.AssetBalance(coord)
			if err != nil {
				return err
			}
			if value.IsPositive() {
				if _, err := Liquidate(s, coord, value, src); err != nil {
					return err
				}
			}
		}

		// then move all cash to the destination
		moved, err := debitCash(s, sourceID, acct.CashBalance, src)
		if err != nil {
			return err
		}
		if moved.IsPositive() {
			if _, err := creditCash(s, e.Destination, moved, src); err != nil {
				return err
			}
			s.RecordFlow(eventID, moved)
		}
	}
	return nil
}

// heldAssetIDs returns the distinct assets in an account, ascending
func heldAssetIDs(acct *domain.Account) []domain.AssetID {
	seen := make(map[domain.AssetID]bool)
	var ids []domain.AssetID
	for _, lot := range acct.Lots {
		if !seen[lot.AssetID] {
			seen[lot.AssetID] = true
			ids = append(ids, lot.AssetID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// ResolveWithdrawalSources orders the accounts a withdrawal may draw on.
// Illiquid accounts never qualify. Ties within a priority class break by
// ascending account id so runs are deterministic.
func ResolveWithdrawalSources(s *SimulationState, sources domain.WithdrawalSources) []domain.AccountID {
	excluded := make(map[domain.AccountID]bool, len(sources.Exclude))
	for _, id := range sources.Exclude {
		excluded[id] = true
	}

	if sources.Strategy == domain.CustomOrder {
		var out []domain.AccountID
		for _, id := range sources.Order {
			if acct, ok := s.Accounts[id]; ok && acct.IsLiquid() && !excluded[id] {
				out = append(out, id)
			}
		}
		return out
	}

	var eligible []domain.AccountID
	for id, acct := range s.Accounts {
		if acct.IsLiquid() && !excluded[id] {
			eligible = append(eligible, id)
		}
	}

	priority := func(status domain.TaxStatus) int {
		switch sources.Strategy {
		case domain.TaxDeferredFirst:
			switch status {
			case domain.TaxDeferred:
				return 0
			case domain.Taxable:
				return 1
			default:
				return 2
			}
		case domain.TaxFreeFirst:
			switch status {
			case domain.TaxFree:
				return 0
			case domain.Taxable:
				return 1
			default:
				return 2
			}
		default: // TaxEfficientEarly and ProRata share the stable base order
			switch status {
			case domain.Taxable:
				return 0
			case domain.TaxDeferred:
				return 1
			default:
				return 2
			}
		}
	}

	sort.Slice(eligible, func(i, j int) bool {
		pi := priority(s.Accounts[eligible[i]].TaxStatus)
		pj := priority(s.Accounts[eligible[j]].TaxStatus)
		if pi != pj {
			return pi < pj
		}
		return eligible[i] < eligible[j]
	})
	return eligible
}

// withholdDeferredDistribution taxes cash leaving a tax-deferred account as
// ordinary income, withheld from the distribution itself. Returns the total
// withheld so the caller can settle it against the distribution. Proceeds of
// lot liquidations are not run through here: Liquidate already taxed them at
// sale.
func withholdDeferredDistribution(s *SimulationState, acct *domain.Account, gross decimal.Decimal, src *domain.EventID) decimal.Decimal {
	if acct.TaxStatus != domain.TaxDeferred || !gross.IsPositive() {
		if acct.TaxStatus == domain.TaxFree && gross.IsPositive() {
			s.YTDTax.TaxFreeWithdrawals = s.YTDTax.TaxFreeWithdrawals.Add(gross)
		}
		return decimal.Zero
	}

	fed, state := s.taxes.OrdinaryTax(gross, s.YTDTax.OrdinaryIncome)
	s.YTDTax.OrdinaryIncome = s.YTDTax.OrdinaryIncome.Add(gross)
	s.YTDTax.FederalTax = s.YTDTax.FederalTax.Add(fed)
	s.YTDTax.StateTax = s.YTDTax.StateTax.Add(state)
	s.Record(src, domain.IncomeTaxed{GrossAmount: gross, FederalTax: fed, StateTax: state})
	withheld := fed.Add(state)

	if dateutil.IsBelowEarlyWithdrawalAge(s.BirthDate, s.CurrentDate) &&
		s.taxes.Config.EarlyWithdrawalPenaltyRate.IsPositive() {
		penalty := gross.Mul(s.taxes.Config.EarlyWithdrawalPenaltyRate)
		s.YTDTax.EarlyWithdrawalPenalties = s.YTDTax.EarlyWithdrawalPenalties.Add(penalty)
		s.Record(src, domain.EarlyWithdrawalPenalized{
			GrossAmount: gross,
			Penalty:     penalty,
			Rate:        s.taxes.Config.EarlyWithdrawalPenaltyRate,
		})
		withheld = withheld.Add(penalty)
	}
	return withheld
}

// maxWithholdingPasses bounds the gross-up loop in drainAccount; the residue
// shrinks by the marginal rate each pass, so this is far more than enough
const maxWithholdingPasses = 24

// cashEpsilon is the residue below which a request counts as satisfied
var cashEpsilon = decimal.New(5, -3)

// drainAccount pulls up to amount of spendable cash out of one account and
// out of the plan, liquidating positions as needed. Tax withheld on deferred
// distributions leaves the plan too but does not count toward the request, so
// covering it takes extra gross; the return is the net that was delivered.
func drainAccount(s *SimulationState, id domain.AccountID, amount decimal.Decimal, src *domain.EventID) (decimal.Decimal, error) {
	acct, ok := s.Accounts[id]
	if !ok {
		return decimal.Zero, fmt.Errorf("%s not found", id)
	}

	drained := decimal.Zero
	remaining := amount

	for pass := 0; remaining.IsPositive() && pass < maxWithholdingPasses; pass++ {
		take, err := debitCash(s, id, remaining, src)
		if err != nil {
			return decimal.Zero, err
		}
		if !take.IsPositive() {
			break
		}
		withheld := withholdDeferredDistribution(s, acct, take, src)
		s.recordExternalOutflow(withheld)
		drained = drained.Add(take.Sub(withheld))
		remaining = remaining.Sub(take.Sub(withheld))
		if !withheld.IsPositive() {
			break
		}
	}

	for _, assetID := range heldAssetIDs(acct) {
		if !remaining.IsPositive() {
			break
		}
		coord := domain.AssetCoord{AccountID: id, AssetID: assetID}
		gross, err := defaultGrossUp.EstimateGross(remaining, coord, s)
		if err != nil {
			return drained, err
		}
		if _, err := Liquidate(s, coord, gross, src); err != nil {
			return drained, err
		}
		// Liquidate already settled the sale's taxes, so this cash is net
		take, err := debitCash(s, id, remaining, src)
		if err != nil {
			return drained, err
		}
		drained = drained.Add(take)
		remaining = remaining.Sub(take)
	}

	return drained, nil
}

func executeWithdraw(s *SimulationState, e domain.WithdrawEffect, eventID domain.EventID) error {
	src := &eventID
	amount, err := EvaluateAmount(e.Amount, domain.ExternalEndpoint{}, domain.ExternalEndpoint{}, s)
	if err != nil {
		return err
	}
	if !amount.IsPositive() {
		return nil
	}

	order := ResolveWithdrawalSources(s, e.Sources)
	remaining := amount

	if e.Sources.Strategy == domain.ProRata && len(order) > 0 {
		total := decimal.Zero
		balances := make(map[domain.AccountID]decimal.Decimal, len(order))
		for _, id := range order {
			bal, err := s.AccountBalance(id)
			if err != nil {
				return err
			}
			if bal.IsPositive() {
				balances[id] = bal
				total = total.Add(bal)
			}
		}
		if total.IsPositive() {
			for _, id := range order {
				bal, ok := balances[id]
				if !ok {
					continue
				}
				share := amount.Mul(bal).Div(total)
				drained, err := drainAccount(s, id, decimal.Min(share, remaining), src)
				if err != nil {
					return err
				}
				remaining = remaining.Sub(drained)
			}
		}
	}

	// sequential pass covers the ordered strategies and mops up any pro
	// rata rounding residue
	for _, id := range order {
		if !remaining.IsPositive() {
			break
		}
		drained, err := drainAccount(s, id, remaining, src)
		if err != nil {
			return err
		}
		remaining = remaining.Sub(drained)
	}

	moved := amount.Sub(remaining)
	if remaining.GreaterThan(cashEpsilon) {
		s.Warn(domain.WarnShortfall, &eventID,
			fmt.Sprintf("withdrawal wanted %s, raised %s", amount.StringFixed(2), moved.StringFixed(2)))
	}
	s.recordExternalOutflow(moved)
	s.RecordFlow(eventID, moved)
	return nil
}

// executeApplyRMD runs this year's required distribution for every account
// registered by CreateRMDWithdrawal. The distribution is a forced taxable
// withdrawal out of the plan.
func executeApplyRMD(s *SimulationState, eventID domain.EventID) error {
	src := &eventID
	years, _ := s.CurrentAge()

	ids := make([]domain.AccountID, 0, len(s.rmdAccounts))
	for id := range s.rmdAccounts {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		startAge := s.rmdAccounts[id]
		if years < startAge {
			continue
		}
		divisor, ok := s.rmd.DivisorForAge(years)
		if !ok {
			continue
		}
		balance, ok := s.PriorYearEndBalance(id)
		if !ok || !balance.IsPositive() {
			continue
		}

		required := balance.Div(decimal.NewFromFloat(divisor))
		actual, err := drainAccount(s, id, required, src)
		if err != nil {
			return err
		}
		if required.Sub(actual).GreaterThan(cashEpsilon) {
			s.Warn(domain.WarnShortfall, &eventID,
				fmt.Sprintf("rmd on %s required %s, withdrew %s", id, required.StringFixed(2), actual.StringFixed(2)))
		}
		s.recordExternalOutflow(actual)

		s.Record(src, domain.RMDWithdrawn{
			AccountID:        id,
			Age:              years,
			PriorYearBalance: balance,
			Divisor:          divisor,
			RequiredAmount:   required,
			ActualAmount:     actual,
		})
	}
	return nil
}

func executeAdjustBalance(s *SimulationState, e domain.AdjustBalanceEffect, eventID domain.EventID) error {
	acct, ok := s.Accounts[e.AccountID]
	if !ok {
		return fmt.Errorf("%s not found", e.AccountID)
	}
	previous := acct.CashBalance
	next := previous.Add(e.Delta)
	// principal cannot go negative, a loan never overpays into an asset
	if acct.AssetClass == domain.Liability && next.IsNegative() {
		next = decimal.Zero
	}
	acct.CashBalance = next
	s.Record(&eventID, domain.BalanceAdjusted{
		AccountID: e.AccountID,
		Previous:  previous,
		New:       next,
		Delta:     next.Sub(previous),
	})
	return nil
}
