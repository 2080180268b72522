package calculation

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/finsim/plan-simulator/internal/domain"
	"github.com/finsim/plan-simulator/pkg/dateutil"
)

// maxSameDateIterations caps the same-date event fixed point. A plan whose
// events re-trigger each other endlessly gets a warning, not a hang.
const maxSameDateIterations = 1000

// maxChainedTriggerDepth caps how far TriggerEvent chains may cascade
// within a single pass
const maxChainedTriggerDepth = 10

// Engine runs one plan through time. Engines are cheap; Monte Carlo creates
// one per iteration so nothing is shared between parallel runs.
type Engine struct {
	Plan   *domain.Plan
	Logger Logger
}

// NewEngine creates an engine for a validated plan
func NewEngine(plan *domain.Plan) *Engine {
	return &Engine{Plan: plan, Logger: NopLogger{}}
}

// SetLogger sets the engine's logger. Nil restores the no-op logger.
func (e *Engine) SetLogger(l Logger) {
	if l == nil {
		e.Logger = NopLogger{}
		return
	}
	e.Logger = l
}

// Run simulates the plan from start to end under one seed and returns the
// complete result. The same plan and seed always produce the same result.
func (e *Engine) Run(ctx context.Context, seed uint64) (*domain.SimulationResult, error) {
	state, err := NewSimulationState(e.Plan, seed)
	if err != nil {
		return nil, fmt.Errorf("initializing state: %w", err)
	}
	state.SetLogger(e.Logger)

	state.SnapshotWealth()
	lastGrowth := state.CurrentDate
	lastSnapshot := state.CurrentDate
	firedToday := make(map[domain.EventID]bool)

	// events may already be due on day one
	e.processEvents(state, firedToday)

	// EndDate is exclusive: the last simulated day is the one before it
	finalDay := dateutil.AddDays(state.EndDate, -1)
	for state.CurrentDate.Before(finalDay) {
		prev := state.CurrentDate
		state.CurrentDate = dateutil.AddDays(state.CurrentDate, 1)
		day := state.CurrentDate

		if day.Year() != prev.Year() {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			state.Record(nil, domain.YearRollover{FromYear: prev.Year(), ToYear: day.Year()})
			state.FinalizeYearTaxes()
			state.resetYearAccumulators(day.Year())
		}
		if day.Day() == 1 {
			state.resetMonthAccumulators()
		}

		// growth accrues in monthly slices; prices move daily on their own
		if day.Day() == 1 || dateutil.IsYearEnd(day) {
			applyPeriodGrowth(state, lastGrowth, day)
			lastGrowth = day
		}

		for k := range firedToday {
			delete(firedToday, k)
		}
		e.processEvents(state, firedToday)

		if dateutil.IsYearEnd(day) {
			state.snapshotYearEndBalances()
			state.SnapshotWealth()
			lastSnapshot = day
		} else if day.Day() == 1 && isQuarterStart(day.Month()) {
			state.Record(nil, domain.TimeAdvance{
				From: lastSnapshot, To: day,
				Days: dateutil.DaysBetween(lastSnapshot, day),
			})
			state.SnapshotWealth()
			lastSnapshot = day
		}
	}

	applyPeriodGrowth(state, lastGrowth, state.CurrentDate)
	state.FinalizeYearTaxes()
	state.SnapshotWealth()

	return &domain.SimulationResult{
		Snapshots:        state.Snapshots,
		YearlyTaxes:      state.YearlyTaxes,
		Ledger:           state.Ledger,
		Warnings:         state.Warnings,
		ExternalInflows:  state.ExternalInflows,
		ExternalOutflows: state.ExternalOutflows,
		YearlyFlows:      state.yearlyFlows(),
	}, nil
}

func isQuarterStart(m time.Month) bool {
	return m == time.January || m == time.April || m == time.July || m == time.October
}

// applyPeriodGrowth compounds cash interest and liability interest over the
// elapsed days. Asset lots need no touch: their value follows the sampled
// price path.
func applyPeriodGrowth(s *SimulationState, from, to time.Time) {
	days := dateutil.DaysBetween(from, to)
	if days <= 0 {
		return
	}

	ids := make([]domain.AccountID, 0, len(s.Accounts))
	for id := range s.Accounts {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		acct := s.Accounts[id]
		if acct.ReturnProfile == nil {
			continue
		}
		multiplier := s.Market.PeriodMultiplier(*acct.ReturnProfile, from, to)
		if multiplier == 1.0 || acct.CashBalance.IsZero() {
			continue
		}
		rate, _ := s.Market.YearlyRate(*acct.ReturnProfile, from)
		previous := acct.CashBalance
		next := previous.Mul(decimal.NewFromFloat(multiplier))
		acct.CashBalance = next

		if acct.AssetClass == domain.Liability {
			s.Record(nil, domain.LiabilityInterest{
				AccountID: id, Previous: previous, New: next, Rate: rate, Days: days,
			})
		} else {
			s.Record(nil, domain.CashAppreciation{
				AccountID: id, Previous: previous, New: next, Rate: rate, Days: days,
			})
		}
	}
}

// processEvents evaluates every event against the current date and repeats
// until no further event fires, so same-date chains (a transfer pushing a
// balance past another event's threshold) settle before time moves on.
func (e *Engine) processEvents(s *SimulationState, firedToday map[domain.EventID]bool) {
	for iteration := 0; ; iteration++ {
		if iteration >= maxSameDateIterations {
			s.Warn(domain.WarnIterationLimit, nil,
				fmt.Sprintf("event evaluation did not settle after %d passes", maxSameDateIterations))
			e.Logger.Warnf("iteration limit hit on %s", s.CurrentDate.Format("2006-01-02"))
			return
		}
		if !e.processOnePass(s, firedToday) {
			return
		}
	}
}

// processOnePass evaluates each event once and drains chained triggers.
// Reports whether anything fired.
func (e *Engine) processOnePass(s *SimulationState, firedToday map[domain.EventID]bool) bool {
	fired := false

	for _, id := range s.sortedEventIDs() {
		event, _ := s.Event(id)
		if s.terminated[id] || firedToday[id] {
			continue
		}
		if _, wasTriggered := s.TriggeredAt(id); wasTriggered && event.Once {
			if _, repeating := event.Trigger.(domain.RepeatingTrigger); !repeating {
				continue
			}
		}

		outcome, err := EvaluateTrigger(id, event.Trigger, s)
		if err != nil {
			e.Logger.Errorf("evaluating trigger for %s: %v", id, err)
			continue
		}

		shouldFire := false
		switch outcome.Kind {
		case Triggered:
			shouldFire = true
		case StartRepeating:
			active := true
			s.repeatingActive[id] = &active
			next := outcome.Next
			s.nextDate[id] = &next
			shouldFire = true
		case TriggerRepeating:
			next := outcome.Next
			s.nextDate[id] = &next
			shouldFire = true
		case StopRepeating:
			s.repeatingActive[id] = nil
			s.nextDate[id] = nil
			s.ended[id] = true
		}

		if shouldFire {
			e.fireEvent(s, event, firedToday)
			fired = true
		}
	}

	if e.drainPendingTriggers(s, firedToday) {
		fired = true
	}
	return fired
}

// fireEvent records the trigger and executes the event's effects in order
func (e *Engine) fireEvent(s *SimulationState, event *domain.Event, firedToday map[domain.EventID]bool) {
	s.setTriggered(event.ID)
	firedToday[event.ID] = true
	s.Record(&event.ID, domain.EventTriggered{EventID: event.ID})

	for _, effect := range event.Effects {
		if err := ExecuteEffect(s, effect, event.ID); err != nil {
			e.Logger.Errorf("effect of %s: %v", event.ID, err)
		}
	}
}

// drainPendingTriggers fires events queued by TriggerEvent effects,
// following chains up to a fixed depth
func (e *Engine) drainPendingTriggers(s *SimulationState, firedToday map[domain.EventID]bool) bool {
	fired := false
	for depth := 0; len(s.pendingTriggers) > 0 && depth < maxChainedTriggerDepth; depth++ {
		pending := s.pendingTriggers
		s.pendingTriggers = nil

		for _, id := range pending {
			event, ok := s.Event(id)
			if !ok || s.terminated[id] {
				continue
			}
			if _, wasTriggered := s.TriggeredAt(id); wasTriggered && event.Once {
				continue
			}
			e.fireEvent(s, event, firedToday)
			fired = true
		}
	}
	return fired
}
