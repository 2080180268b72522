package calculation

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/finsim/plan-simulator/internal/domain"
	"github.com/finsim/plan-simulator/pkg/dateutil"
)

// EvaluateAmount resolves a transfer amount expression against live state.
// Balance references read the current balances of the transfer's endpoints;
// the final result is floored at zero.
func EvaluateAmount(amount domain.TransferAmount, from, to domain.TransferEndpoint, s *SimulationState) (decimal.Decimal, error) {
	v, err := evalAmount(amount, from, to, s)
	if err != nil {
		return decimal.Zero, err
	}
	if v.IsNegative() {
		return decimal.Zero, nil
	}
	return v, nil
}

func evalAmount(amount domain.TransferAmount, from, to domain.TransferEndpoint, s *SimulationState) (decimal.Decimal, error) {
	switch a := amount.(type) {
	case domain.FixedAmount:
		return a.Value, nil

	case domain.SourceBalanceAmount:
		return endpointBalance(from, s)

	case domain.ZeroTargetBalanceAmount:
		// the amount that brings the target to exactly zero; pays off a
		// liability's negative value
		bal, err := endpointTotalValue(to, s)
		if err != nil {
			return decimal.Zero, err
		}
		return bal.Neg(), nil

	case domain.TargetToBalanceAmount:
		bal, err := endpointTotalValue(to, s)
		if err != nil {
			return decimal.Zero, err
		}
		return a.Balance.Sub(bal), nil

	case domain.AssetBalanceAmount:
		return s.AssetBalance(a.Coord)

	case domain.AccountTotalBalanceAmount:
		return s.AccountBalance(a.AccountID)

	case domain.AccountCashBalanceAmount:
		return s.AccountCashBalance(a.AccountID)

	case domain.MinAmount:
		x, err := evalAmount(a.A, from, to, s)
		if err != nil {
			return decimal.Zero, err
		}
		y, err := evalAmount(a.B, from, to, s)
		if err != nil {
			return decimal.Zero, err
		}
		return decimal.Min(x, y), nil

	case domain.MaxAmount:
		x, err := evalAmount(a.A, from, to, s)
		if err != nil {
			return decimal.Zero, err
		}
		y, err := evalAmount(a.B, from, to, s)
		if err != nil {
			return decimal.Zero, err
		}
		return decimal.Max(x, y), nil

	case domain.AddAmount:
		x, err := evalAmount(a.A, from, to, s)
		if err != nil {
			return decimal.Zero, err
		}
		y, err := evalAmount(a.B, from, to, s)
		if err != nil {
			return decimal.Zero, err
		}
		return x.Add(y), nil

	case domain.SubAmount:
		x, err := evalAmount(a.A, from, to, s)
		if err != nil {
			return decimal.Zero, err
		}
		y, err := evalAmount(a.B, from, to, s)
		if err != nil {
			return decimal.Zero, err
		}
		return x.Sub(y), nil

	case domain.MulAmount:
		x, err := evalAmount(a.Amount, from, to, s)
		if err != nil {
			return decimal.Zero, err
		}
		return x.Mul(a.Factor), nil

	default:
		return decimal.Zero, fmt.Errorf("unknown amount expression %T", amount)
	}
}

// endpointBalance is the transferable balance of an endpoint: cash for an
// account, market value for an asset position. The external endpoint has no
// balance; referencing it is a configuration error.
func endpointBalance(ep domain.TransferEndpoint, s *SimulationState) (decimal.Decimal, error) {
	switch e := ep.(type) {
	case domain.AccountEndpoint:
		return s.AccountCashBalance(e.AccountID)
	case domain.AssetEndpoint:
		return s.AssetBalance(e.Coord)
	case domain.ExternalEndpoint:
		return decimal.Zero, fmt.Errorf("external endpoint has no balance")
	default:
		return decimal.Zero, fmt.Errorf("unknown endpoint %T", ep)
	}
}

// endpointTotalValue is the full value of an endpoint's container, used by
// target-relative amounts; for liabilities this is negative.
func endpointTotalValue(ep domain.TransferEndpoint, s *SimulationState) (decimal.Decimal, error) {
	switch e := ep.(type) {
	case domain.AccountEndpoint:
		return s.AccountBalance(e.AccountID)
	case domain.AssetEndpoint:
		return s.AssetBalance(e.Coord)
	case domain.ExternalEndpoint:
		return decimal.Zero, fmt.Errorf("external endpoint has no balance")
	default:
		return decimal.Zero, fmt.Errorf("unknown endpoint %T", ep)
	}
}

// TriggerOutcomeKind classifies what a trigger evaluation decided
type TriggerOutcomeKind int

const (
	NotTriggered TriggerOutcomeKind = iota
	Triggered
	// StartRepeating activates a repeating series; the event fires now and
	// Next holds the following occurrence
	StartRepeating
	// TriggerRepeating fires an active series; Next holds the following
	// occurrence
	TriggerRepeating
	// StopRepeating retires a series without firing
	StopRepeating
)

// TriggerOutcome is the decision for one event on one date
type TriggerOutcome struct {
	Kind TriggerOutcomeKind
	Next time.Time
}

// EvaluateTrigger decides whether an event fires on the current date
func EvaluateTrigger(id domain.EventID, trigger domain.EventTrigger, s *SimulationState) (TriggerOutcome, error) {
	switch tr := trigger.(type) {
	case domain.RepeatingTrigger:
		return evaluateRepeating(id, tr, s)
	default:
		holds, err := conditionHolds(trigger, s)
		if err != nil {
			return TriggerOutcome{}, err
		}
		if holds {
			return TriggerOutcome{Kind: Triggered}, nil
		}
		return TriggerOutcome{Kind: NotTriggered}, nil
	}
}

// evaluateRepeating runs the repeating state machine. The end condition is
// checked before anything else: an expired series never fires or schedules
// past its end, which is what keeps a monthly series from overshooting its
// stop date by one interval.
func evaluateRepeating(id domain.EventID, tr domain.RepeatingTrigger, s *SimulationState) (TriggerOutcome, error) {
	if tr.EndCondition != nil {
		ended, err := conditionHolds(tr.EndCondition, s)
		if err != nil {
			return TriggerOutcome{}, err
		}
		if ended {
			return TriggerOutcome{Kind: StopRepeating}, nil
		}
	}

	if tr.MaxOccurrences > 0 && s.occurrences[id] >= tr.MaxOccurrences {
		return TriggerOutcome{Kind: StopRepeating}, nil
	}

	active := s.repeatingActive[id]
	switch {
	case active == nil:
		// not started yet
		if tr.StartCondition != nil {
			started, err := conditionHolds(tr.StartCondition, s)
			if err != nil {
				return TriggerOutcome{}, err
			}
			if !started {
				return TriggerOutcome{Kind: NotTriggered}, nil
			}
		}
		return TriggerOutcome{
			Kind: StartRepeating,
			Next: tr.Interval.AddTo(s.CurrentDate),
		}, nil

	case !*active:
		// paused; the schedule is kept but nothing fires
		return TriggerOutcome{Kind: NotTriggered}, nil

	default:
		next := s.nextDate[id]
		if next == nil || s.CurrentDate.Before(*next) {
			return TriggerOutcome{Kind: NotTriggered}, nil
		}
		return TriggerOutcome{
			Kind: TriggerRepeating,
			Next: tr.Interval.AddTo(*next),
		}, nil
	}
}

// conditionHolds evaluates a trigger as a boolean condition, used for plain
// triggers and for the nested conditions of And/Or/Repeating.
func conditionHolds(trigger domain.EventTrigger, s *SimulationState) (bool, error) {
	switch tr := trigger.(type) {
	case domain.DateTrigger:
		return !s.CurrentDate.Before(tr.Date), nil

	case domain.AgeTrigger:
		target := s.BirthDate.AddDate(tr.Years, tr.Months, 0)
		return !s.CurrentDate.Before(target), nil

	case domain.RelativeTrigger:
		fired, ok := s.TriggeredAt(tr.EventID)
		if !ok {
			return false, nil
		}
		return !s.CurrentDate.Before(dateutil.AddDays(fired, tr.OffsetDays)), nil

	case domain.EventEndedTrigger:
		return s.EventEnded(tr.EventID), nil

	case domain.AccountBalanceTrigger:
		bal, err := s.AccountBalance(tr.AccountID)
		if err != nil {
			return false, err
		}
		return compare(bal, tr.Comparison, tr.Threshold), nil

	case domain.AssetBalanceTrigger:
		bal, err := s.AssetBalance(tr.Coord)
		if err != nil {
			return false, err
		}
		return compare(bal, tr.Comparison, tr.Threshold), nil

	case domain.NetWorthTrigger:
		return compare(s.NetWorth(), tr.Comparison, tr.Threshold), nil

	case domain.AndTrigger:
		for _, child := range tr.Triggers {
			holds, err := conditionHolds(child, s)
			if err != nil {
				return false, err
			}
			if !holds {
				return false, nil
			}
		}
		return true, nil

	case domain.OrTrigger:
		for _, child := range tr.Triggers {
			holds, err := conditionHolds(child, s)
			if err != nil {
				return false, err
			}
			if holds {
				return true, nil
			}
		}
		return false, nil

	case domain.ManualTrigger:
		return false, nil

	case domain.RepeatingTrigger:
		return false, fmt.Errorf("repeating trigger cannot be used as a condition")

	default:
		return false, fmt.Errorf("unknown trigger %T", trigger)
	}
}

func compare(value decimal.Decimal, cmp domain.Comparison, threshold decimal.Decimal) bool {
	if cmp == domain.LTE {
		return value.LessThanOrEqual(threshold)
	}
	return value.GreaterThanOrEqual(threshold)
}
