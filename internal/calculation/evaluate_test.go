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

func amountTestState(t *testing.T) *SimulationState {
	plan := newTestPlan()
	plan.Accounts = []domain.Account{
		{
			ID: 1, Name: "brokerage", TaxStatus: domain.Taxable,
			AssetClass: domain.Investable, CashBalance: dec(500),
			Lots: []domain.AssetLot{{
				AssetID: 1, PurchaseDate: dateutil.Date(2029, time.January, 1),
				Units: dec(100), CostBasis: dec(120),
			}},
		},
		cashAccount(2, domain.Taxable, dec(300)),
	}
	return newTestState(t, plan)
}

func TestEvaluateAmountExpressions(t *testing.T) {
	s := amountTestState(t)
	from := domain.AccountEndpoint{AccountID: 1}
	to := domain.AccountEndpoint{AccountID: 2}

	tests := []struct {
		name     string
		amount   domain.TransferAmount
		expected decimal.Decimal
	}{
		{
			name:     "fixed",
			amount:   domain.FixedAmount{Value: dec(42)},
			expected: dec(42),
		},
		{
			name:     "source balance reads cash",
			amount:   domain.SourceBalanceAmount{},
			expected: dec(500),
		},
		{
			name:     "up to caps at source cash",
			amount:   domain.UpTo(dec(800)),
			expected: dec(500),
		},
		{
			name:     "up to passes smaller amounts",
			amount:   domain.UpTo(dec(200)),
			expected: dec(200),
		},
		{
			name:     "excess above a reserve",
			amount:   domain.ExcessAbove(dec(350)),
			expected: dec(150),
		},
		{
			name:     "excess above clamps at zero",
			amount:   domain.ExcessAbove(dec(900)),
			expected: decimal.Zero,
		},
		{
			name:     "target to balance tops up the shortfall",
			amount:   domain.TargetToBalanceAmount{Balance: dec(1000)},
			expected: dec(700), // target holds 300
		},
		{
			name:     "target to balance is zero when already above goal",
			amount:   domain.TargetToBalanceAmount{Balance: dec(100)},
			expected: decimal.Zero,
		},
		{
			name:     "asset balance marks to market",
			amount:   domain.AssetBalanceAmount{Coord: domain.AssetCoord{AccountID: 1, AssetID: 1}},
			expected: dec(200), // 100 units at $2.00
		},
		{
			name:     "account total includes assets",
			amount:   domain.AccountTotalBalanceAmount{AccountID: 1},
			expected: dec(700),
		},
		{
			name:     "account cash excludes assets",
			amount:   domain.AccountCashBalanceAmount{AccountID: 1},
			expected: dec(500),
		},
		{
			name: "arithmetic composes",
			amount: domain.AddAmount{
				A: domain.MulAmount{Amount: domain.FixedAmount{Value: dec(30)}, Factor: dec(2)},
				B: domain.SubAmount{A: domain.FixedAmount{Value: dec(10)}, B: domain.FixedAmount{Value: dec(4)}},
			},
			expected: dec(66),
		},
		{
			name: "negative result floors at zero",
			amount: domain.SubAmount{
				A: domain.FixedAmount{Value: dec(10)},
				B: domain.FixedAmount{Value: dec(50)},
			},
			expected: decimal.Zero,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EvaluateAmount(tt.amount, from, to, s)
			require.NoError(t, err)
			assert.True(t, tt.expected.Equal(got), "expected %s, got %s", tt.expected, got)
		})
	}
}

func TestEvaluateAmountExternalBalanceRejected(t *testing.T) {
	s := amountTestState(t)

	_, err := EvaluateAmount(domain.SourceBalanceAmount{}, domain.ExternalEndpoint{}, domain.AccountEndpoint{AccountID: 2}, s)
	assert.Error(t, err, "the external endpoint has no balance to read")

	_, err = EvaluateAmount(domain.TargetToBalanceAmount{Balance: dec(100)}, domain.AccountEndpoint{AccountID: 1}, domain.ExternalEndpoint{}, s)
	assert.Error(t, err)
}

func TestConditionTriggers(t *testing.T) {
	s := amountTestState(t)
	// current date 2030-06-01, owner born 1965-03-10

	tests := []struct {
		name    string
		trigger domain.EventTrigger
		fires   bool
	}{
		{
			name:    "date reached",
			trigger: domain.DateTrigger{Date: dateutil.Date(2030, time.June, 1)},
			fires:   true,
		},
		{
			name:    "date in the future",
			trigger: domain.DateTrigger{Date: dateutil.Date(2030, time.June, 2)},
			fires:   false,
		},
		{
			name:    "age reached",
			trigger: domain.AgeTrigger{Years: 65},
			fires:   true,
		},
		{
			name:    "age with months not yet reached",
			trigger: domain.AgeTrigger{Years: 65, Months: 3},
			fires:   false,
		},
		{
			name: "account balance gte",
			trigger: domain.AccountBalanceTrigger{
				AccountID: 1, Comparison: domain.GTE, Threshold: dec(700),
			},
			fires: true,
		},
		{
			name: "account balance lte",
			trigger: domain.AccountBalanceTrigger{
				AccountID: 2, Comparison: domain.LTE, Threshold: dec(100),
			},
			fires: false,
		},
		{
			name:    "net worth threshold",
			trigger: domain.NetWorthTrigger{Comparison: domain.GTE, Threshold: dec(1000)},
			fires:   true,
		},
		{
			name: "and requires every child",
			trigger: domain.AndTrigger{Triggers: []domain.EventTrigger{
				domain.DateTrigger{Date: dateutil.Date(2030, time.June, 1)},
				domain.NetWorthTrigger{Comparison: domain.GTE, Threshold: dec(5000)},
			}},
			fires: false,
		},
		{
			name: "or needs any child",
			trigger: domain.OrTrigger{Triggers: []domain.EventTrigger{
				domain.DateTrigger{Date: dateutil.Date(2035, time.January, 1)},
				domain.NetWorthTrigger{Comparison: domain.GTE, Threshold: dec(1000)},
			}},
			fires: true,
		},
		{
			name:    "manual never fires on its own",
			trigger: domain.ManualTrigger{},
			fires:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outcome, err := EvaluateTrigger(5, tt.trigger, s)
			require.NoError(t, err)
			if tt.fires {
				assert.Equal(t, Triggered, outcome.Kind)
			} else {
				assert.Equal(t, NotTriggered, outcome.Kind)
			}
		})
	}
}

func TestRelativeTrigger(t *testing.T) {
	plan := newTestPlan()
	plan.Events = []domain.Event{{ID: 1, Name: "anchor", Trigger: domain.ManualTrigger{}}}
	s := newTestState(t, plan)

	trigger := domain.RelativeTrigger{EventID: 1, OffsetDays: 30}

	outcome, err := EvaluateTrigger(2, trigger, s)
	require.NoError(t, err)
	assert.Equal(t, NotTriggered, outcome.Kind, "anchor has not fired")

	s.setTriggered(1)
	outcome, err = EvaluateTrigger(2, trigger, s)
	require.NoError(t, err)
	assert.Equal(t, NotTriggered, outcome.Kind, "offset not yet elapsed")

	s.CurrentDate = dateutil.AddDays(s.CurrentDate, 30)
	outcome, err = EvaluateTrigger(2, trigger, s)
	require.NoError(t, err)
	assert.Equal(t, Triggered, outcome.Kind)
}

func TestRepeatingTriggerLifecycle(t *testing.T) {
	plan := newTestPlan()
	tr := domain.RepeatingTrigger{
		Interval:       domain.Interval{Months: 1},
		StartCondition: domain.DateTrigger{Date: dateutil.Date(2030, time.July, 1)},
	}
	plan.Events = []domain.Event{{ID: 1, Name: "paycheck", Trigger: tr}}
	s := newTestState(t, plan)

	// before the start condition nothing happens
	outcome, err := EvaluateTrigger(1, tr, s)
	require.NoError(t, err)
	assert.Equal(t, NotTriggered, outcome.Kind)

	// on the start date the series activates and fires immediately
	s.CurrentDate = dateutil.Date(2030, time.July, 1)
	outcome, err = EvaluateTrigger(1, tr, s)
	require.NoError(t, err)
	assert.Equal(t, StartRepeating, outcome.Kind)
	assert.True(t, outcome.Next.Equal(dateutil.Date(2030, time.August, 1)))

	// engine bookkeeping after the first firing
	active := true
	s.repeatingActive[1] = &active
	next := outcome.Next
	s.nextDate[1] = &next
	s.setTriggered(1)

	// between occurrences nothing fires
	s.CurrentDate = dateutil.Date(2030, time.July, 15)
	outcome, err = EvaluateTrigger(1, tr, s)
	require.NoError(t, err)
	assert.Equal(t, NotTriggered, outcome.Kind)

	// the next occurrence fires and schedules one interval further
	s.CurrentDate = dateutil.Date(2030, time.August, 1)
	outcome, err = EvaluateTrigger(1, tr, s)
	require.NoError(t, err)
	assert.Equal(t, TriggerRepeating, outcome.Kind)
	assert.True(t, outcome.Next.Equal(dateutil.Date(2030, time.September, 1)))

	// paused series keep their schedule but stay quiet
	paused := false
	s.repeatingActive[1] = &paused
	outcome, err = EvaluateTrigger(1, tr, s)
	require.NoError(t, err)
	assert.Equal(t, NotTriggered, outcome.Kind)
}

func TestRepeatingTriggerEndsBeforeFiring(t *testing.T) {
	plan := newTestPlan()
	tr := domain.RepeatingTrigger{
		Interval:     domain.Interval{Months: 1},
		EndCondition: domain.DateTrigger{Date: dateutil.Date(2030, time.June, 1)},
	}
	plan.Events = []domain.Event{{ID: 1, Name: "stipend", Trigger: tr}}
	s := newTestState(t, plan)

	// the end condition already holds on the would-be first firing, so the
	// series retires without ever firing
	outcome, err := EvaluateTrigger(1, tr, s)
	require.NoError(t, err)
	assert.Equal(t, StopRepeating, outcome.Kind)
}

func TestRepeatingTriggerMaxOccurrences(t *testing.T) {
	plan := newTestPlan()
	tr := domain.RepeatingTrigger{
		Interval:       domain.Interval{Months: 1},
		MaxOccurrences: 3,
	}
	plan.Events = []domain.Event{{ID: 1, Name: "bonus", Trigger: tr}}
	s := newTestState(t, plan)

	s.occurrences[1] = 3
	outcome, err := EvaluateTrigger(1, tr, s)
	require.NoError(t, err)
	assert.Equal(t, StopRepeating, outcome.Kind)
}

func TestRepeatingTriggerRejectedAsCondition(t *testing.T) {
	s := newTestState(t, newTestPlan())

	nested := domain.AndTrigger{Triggers: []domain.EventTrigger{
		domain.RepeatingTrigger{Interval: domain.Interval{Months: 1}},
	}}
	_, err := EvaluateTrigger(1, nested, s)
	assert.Error(t, err)
}
