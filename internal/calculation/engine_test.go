package calculation

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finsim/plan-simulator/internal/domain"
	"github.com/finsim/plan-simulator/pkg/dateutil"
)

func TestEngineSingleExpense(t *testing.T) {
	plan := newTestPlan()
	plan.DurationYears = 1
	plan.Taxes = domain.TaxConfig{}
	plan.Accounts = []domain.Account{cashAccount(1, domain.Taxable, dec(10000))}
	plan.Events = []domain.Event{{
		ID:      1,
		Name:    "new roof",
		Trigger: domain.DateTrigger{Date: plan.StartDate},
		Effects: []domain.EventEffect{
			domain.ExpenseEffect{From: 1, Amount: domain.FixedAmount{Value: dec(2000)}},
		},
		Once: true,
	}}

	result, err := NewEngine(plan).Run(context.Background(), 1)
	require.NoError(t, err)

	decimalEq(t, dec(8000), result.FinalNetWorth())
	assert.Len(t, result.RecordsOfKind(domain.KindCashDebit), 1, "the expense must debit exactly once")
	assert.True(t, result.EventWasTriggered(1))
	decimalEq(t, dec(2000), result.ExternalOutflows)
}

func TestEngineRepeatingMonthlyIncome(t *testing.T) {
	plan := newTestPlan()
	plan.DurationYears = 1
	plan.Taxes = domain.TaxConfig{}
	plan.Accounts = []domain.Account{cashAccount(1, domain.Taxable, decimal.Zero)}
	plan.Events = []domain.Event{{
		ID:   1,
		Name: "paycheck",
		Trigger: domain.RepeatingTrigger{
			Interval: domain.Interval{Months: 1},
		},
		Effects: []domain.EventEffect{
			domain.IncomeEffect{To: 1, Amount: domain.FixedAmount{Value: dec(100)}, Mode: domain.Gross},
		},
	}}

	result, err := NewEngine(plan).Run(context.Background(), 1)
	require.NoError(t, err)

	// fires on the start date and then monthly, 12 times inside the year
	triggered := result.RecordsOfKind(domain.KindEventTriggered)
	assert.Len(t, triggered, 12)
	decimalEq(t, dec(1200), result.FinalNetWorth())
	decimalEq(t, dec(1200), result.ExternalInflows)
}

func TestEngineChainedSameDateEvents(t *testing.T) {
	// the windfall pushes the balance past the second event's threshold on
	// the same date; the fixed point must settle both before time moves on
	plan := newTestPlan()
	plan.DurationYears = 1
	plan.Taxes = domain.TaxConfig{}
	plan.Accounts = []domain.Account{
		cashAccount(1, domain.Taxable, dec(100)),
		cashAccount(2, domain.Taxable, decimal.Zero),
	}
	plan.Events = []domain.Event{
		{
			ID:      1,
			Name:    "windfall",
			Trigger: domain.DateTrigger{Date: plan.StartDate},
			Effects: []domain.EventEffect{
				domain.IncomeEffect{To: 1, Amount: domain.FixedAmount{Value: dec(5000)}, Mode: domain.Gross},
			},
			Once: true,
		},
		{
			ID:      2,
			Name:    "skim the excess",
			Trigger: domain.AccountBalanceTrigger{AccountID: 1, Comparison: domain.GTE, Threshold: dec(1000)},
			Effects: []domain.EventEffect{
				domain.TransferEffect{
					From:   domain.AccountEndpoint{AccountID: 1},
					To:     domain.AccountEndpoint{AccountID: 2},
					Amount: domain.ExcessAbove(dec(1000)),
				},
			},
			Once: true,
		},
	}

	result, err := NewEngine(plan).Run(context.Background(), 1)
	require.NoError(t, err)

	date1, ok := result.EventTriggerDate(1)
	require.True(t, ok)
	date2, ok := result.EventTriggerDate(2)
	require.True(t, ok)
	assert.True(t, date1.Equal(date2), "both events must settle on the same date")

	bal1, ok := result.FinalAccountBalance(1)
	require.True(t, ok)
	decimalEq(t, dec(1000), bal1)
	bal2, ok := result.FinalAccountBalance(2)
	require.True(t, ok)
	decimalEq(t, dec(4100), bal2)
}

func TestEngineManualEventChains(t *testing.T) {
	plan := newTestPlan()
	plan.DurationYears = 1
	plan.Taxes = domain.TaxConfig{}
	plan.Accounts = []domain.Account{cashAccount(1, domain.Taxable, dec(1000))}
	plan.Events = []domain.Event{
		{
			ID:      1,
			Name:    "kickoff",
			Trigger: domain.DateTrigger{Date: plan.StartDate},
			Effects: []domain.EventEffect{domain.TriggerEventEffect{EventID: 2}},
			Once:    true,
		},
		{
			ID:      2,
			Name:    "chained expense",
			Trigger: domain.ManualTrigger{},
			Effects: []domain.EventEffect{
				domain.ExpenseEffect{From: 1, Amount: domain.FixedAmount{Value: dec(400)}},
			},
			Once: true,
		},
	}

	result, err := NewEngine(plan).Run(context.Background(), 1)
	require.NoError(t, err)

	assert.True(t, result.EventWasTriggered(2))
	decimalEq(t, dec(600), result.FinalNetWorth())
}

func TestEngineEventEndedAfterSeriesExpires(t *testing.T) {
	// the severance fires only once the paycheck series has run out
	plan := newTestPlan()
	plan.DurationYears = 1
	plan.Taxes = domain.TaxConfig{}
	plan.Accounts = []domain.Account{cashAccount(1, domain.Taxable, dec(10000))}
	plan.Events = []domain.Event{
		{
			ID:   1,
			Name: "short contract",
			Trigger: domain.RepeatingTrigger{
				Interval:       domain.Interval{Months: 1},
				MaxOccurrences: 2,
			},
			Effects: []domain.EventEffect{
				domain.ExpenseEffect{From: 1, Amount: domain.FixedAmount{Value: dec(10)}},
			},
		},
		{
			ID:      2,
			Name:    "wind-down",
			Trigger: domain.EventEndedTrigger{EventID: 1},
			Effects: []domain.EventEffect{
				domain.ExpenseEffect{From: 1, Amount: domain.FixedAmount{Value: dec(100)}},
			},
			Once: true,
		},
	}

	result, err := NewEngine(plan).Run(context.Background(), 1)
	require.NoError(t, err)

	assert.Len(t, result.RecordsForEvent(1), 4, "two occurrences, each a trigger and a debit")
	require.True(t, result.EventWasTriggered(2))

	lastFire, ok := result.EventTriggerDate(1)
	require.True(t, ok)
	endedFire, ok := result.EventTriggerDate(2)
	require.True(t, ok)
	assert.True(t, endedFire.After(lastFire), "the follow-up waits for the series to retire")
	decimalEq(t, dec(9880), result.FinalNetWorth())
}

func TestEngineEventEndedAfterTermination(t *testing.T) {
	plan := newTestPlan()
	plan.DurationYears = 1
	plan.Taxes = domain.TaxConfig{}
	plan.Accounts = []domain.Account{cashAccount(1, domain.Taxable, dec(1000))}
	plan.Events = []domain.Event{
		{
			ID:      1,
			Name:    "cancel the subscription",
			Trigger: domain.DateTrigger{Date: plan.StartDate},
			Effects: []domain.EventEffect{domain.TerminateEventEffect{EventID: 3}},
			Once:    true,
		},
		{
			ID:      2,
			Name:    "cancellation fee",
			Trigger: domain.EventEndedTrigger{EventID: 3},
			Effects: []domain.EventEffect{
				domain.ExpenseEffect{From: 1, Amount: domain.FixedAmount{Value: dec(25)}},
			},
			Once: true,
		},
		{
			ID:   3,
			Name: "subscription",
			Trigger: domain.RepeatingTrigger{
				Interval: domain.Interval{Months: 1},
			},
			Effects: []domain.EventEffect{
				domain.ExpenseEffect{From: 1, Amount: domain.FixedAmount{Value: dec(15)}},
			},
		},
	}

	result, err := NewEngine(plan).Run(context.Background(), 1)
	require.NoError(t, err)

	assert.True(t, result.EventWasTriggered(2))
	assert.False(t, result.EventWasTriggered(3), "the terminated series never runs")
	decimalEq(t, dec(975), result.FinalNetWorth())
}

func TestEngineIterationLimitWarns(t *testing.T) {
	plan := newTestPlan()
	plan.DurationYears = 1
	plan.Taxes = domain.TaxConfig{}
	plan.CollectLedger = false
	plan.Accounts = []domain.Account{cashAccount(1, domain.Taxable, dec(100))}
	plan.Events = []domain.Event{
		{
			ID:      1,
			Name:    "kickoff",
			Trigger: domain.DateTrigger{Date: plan.StartDate},
			Effects: []domain.EventEffect{domain.TriggerEventEffect{EventID: 2}},
			Once:    true,
		},
		{
			ID:      2,
			Name:    "self-perpetuating",
			Trigger: domain.ManualTrigger{},
			Effects: []domain.EventEffect{domain.TriggerEventEffect{EventID: 2}},
		},
	}

	result, err := NewEngine(plan).Run(context.Background(), 1)
	require.NoError(t, err)

	found := false
	for _, w := range result.Warnings {
		if w.Kind == domain.WarnIterationLimit {
			found = true
			break
		}
	}
	assert.True(t, found, "a cyclic trigger chain must surface a warning")
}

func TestEngineCashInterest(t *testing.T) {
	plan := newTestPlan()
	plan.DurationYears = 1
	plan.Taxes = domain.TaxConfig{}
	plan.ReturnProfiles = append(plan.ReturnProfiles, domain.ReturnProfile{
		ID: 2, Name: "hysa", Kind: domain.ProfileFixed, Rate: 0.05,
	})
	profile := domain.ProfileID(2)
	acct := cashAccount(1, domain.Taxable, dec(1000))
	acct.ReturnProfile = &profile
	plan.Accounts = []domain.Account{acct}

	result, err := NewEngine(plan).Run(context.Background(), 1)
	require.NoError(t, err)

	// one year of 5% interest compounded in monthly slices
	final := result.FinalNetWorth()
	assert.True(t, final.GreaterThan(dec(1048)) && final.LessThan(dec(1051)),
		"expected about 1050, got %s", final)
}

func TestEngineLiabilityAccruesInterest(t *testing.T) {
	plan := newTestPlan()
	plan.DurationYears = 1
	plan.Taxes = domain.TaxConfig{}
	plan.ReturnProfiles = append(plan.ReturnProfiles, domain.ReturnProfile{
		ID: 2, Name: "mortgage rate", Kind: domain.ProfileFixed, Rate: 0.06,
	})
	profile := domain.ProfileID(2)
	plan.Accounts = []domain.Account{
		cashAccount(1, domain.Taxable, dec(100000)),
		{
			ID: 2, Name: "mortgage", TaxStatus: domain.Illiquid,
			AssetClass: domain.Liability, CashBalance: dec(50000),
			ReturnProfile: &profile,
		},
	}

	result, err := NewEngine(plan).Run(context.Background(), 1)
	require.NoError(t, err)

	// the principal grows toward 53000, dragging net worth below 50000
	final := result.FinalNetWorth()
	assert.True(t, final.LessThan(dec(50000)), "interest must work against net worth, got %s", final)
	assert.NotEmpty(t, result.RecordsOfKind(domain.KindLiabilityInterest))
}

func TestEngineSnapshotsQuarterly(t *testing.T) {
	plan := newTestPlan()
	plan.DurationYears = 2
	plan.Taxes = domain.TaxConfig{}
	plan.Accounts = []domain.Account{cashAccount(1, domain.Taxable, dec(1000))}

	result, err := NewEngine(plan).Run(context.Background(), 1)
	require.NoError(t, err)

	require.NotEmpty(t, result.Snapshots)
	assert.True(t, result.Snapshots[0].Date.Equal(plan.StartDate))
	for i := 1; i < len(result.Snapshots); i++ {
		assert.False(t, result.Snapshots[i].Date.Before(result.Snapshots[i-1].Date),
			"snapshots must be chronological")
	}
	// two years of quarter starts plus year ends plus the endpoints
	assert.GreaterOrEqual(t, len(result.Snapshots), 10)
}

func TestEngineDeterministicPerSeed(t *testing.T) {
	plan := newTestPlan()
	plan.DurationYears = 5
	plan.ReturnProfiles = []domain.ReturnProfile{
		{ID: 1, Name: "stocks", Kind: domain.ProfileNormal, Mean: 0.07, StdDev: 0.15},
	}
	plan.Accounts = []domain.Account{{
		ID: 1, Name: "brokerage", TaxStatus: domain.Taxable,
		AssetClass: domain.Investable, CashBalance: dec(1000),
		Lots: []domain.AssetLot{{
			AssetID: 1, PurchaseDate: dateutil.Date(2029, time.January, 1),
			Units: dec(500), CostBasis: dec(900),
		}},
	}}

	first, err := NewEngine(plan).Run(context.Background(), 99)
	require.NoError(t, err)
	second, err := NewEngine(plan).Run(context.Background(), 99)
	require.NoError(t, err)
	decimalEq(t, first.FinalNetWorth(), second.FinalNetWorth())

	other, err := NewEngine(plan).Run(context.Background(), 100)
	require.NoError(t, err)
	assert.False(t, first.FinalNetWorth().Equal(other.FinalNetWorth()),
		"different seeds must sample different markets")
}

func TestEngineHonorsContextCancellation(t *testing.T) {
	plan := newTestPlan()
	plan.DurationYears = 30
	plan.Accounts = []domain.Account{cashAccount(1, domain.Taxable, dec(1000))}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewEngine(plan).Run(ctx, 1)
	assert.ErrorIs(t, err, context.Canceled)
}
