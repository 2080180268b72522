package calculation

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/finsim/plan-simulator/internal/domain"
	"github.com/finsim/plan-simulator/pkg/dateutil"
)

func dec(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v)
}

// testBrackets is a four-bracket progressive table used across tax tests
func testBrackets() []domain.TaxBracket {
	return []domain.TaxBracket{
		{Threshold: decimal.Zero, Rate: dec(0.10)},
		{Threshold: dec(10000), Rate: dec(0.12)},
		{Threshold: dec(40000), Rate: dec(0.22)},
		{Threshold: dec(90000), Rate: dec(0.24)},
	}
}

func testTaxConfig() domain.TaxConfig {
	return domain.TaxConfig{
		FederalBrackets:            testBrackets(),
		StateRate:                  dec(0.05),
		CapitalGainsRate:           dec(0.15),
		EarlyWithdrawalPenaltyRate: dec(0.10),
	}
}

// newTestPlan returns a minimal valid plan: one flat return profile and one
// asset priced at $2.00. Tests add accounts and events as needed.
func newTestPlan() *domain.Plan {
	return &domain.Plan{
		StartDate:     dateutil.Date(2030, time.June, 1),
		DurationYears: 10,
		BirthDate:     dateutil.Date(1965, time.March, 10),
		Taxes:         testTaxConfig(),
		RMDTable:      domain.UniformLifetime2024(),
		CollectLedger: true,
		ReturnProfiles: []domain.ReturnProfile{
			{ID: 1, Name: "flat", Kind: domain.ProfileNone},
		},
		Assets: []domain.AssetSpec{
			{ID: 1, Name: "index fund", InitialPrice: 2.0, Profile: 1},
		},
	}
}

func newTestState(t *testing.T, plan *domain.Plan) *SimulationState {
	t.Helper()
	s, err := NewSimulationState(plan, 7)
	require.NoError(t, err)
	return s
}

// decimalEq asserts two decimals are equal, with a readable failure
func decimalEq(t *testing.T, expected, actual decimal.Decimal, msgAndArgs ...interface{}) {
	t.Helper()
	require.True(t, expected.Equal(actual), "expected %s, got %s %v", expected, actual, msgAndArgs)
}

// decimalNear asserts two decimals agree within a cent
func decimalNear(t *testing.T, expected, actual decimal.Decimal) {
	t.Helper()
	diff := expected.Sub(actual).Abs()
	require.True(t, diff.LessThan(dec(0.01)), "expected %s, got %s (diff %s)", expected, actual, diff)
}
