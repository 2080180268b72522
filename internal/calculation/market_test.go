package calculation

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finsim/plan-simulator/internal/domain"
	"github.com/finsim/plan-simulator/pkg/dateutil"
)

func TestNDayRate(t *testing.T) {
	assert.InDelta(t, 0.05, NDayRate(0.05, 365), 1e-12, "a full year is the annual rate")
	assert.Equal(t, 0.0, NDayRate(0.05, 0))
	assert.Equal(t, 0.0, NDayRate(0.05, -10))

	// thirty days of 5% annual, (1.05)^(30/365) - 1
	assert.InDelta(t, math.Pow(1.05, 30.0/365.0)-1.0, NDayRate(0.05, 30), 1e-12)

	// negative rates shrink
	assert.Less(t, NDayRate(-0.10, 100), 0.0)
}

func marketPlan() *domain.Plan {
	return &domain.Plan{
		StartDate:     dateutil.Date(2030, time.January, 1),
		DurationYears: 10,
		BirthDate:     dateutil.Date(1970, time.January, 1),
		ReturnProfiles: []domain.ReturnProfile{
			{ID: 1, Name: "flat", Kind: domain.ProfileFixed, Rate: 0.05},
			{ID: 2, Name: "stocks", Kind: domain.ProfileNormal, Mean: 0.07, StdDev: 0.15},
		},
		Inflation: domain.InflationProfile{Kind: domain.ProfileFixed, Rate: 0.03},
		Assets: []domain.AssetSpec{
			{ID: 1, Name: "bond fund", InitialPrice: 100.0, Profile: 1},
			{ID: 2, Name: "stock fund", InitialPrice: 50.0, Profile: 2},
		},
	}
}

func TestMarketFixedProfile(t *testing.T) {
	m, err := NewMarket(marketPlan(), rand.New(rand.NewSource(1)))
	require.NoError(t, err)

	start := dateutil.Date(2030, time.January, 1)

	rate, ok := m.YearlyRate(1, start)
	require.True(t, ok)
	assert.Equal(t, 0.05, rate)

	price, ok := m.AssetPrice(1, start)
	require.True(t, ok)
	assert.InDelta(t, 100.0, price, 1e-9)

	// one sampled year later the fixed profile has compounded once
	price, ok = m.AssetPrice(1, dateutil.AddDays(start, 365))
	require.True(t, ok)
	assert.InDelta(t, 105.0, price, 1e-9)

	// half a year in, the price sits between
	price, ok = m.AssetPrice(1, dateutil.AddDays(start, 182))
	require.True(t, ok)
	assert.Greater(t, price, 100.0)
	assert.Less(t, price, 105.0)
}

func TestMarketUnknownAsset(t *testing.T) {
	m, err := NewMarket(marketPlan(), rand.New(rand.NewSource(1)))
	require.NoError(t, err)

	_, ok := m.AssetPrice(99, dateutil.Date(2030, time.June, 1))
	assert.False(t, ok)
}

func TestMarketRejectsDanglingProfile(t *testing.T) {
	plan := marketPlan()
	plan.Assets = append(plan.Assets, domain.AssetSpec{ID: 3, Name: "orphan", InitialPrice: 10, Profile: 42})

	_, err := NewMarket(plan, rand.New(rand.NewSource(1)))
	assert.Error(t, err)
}

func TestMarketDeterministicPerSeed(t *testing.T) {
	at := dateutil.Date(2035, time.June, 15)

	a, err := NewMarket(marketPlan(), rand.New(rand.NewSource(7)))
	require.NoError(t, err)
	b, err := NewMarket(marketPlan(), rand.New(rand.NewSource(7)))
	require.NoError(t, err)

	pa, _ := a.AssetPrice(2, at)
	pb, _ := b.AssetPrice(2, at)
	assert.Equal(t, pa, pb, "same seed, same sampled path")

	c, err := NewMarket(marketPlan(), rand.New(rand.NewSource(8)))
	require.NoError(t, err)
	pc, _ := c.AssetPrice(2, at)
	assert.NotEqual(t, pa, pc, "different seeds diverge")
}

func TestMarketSamplingIgnoresProfileOrder(t *testing.T) {
	at := dateutil.Date(2035, time.June, 15)

	plan := marketPlan()
	a, err := NewMarket(plan, rand.New(rand.NewSource(7)))
	require.NoError(t, err)

	shuffled := marketPlan()
	shuffled.ReturnProfiles[0], shuffled.ReturnProfiles[1] = shuffled.ReturnProfiles[1], shuffled.ReturnProfiles[0]
	b, err := NewMarket(shuffled, rand.New(rand.NewSource(7)))
	require.NoError(t, err)

	pa, _ := a.AssetPrice(2, at)
	pb, _ := b.AssetPrice(2, at)
	assert.Equal(t, pa, pb, "sampling order is by profile id, not list position")
}

func TestPeriodMultiplierSplitsAtYearBoundary(t *testing.T) {
	m, err := NewMarket(marketPlan(), rand.New(rand.NewSource(1)))
	require.NoError(t, err)

	start := dateutil.Date(2030, time.January, 1)
	from := dateutil.AddDays(start, 300)
	to := dateutil.AddDays(start, 400)

	// both sampled years run at the fixed 5%, so the split compounds back to
	// a plain hundred days
	got := m.PeriodMultiplier(1, from, to)
	assert.InDelta(t, math.Pow(1.05, 100.0/365.0), got, 1e-9)

	assert.Equal(t, 1.0, m.PeriodMultiplier(1, to, from), "reversed range does not grow")
}

func TestInflationFactor(t *testing.T) {
	m, err := NewMarket(marketPlan(), rand.New(rand.NewSource(1)))
	require.NoError(t, err)

	start := dateutil.Date(2030, time.January, 1)
	assert.InDelta(t, 1.0, m.InflationFactor(start), 1e-9)
	assert.InDelta(t, 1.03, m.InflationFactor(dateutil.AddDays(start, 365)), 1e-9)
	assert.InDelta(t, 1.0609, m.InflationFactor(dateutil.AddDays(start, 730)), 1e-9)
}
