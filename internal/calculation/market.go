package calculation

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
	"time"

	"github.com/finsim/plan-simulator/internal/domain"
	"github.com/finsim/plan-simulator/pkg/dateutil"
)

// rateSequence holds one profile's sampled yearly rates plus the running
// product of gross returns, so any year's price level is a single multiply.
type rateSequence struct {
	// yearly[i] is the return for simulation year i
	yearly []float64
	// cumulative[i] is the growth factor from the start through the end of
	// year i-1; cumulative[0] is 1
	cumulative []float64
}

// Market is one run's sampled view of the world: a yearly rate path per
// profile and a price path per asset. Sampling happens once at run start
// from the run's seed; the rest of the engine only reads.
type Market struct {
	startDate time.Time
	years     int

	sequences map[domain.ProfileID]rateSequence
	assets    map[domain.AssetID]domain.AssetSpec

	// inflationFactors[i] is the cumulative price level at the start of
	// year i, base 1.0
	inflationFactors []float64
}

// NewMarket samples every profile for the run. Profiles are sampled in
// sorted id order so a given seed always produces the same market, no
// matter how the plan lists them.
func NewMarket(plan *domain.Plan, rng *rand.Rand) (*Market, error) {
	m := &Market{
		startDate: plan.StartDate,
		years:     plan.DurationYears,
		sequences: make(map[domain.ProfileID]rateSequence, len(plan.ReturnProfiles)),
		assets:    make(map[domain.AssetID]domain.AssetSpec, len(plan.Assets)),
	}

	ids := make([]domain.ProfileID, 0, len(plan.ReturnProfiles))
	byID := make(map[domain.ProfileID]domain.ReturnProfile, len(plan.ReturnProfiles))
	for _, p := range plan.ReturnProfiles {
		ids = append(ids, p.ID)
		byID[p.ID] = p
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		p := byID[id]
		yearly, err := sampleYearlyRates(p.Kind, p.Rate, p.Mean, p.StdDev, plan.DurationYears, rng)
		if err != nil {
			return nil, fmt.Errorf("return profile %s: %w", p.ID, err)
		}
		m.sequences[id] = buildSequence(yearly)
	}

	inflYearly, err := sampleYearlyRates(plan.Inflation.Kind, plan.Inflation.Rate,
		plan.Inflation.Mean, plan.Inflation.StdDev, plan.DurationYears, rng)
	if err != nil {
		return nil, fmt.Errorf("inflation profile: %w", err)
	}
	m.inflationFactors = buildSequence(inflYearly).cumulative

	for _, a := range plan.Assets {
		if _, ok := m.sequences[a.Profile]; !ok {
			return nil, fmt.Errorf("asset %s references unknown %s", a.ID, a.Profile)
		}
		m.assets[a.ID] = a
	}

	return m, nil
}

func buildSequence(yearly []float64) rateSequence {
	cumulative := make([]float64, len(yearly)+1)
	cumulative[0] = 1.0
	for i, r := range yearly {
		cumulative[i+1] = cumulative[i] * (1.0 + r)
	}
	return rateSequence{yearly: yearly, cumulative: cumulative}
}

func sampleYearlyRates(kind domain.ReturnProfileKind, rate, mean, stdDev float64, years int, rng *rand.Rand) ([]float64, error) {
	out := make([]float64, years)
	switch kind {
	case domain.ProfileNone, "":
		// zeros
	case domain.ProfileFixed:
		for i := range out {
			out[i] = rate
		}
	case domain.ProfileNormal:
		for i := range out {
			out[i] = mean + stdDev*boxMuller(rng)
		}
	case domain.ProfileLogNormal:
		for i := range out {
			out[i] = math.Exp(mean+stdDev*boxMuller(rng)) - 1.0
		}
	default:
		return nil, fmt.Errorf("unknown profile kind %q", kind)
	}
	return out, nil
}

// boxMuller draws one standard normal variate
func boxMuller(rng *rand.Rand) float64 {
	u1 := rng.Float64()
	u2 := rng.Float64()
	for u1 == 0 {
		u1 = rng.Float64()
	}
	return math.Sqrt(-2.0*math.Log(u1)) * math.Cos(2.0*math.Pi*u2)
}

// NDayRate converts an annual rate to the equivalent rate over n days
func NDayRate(annual float64, days int) float64 {
	if days <= 0 {
		return 0
	}
	return math.Pow(1.0+annual, float64(days)/365.0) - 1.0
}

// yearIndexAt maps a date to its simulation year, clamped to the sampled range
func (m *Market) yearIndexAt(date time.Time) (year int, residualDays int) {
	days := dateutil.DaysBetween(m.startDate, date)
	if days < 0 {
		return 0, 0
	}
	year = days / 365
	if year >= m.years {
		year = m.years - 1
		if year < 0 {
			year = 0
		}
		return year, 365
	}
	return year, days % 365
}

// YearlyRate returns a profile's sampled rate for the year containing date
func (m *Market) YearlyRate(id domain.ProfileID, date time.Time) (float64, bool) {
	seq, ok := m.sequences[id]
	if !ok || len(seq.yearly) == 0 {
		return 0, ok
	}
	year, _ := m.yearIndexAt(date)
	if year >= len(seq.yearly) {
		year = len(seq.yearly) - 1
	}
	return seq.yearly[year], true
}

// AssetPrice returns an asset's unit price at a date: the initial price
// compounded through complete years plus the residual fraction of the
// current year.
func (m *Market) AssetPrice(id domain.AssetID, date time.Time) (float64, bool) {
	spec, ok := m.assets[id]
	if !ok {
		return 0, false
	}
	seq := m.sequences[spec.Profile]
	if len(seq.yearly) == 0 {
		return spec.InitialPrice, true
	}
	year, residual := m.yearIndexAt(date)
	if year >= len(seq.yearly) {
		year = len(seq.yearly) - 1
		residual = 365
	}
	price := spec.InitialPrice * seq.cumulative[year]
	price *= math.Pow(1.0+seq.yearly[year], float64(residual)/365.0)
	return price, true
}

// PeriodMultiplier returns the growth factor a profile applies across a date
// span, splitting at year boundaries so each segment compounds at its own
// sampled rate.
func (m *Market) PeriodMultiplier(id domain.ProfileID, from, to time.Time) float64 {
	seq, ok := m.sequences[id]
	if !ok || len(seq.yearly) == 0 {
		return 1.0
	}
	totalDays := dateutil.DaysBetween(from, to)
	if totalDays <= 0 {
		return 1.0
	}

	multiplier := 1.0
	cursor := from
	remaining := totalDays
	for remaining > 0 {
		year, residual := m.yearIndexAt(cursor)
		if year >= len(seq.yearly) {
			year = len(seq.yearly) - 1
		}
		daysLeftInYear := 365 - residual
		step := remaining
		if step > daysLeftInYear {
			step = daysLeftInYear
		}
		if step <= 0 {
			step = remaining
		}
		multiplier *= 1.0 + NDayRate(seq.yearly[year], step)
		cursor = dateutil.AddDays(cursor, step)
		remaining -= step
	}
	return multiplier
}

// InflationFactor returns the cumulative price level at a date, base 1.0 at
// the simulation start
func (m *Market) InflationFactor(date time.Time) float64 {
	if len(m.inflationFactors) == 0 {
		return 1.0
	}
	year, _ := m.yearIndexAt(date)
	if year >= len(m.inflationFactors) {
		year = len(m.inflationFactors) - 1
	}
	return m.inflationFactors[year]
}
