package calculation

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/finsim/plan-simulator/internal/domain"
)

// maxConcurrentSimulations bounds the worker fan-out
const maxConcurrentSimulations = 10

// MonteCarloEngine fans a plan out across many independent simulations,
// each under its own sampled market path, and aggregates the outcomes.
type MonteCarloEngine struct {
	Plan       *domain.Plan
	Iterations int
	BaseSeed   uint64
	Logger     Logger
}

// NewMonteCarloEngine creates a batch runner. Iteration seeds are derived
// from the base seed, so the whole batch is reproducible.
func NewMonteCarloEngine(plan *domain.Plan, iterations int, baseSeed uint64) *MonteCarloEngine {
	return &MonteCarloEngine{
		Plan:       plan,
		Iterations: iterations,
		BaseSeed:   baseSeed,
		Logger:     NopLogger{},
	}
}

// SetLogger sets the batch logger. Nil restores the no-op logger.
func (m *MonteCarloEngine) SetLogger(l Logger) {
	if l == nil {
		m.Logger = NopLogger{}
		return
	}
	m.Logger = l
}

// seedFor derives the seed of one iteration from the base seed. A splitmix64
// step keeps neighboring iterations from sampling correlated rate paths.
func (m *MonteCarloEngine) seedFor(index int) uint64 {
	z := m.BaseSeed + uint64(index+1)*0x9E3779B97F4A7C15
	z = (z ^ (z >> 30)) * 0xBF58476D1CE4E5B9
	z = (z ^ (z >> 27)) * 0x94D049BB133111EB
	return z ^ (z >> 31)
}

// Run executes the batch and aggregates percentiles, success rate, and the
// growth decomposition of the median run.
func (m *MonteCarloEngine) Run(ctx context.Context) (*domain.MonteCarloResult, error) {
	if m.Iterations <= 0 {
		return nil, fmt.Errorf("iterations must be positive, got %d", m.Iterations)
	}

	outcomes := make([]domain.IterationOutcome, m.Iterations)
	errs := make([]error, m.Iterations)

	var wg sync.WaitGroup
	semaphore := make(chan struct{}, maxConcurrentSimulations)

	for i := 0; i < m.Iterations; i++ {
		wg.Add(1)
		go func(index int) {
			defer wg.Done()
			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			if err := ctx.Err(); err != nil {
				errs[index] = err
				return
			}

			seed := m.seedFor(index)
			plan := m.iterationPlan()
			engine := NewEngine(plan)

			result, err := engine.Run(ctx, seed)
			if err != nil {
				errs[index] = fmt.Errorf("iteration %d (seed %d): %w", index, seed, err)
				return
			}

			finalNetWorth := result.FinalNetWorth()
			yearly := result.YearlyNetWorth()
			trace := make([]decimal.Decimal, len(yearly))
			for i, point := range yearly {
				trace[i] = point.Value
			}
			outcomes[index] = domain.IterationOutcome{
				Seed:           seed,
				FinalNetWorth:  finalNetWorth,
				YearlyNetWorth: trace,
				Success:        finalNetWorth.IsPositive(),
			}
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	sort.SliceStable(outcomes, func(i, j int) bool {
		return outcomes[i].FinalNetWorth.LessThan(outcomes[j].FinalNetWorth)
	})

	successes := 0
	for _, o := range outcomes {
		if o.Success {
			successes++
		}
	}

	percentiles := domain.PercentileRanges{
		P10: percentileOf(outcomes, 0.10),
		P25: percentileOf(outcomes, 0.25),
		P50: percentileOf(outcomes, 0.50),
		P75: percentileOf(outcomes, 0.75),
		P90: percentileOf(outcomes, 0.90),
	}

	// Re-run the median seed with the full ledger for reporting
	medianSeed := outcomes[percentileIndex(len(outcomes), 0.50)].Seed
	medianPlan := m.iterationPlan()
	medianPlan.CollectLedger = true
	medianRun, err := NewEngine(medianPlan).Run(ctx, medianSeed)
	if err != nil {
		return nil, fmt.Errorf("median re-run (seed %d): %w", medianSeed, err)
	}

	return &domain.MonteCarloResult{
		Iterations:   outcomes,
		SuccessRate:  decimal.NewFromInt(int64(successes)).Div(decimal.NewFromInt(int64(m.Iterations))),
		Percentiles:  percentiles,
		Growth:       decomposeGrowth(medianRun),
		Bands:        computeBands(outcomes, medianRun),
		YearlyGrowth: decomposeGrowthByYear(medianRun),
		MedianRun:    medianRun,
	}, nil
}

// iterationPlan shallow-copies the plan so per-run flags never leak between
// iterations. Accounts are deep-copied by each engine's state, not here.
func (m *MonteCarloEngine) iterationPlan() *domain.Plan {
	plan := *m.Plan
	plan.CollectLedger = false
	return &plan
}

func percentileIndex(n int, p float64) int {
	idx := int(float64(n) * p)
	if idx >= n {
		idx = n - 1
	}
	return idx
}

// percentileOf reads the p-th percentile from outcomes already sorted by
// final net worth
func percentileOf(sorted []domain.IterationOutcome, p float64) decimal.Decimal {
	if len(sorted) == 0 {
		return decimal.Zero
	}
	return sorted[percentileIndex(len(sorted), p)].FinalNetWorth
}

// computeBands ranks the batch's year-end net worth date by date and reads
// the 10th, 50th, and 90th percentile at each. Because every date is ranked
// independently, p10 <= p50 <= p90 holds at every point even though no
// single run traces any of the three lines.
func computeBands(outcomes []domain.IterationOutcome, medianRun *domain.SimulationResult) []domain.NetWorthBand {
	points := medianRun.YearlyNetWorth()
	bands := make([]domain.NetWorthBand, 0, len(points))
	for i, point := range points {
		values := make([]decimal.Decimal, 0, len(outcomes))
		for _, o := range outcomes {
			if i < len(o.YearlyNetWorth) {
				values = append(values, o.YearlyNetWorth[i])
			}
		}
		if len(values) == 0 {
			continue
		}
		sort.Slice(values, func(a, b int) bool { return values[a].LessThan(values[b]) })
		bands = append(bands, domain.NetWorthBand{
			Date: point.Date,
			P10:  values[percentileIndex(len(values), 0.10)],
			P50:  values[percentileIndex(len(values), 0.50)],
			P90:  values[percentileIndex(len(values), 0.90)],
		})
	}
	return bands
}

// decomposeGrowth splits a run's final net worth into starting principal,
// external contributions, market growth, and withdrawals. Market growth is
// the residual after the boundary flows are accounted for.
func decomposeGrowth(run *domain.SimulationResult) domain.GrowthComponents {
	principal := decimal.Zero
	if len(run.Snapshots) > 0 {
		principal = run.Snapshots[0].NetWorth()
	}
	final := run.FinalNetWorth()

	return domain.GrowthComponents{
		Principal:     principal,
		Contributions: run.ExternalInflows,
		MarketGrowth:  final.Sub(principal).Sub(run.ExternalInflows).Add(run.ExternalOutflows),
		Withdrawals:   run.ExternalOutflows,
	}
}

// decomposeGrowthByYear splits each calendar year's change in net worth into
// its boundary flows and market growth, walking the run's year boundary
// snapshots. Each row satisfies end = start + contributions + growth -
// withdrawals, and the rows chain: one year's end is the next year's start.
func decomposeGrowthByYear(run *domain.SimulationResult) []domain.YearGrowth {
	if len(run.Snapshots) == 0 {
		return nil
	}
	flows := make(map[int]domain.YearFlow, len(run.YearlyFlows))
	for _, f := range run.YearlyFlows {
		flows[f.Year] = f
	}

	// year boundaries: the starting snapshot, each Dec 31, and the final
	// snapshot when the run stops mid-year
	boundaries := []domain.WealthSnapshot{run.Snapshots[0]}
	for _, snap := range run.Snapshots[1:] {
		if snap.Date.Month() == time.December && snap.Date.Day() == 31 {
			boundaries = append(boundaries, snap)
		}
	}
	last := run.Snapshots[len(run.Snapshots)-1]
	if !last.Date.Equal(boundaries[len(boundaries)-1].Date) {
		boundaries = append(boundaries, last)
	}

	out := make([]domain.YearGrowth, 0, len(boundaries)-1)
	for i := 1; i < len(boundaries); i++ {
		start := boundaries[i-1].NetWorth()
		end := boundaries[i].NetWorth()
		f := flows[boundaries[i].Date.Year()]
		out = append(out, domain.YearGrowth{
			Year:          boundaries[i].Date.Year(),
			StartNetWorth: start,
			Contributions: f.Inflows,
			MarketGrowth:  end.Sub(start).Sub(f.Inflows).Add(f.Outflows),
			Withdrawals:   f.Outflows,
			EndNetWorth:   end,
		})
	}
	return out
}
