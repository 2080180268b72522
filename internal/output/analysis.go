package output

import (
	"github.com/shopspring/decimal"

	"github.com/finsim/plan-simulator/internal/domain"
)

// Verdict summarizes how a Monte Carlo batch turned out, for human-facing
// reports. Extracted from embedded console logic for testability.
type Verdict struct {
	Grade       string
	SuccessRate decimal.Decimal
	// Spread is P90 minus P10, the width of plausible outcomes.
	Spread decimal.Decimal
	// DownsideRuined is set when even the 10th percentile ends underwater.
	DownsideRuined bool
}

var (
	gradeComfortable = decimal.NewFromFloat(0.95)
	gradeLikely      = decimal.NewFromFloat(0.80)
	gradeUncertain   = decimal.NewFromFloat(0.60)
)

// Analyze grades a batch by its success rate and outcome spread.
func Analyze(result *domain.MonteCarloResult) Verdict {
	v := Verdict{
		SuccessRate:    result.SuccessRate,
		Spread:         result.Percentiles.P90.Sub(result.Percentiles.P10),
		DownsideRuined: result.Percentiles.P10.IsNegative(),
	}
	switch {
	case result.SuccessRate.GreaterThanOrEqual(gradeComfortable):
		v.Grade = "comfortable"
	case result.SuccessRate.GreaterThanOrEqual(gradeLikely):
		v.Grade = "likely"
	case result.SuccessRate.GreaterThanOrEqual(gradeUncertain):
		v.Grade = "uncertain"
	default:
		v.Grade = "at risk"
	}
	return v
}
