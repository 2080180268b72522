package output

import (
	"fmt"

	"github.com/finsim/plan-simulator/internal/domain"
)

// GenerateAssumptions creates a human-readable assumptions list from the plan,
// rendered at the top of detailed reports.
func GenerateAssumptions(plan *domain.Plan, iterations int) []string {
	out := []string{
		fmt.Sprintf("Simulation window: %s for %d years",
			plan.StartDate.Format("2006-01-02"), plan.DurationYears),
		fmt.Sprintf("Monte Carlo iterations: %d", iterations),
	}
	for _, p := range plan.ReturnProfiles {
		out = append(out, describeProfile(p.Name, p.Kind, p.Rate, p.Mean, p.StdDev))
	}
	inf := plan.Inflation
	out = append(out, "Inflation: "+describeProfile("", inf.Kind, inf.Rate, inf.Mean, inf.StdDev))
	out = append(out, fmt.Sprintf("State tax rate: %s, capital gains rate: %s",
		FormatRate(plan.Taxes.StateRate), FormatRate(plan.Taxes.CapitalGainsRate)))
	return out
}

func describeProfile(name string, kind domain.ReturnProfileKind, rate, mean, stddev float64) string {
	prefix := ""
	if name != "" {
		prefix = name + ": "
	}
	switch kind {
	case domain.ProfileFixed:
		return fmt.Sprintf("%sfixed %.1f%% annually", prefix, rate*100)
	case domain.ProfileNormal:
		return fmt.Sprintf("%snormal, mean %.1f%% / stddev %.1f%%", prefix, mean*100, stddev*100)
	case domain.ProfileLogNormal:
		return fmt.Sprintf("%slog-normal, location %.2f / scale %.2f", prefix, mean, stddev)
	default:
		return prefix + "no growth"
	}
}
