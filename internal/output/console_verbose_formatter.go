package output

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/finsim/plan-simulator/internal/domain"
)

// ConsoleVerboseFormatter renders the detailed console report via the
// pluggable interface. Assumptions, when provided, are printed up top.
type ConsoleVerboseFormatter struct {
	Assumptions []string
}

func (c ConsoleVerboseFormatter) Name() string { return "console" }

func (c ConsoleVerboseFormatter) Format(result *domain.MonteCarloResult) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintln(&buf, "=================================================================================")
	fmt.Fprintln(&buf, "MONTE CARLO PLAN ANALYSIS")
	fmt.Fprintln(&buf, "=================================================================================")
	fmt.Fprintln(&buf)
	if len(c.Assumptions) > 0 {
		fmt.Fprintln(&buf, "KEY ASSUMPTIONS:")
		for _, a := range c.Assumptions {
			fmt.Fprintf(&buf, "• %s\n", a)
		}
		fmt.Fprintln(&buf)
	}

	fmt.Fprintln(&buf, "BATCH OUTCOME")
	fmt.Fprintln(&buf, "=============")
	fmt.Fprintf(&buf, "Iterations:    %d\n", len(result.Iterations))
	fmt.Fprintf(&buf, "Success Rate:  %s\n", FormatRate(result.SuccessRate))
	verdict := Analyze(result)
	fmt.Fprintf(&buf, "Outlook:       %s\n", verdict.Grade)
	fmt.Fprintln(&buf)

	fmt.Fprintln(&buf, "FINAL NET WORTH SPREAD")
	fmt.Fprintln(&buf, "----------------------")
	p := result.Percentiles
	writePercentileLine(&buf, "10th percentile", p.P10, "worst 10% of market paths")
	writePercentileLine(&buf, "25th percentile", p.P25, "below average paths")
	writePercentileLine(&buf, "50th (median)", p.P50, "typical path")
	writePercentileLine(&buf, "75th percentile", p.P75, "above average paths")
	writePercentileLine(&buf, "90th percentile", p.P90, "best 10% of paths")
	fmt.Fprintln(&buf)

	fmt.Fprintln(&buf, "WHERE THE MEDIAN OUTCOME CAME FROM")
	fmt.Fprintln(&buf, "----------------------------------")
	g := result.Growth
	fmt.Fprintf(&buf, "  Starting principal:     %s\n", FormatCurrency(g.Principal))
	fmt.Fprintf(&buf, "  Money flowing in:       %s\n", FormatCurrency(g.Contributions))
	fmt.Fprintf(&buf, "  Market growth:          %s\n", FormatCurrency(g.MarketGrowth))
	fmt.Fprintf(&buf, "  Money flowing out:      %s\n", FormatCurrency(g.Withdrawals))
	fmt.Fprintf(&buf, "  FINAL NET WORTH:        %s\n",
		FormatCurrency(g.Principal.Add(g.Contributions).Add(g.MarketGrowth).Sub(g.Withdrawals)))
	fmt.Fprintln(&buf)

	if result.MedianRun != nil {
		writeMedianRun(&buf, result.MedianRun)
	}
	return buf.Bytes(), nil
}

func writePercentileLine(buf *bytes.Buffer, label string, value decimal.Decimal, note string) {
	fmt.Fprintf(buf, "  %-18s %18s   %s\n", label+":", FormatCurrency(value), note)
}

// writeMedianRun prints the year-by-year trajectory and tax bill of the
// representative median simulation.
func writeMedianRun(buf *bytes.Buffer, run *domain.SimulationResult) {
	fmt.Fprintln(buf, "MEDIAN RUN, YEAR BY YEAR")
	fmt.Fprintln(buf, strings.Repeat("=", 50))
	fmt.Fprintf(buf, "%-12s %18s %15s\n", "YEAR END", "NET WORTH", "TOTAL TAX")

	taxByYear := make(map[int]domain.TaxSummary, len(run.YearlyTaxes))
	for _, summary := range run.YearlyTaxes {
		taxByYear[summary.Year] = summary
	}
	for _, point := range run.YearlyNetWorth() {
		tax := taxByYear[point.Date.Year()].TotalTax
		fmt.Fprintf(buf, "%-12s %18s %15s\n",
			point.Date.Format("2006-01-02"), FormatCurrency(point.Value), FormatCurrency(tax))
	}
	fmt.Fprintln(buf)

	if len(run.Warnings) > 0 {
		fmt.Fprintln(buf, "WARNINGS:")
		for _, w := range run.Warnings {
			fmt.Fprintf(buf, "  %s  %-16s %s\n", w.Date.Format("2006-01-02"), w.Kind, w.Detail)
		}
		fmt.Fprintln(buf)
	}

	if len(run.Snapshots) > 0 {
		last := run.Snapshots[len(run.Snapshots)-1]
		fmt.Fprintln(buf, "FINAL ACCOUNT BALANCES:")
		for _, acct := range last.Accounts {
			fmt.Fprintf(buf, "  %-24s %18s\n", acct.Name+":", FormatCurrency(acct.TotalValue))
		}
	}
}
