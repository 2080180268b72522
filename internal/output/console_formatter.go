package output

import (
	"bytes"
	"fmt"

	"github.com/finsim/plan-simulator/internal/domain"
)

// ConsoleFormatter provides a concise console style summary via the formatter interface.
type ConsoleFormatter struct{}

func (c ConsoleFormatter) Name() string { return "console-lite" }

func (c ConsoleFormatter) Format(result *domain.MonteCarloResult) ([]byte, error) {
	var buf bytes.Buffer
	fmt.Fprintln(&buf, "PLAN SIMULATION SUMMARY")
	fmt.Fprintln(&buf, "================================")
	fmt.Fprintf(&buf, "Iterations:   %d\n", len(result.Iterations))
	fmt.Fprintf(&buf, "Success Rate: %s\n", FormatRate(result.SuccessRate))
	fmt.Fprintln(&buf)

	p := result.Percentiles
	fmt.Fprintf(&buf, "Final net worth: P10=%s P25=%s P50=%s P75=%s P90=%s\n",
		FormatCurrency(p.P10), FormatCurrency(p.P25), FormatCurrency(p.P50),
		FormatCurrency(p.P75), FormatCurrency(p.P90))

	g := result.Growth
	fmt.Fprintf(&buf, "Median composition: principal %s + contributions %s + growth %s - withdrawals %s\n",
		FormatCurrency(g.Principal), FormatCurrency(g.Contributions),
		FormatCurrency(g.MarketGrowth), FormatCurrency(g.Withdrawals))

	verdict := Analyze(result)
	fmt.Fprintln(&buf)
	fmt.Fprintf(&buf, "Outlook: %s (spread %s)\n", verdict.Grade, FormatCurrency(verdict.Spread))
	if verdict.DownsideRuined {
		fmt.Fprintln(&buf, "Warning: the 10th percentile outcome ends below zero")
	}
	return buf.Bytes(), nil
}
