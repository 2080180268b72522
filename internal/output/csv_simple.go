package output

import (
	"bytes"
	"encoding/csv"

	"github.com/finsim/plan-simulator/internal/domain"
)

// CSVSummarizer implements the summary CSV output (one metric per row).
type CSVSummarizer struct{}

func (c CSVSummarizer) Name() string { return "csv" }

func (c CSVSummarizer) Format(result *domain.MonteCarloResult) ([]byte, error) {
	buf := &bytes.Buffer{}
	w := csv.NewWriter(buf)
	if err := w.Write([]string{"Metric", "Value", "Description"}); err != nil {
		return nil, err
	}

	p := result.Percentiles
	g := result.Growth
	rows := [][]string{
		{"Iterations", intToString(len(result.Iterations)), "Number of simulations run"},
		{"SuccessRate", FormatRate(result.SuccessRate), "Share of runs ending with positive net worth"},
		{"Outlook", Analyze(result).Grade, "Success rate classification"},
		{"P10FinalNetWorth", p.P10.StringFixed(2), "Worst 10% of market paths"},
		{"P25FinalNetWorth", p.P25.StringFixed(2), "Below average paths"},
		{"P50FinalNetWorth", p.P50.StringFixed(2), "Median path"},
		{"P75FinalNetWorth", p.P75.StringFixed(2), "Above average paths"},
		{"P90FinalNetWorth", p.P90.StringFixed(2), "Best 10% of paths"},
		{"MedianPrincipal", g.Principal.StringFixed(2), "Net worth at the start"},
		{"MedianContributions", g.Contributions.StringFixed(2), "Money that entered the plan"},
		{"MedianMarketGrowth", g.MarketGrowth.StringFixed(2), "Growth earned in the median run"},
		{"MedianWithdrawals", g.Withdrawals.StringFixed(2), "Money that left the plan"},
	}
	for _, row := range rows {
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}
