package output

import (
	"bytes"
	"encoding/csv"
	"sort"
	"time"

	"github.com/finsim/plan-simulator/internal/domain"
)

// MedianRunCSVExporter exports the year-by-year trajectory of the median
// simulation: net worth, boundary flows, and the year's tax bill.
type MedianRunCSVExporter struct{}

func (m MedianRunCSVExporter) Name() string { return "median-csv" }

func (m MedianRunCSVExporter) Format(result *domain.MonteCarloResult) ([]byte, error) {
	buf := &bytes.Buffer{}
	w := csv.NewWriter(buf)
	header := []string{"Date", "NetWorth", "OrdinaryIncome", "CapitalGains", "FederalTax", "StateTax", "TotalTax"}
	if err := w.Write(header); err != nil {
		return nil, err
	}

	run := result.MedianRun
	if run == nil {
		w.Flush()
		return buf.Bytes(), w.Error()
	}

	taxByYear := make(map[int]domain.TaxSummary, len(run.YearlyTaxes))
	for _, summary := range run.YearlyTaxes {
		taxByYear[summary.Year] = summary
	}
	for _, point := range run.YearlyNetWorth() {
		tax := taxByYear[point.Date.Year()]
		row := []string{
			point.Date.Format(time.DateOnly),
			point.Value.StringFixed(2),
			tax.OrdinaryIncome.StringFixed(2),
			tax.CapitalGains.StringFixed(2),
			tax.FederalTax.StringFixed(2),
			tax.StateTax.StringFixed(2),
			tax.TotalTax.StringFixed(2),
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

// FinalBalances lists the median run's final per-account values, largest
// first, for report footers.
func FinalBalances(run *domain.SimulationResult) []domain.AccountSnapshot {
	if run == nil || len(run.Snapshots) == 0 {
		return nil
	}
	last := run.Snapshots[len(run.Snapshots)-1]
	out := append([]domain.AccountSnapshot(nil), last.Accounts...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].TotalValue.GreaterThan(out[j].TotalValue)
	})
	return out
}
