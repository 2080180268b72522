package output

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/finsim/plan-simulator/internal/domain"
)

// JSONFormatter serializes the batch result as pretty-printed JSON.
type JSONFormatter struct{}

func (j JSONFormatter) Name() string { return "json" }

type jsonYearPoint struct {
	Date     string          `json:"date"`
	NetWorth decimal.Decimal `json:"net_worth"`
	TotalTax decimal.Decimal `json:"total_tax"`
}

type jsonWarning struct {
	Kind   string `json:"kind"`
	Date   string `json:"date"`
	Detail string `json:"detail,omitempty"`
}

type jsonBand struct {
	Date string          `json:"date"`
	P10  decimal.Decimal `json:"p10"`
	P50  decimal.Decimal `json:"p50"`
	P90  decimal.Decimal `json:"p90"`
}

type jsonYearGrowth struct {
	Year          int             `json:"year"`
	StartNetWorth decimal.Decimal `json:"start_net_worth"`
	Contributions decimal.Decimal `json:"contributions"`
	MarketGrowth  decimal.Decimal `json:"market_growth"`
	Withdrawals   decimal.Decimal `json:"withdrawals"`
	EndNetWorth   decimal.Decimal `json:"end_net_worth"`
}

type jsonReport struct {
	Iterations   int                     `json:"iterations"`
	SuccessRate  decimal.Decimal         `json:"success_rate"`
	Outlook      string                  `json:"outlook"`
	Percentiles  domain.PercentileRanges `json:"percentiles"`
	Growth       domain.GrowthComponents `json:"growth"`
	Bands        []jsonBand              `json:"bands,omitempty"`
	YearlyGrowth []jsonYearGrowth        `json:"yearly_growth,omitempty"`
	MedianYears  []jsonYearPoint         `json:"median_yearly,omitempty"`
	Warnings     []jsonWarning           `json:"warnings,omitempty"`
}

func (j JSONFormatter) Format(result *domain.MonteCarloResult) ([]byte, error) {
	report := jsonReport{
		Iterations:  len(result.Iterations),
		SuccessRate: result.SuccessRate,
		Outlook:     Analyze(result).Grade,
		Percentiles: result.Percentiles,
		Growth:      result.Growth,
	}
	for _, band := range result.Bands {
		report.Bands = append(report.Bands, jsonBand{
			Date: band.Date.Format(time.DateOnly),
			P10:  band.P10,
			P50:  band.P50,
			P90:  band.P90,
		})
	}
	for _, yg := range result.YearlyGrowth {
		report.YearlyGrowth = append(report.YearlyGrowth, jsonYearGrowth{
			Year:          yg.Year,
			StartNetWorth: yg.StartNetWorth,
			Contributions: yg.Contributions,
			MarketGrowth:  yg.MarketGrowth,
			Withdrawals:   yg.Withdrawals,
			EndNetWorth:   yg.EndNetWorth,
		})
	}
	if run := result.MedianRun; run != nil {
		taxByYear := make(map[int]decimal.Decimal, len(run.YearlyTaxes))
		for _, summary := range run.YearlyTaxes {
			taxByYear[summary.Year] = summary.TotalTax
		}
		for _, point := range run.YearlyNetWorth() {
			report.MedianYears = append(report.MedianYears, jsonYearPoint{
				Date:     point.Date.Format(time.DateOnly),
				NetWorth: point.Value,
				TotalTax: taxByYear[point.Date.Year()],
			})
		}
		for _, w := range run.Warnings {
			report.Warnings = append(report.Warnings, jsonWarning{
				Kind:   string(w.Kind),
				Date:   w.Date.Format(time.DateOnly),
				Detail: w.Detail,
			})
		}
	}
	return json.MarshalIndent(report, "", "  ")
}
