package output

import (
	"bytes"
	_ "embed"
	"html/template"
	"time"

	"github.com/shopspring/decimal"

	"github.com/finsim/plan-simulator/internal/domain"
)

// HTMLFormatter produces a self-contained HTML report.
type HTMLFormatter struct {
	Assumptions []string
}

func (h HTMLFormatter) Name() string { return "html" }

//go:embed templates/report.html.tmpl
var htmlTemplateSource string

var htmlTemplate = template.Must(template.New("report").Funcs(template.FuncMap{
	"curr": FormatCurrency,
	"rate": FormatRate,
	"date": func(t time.Time) string { return t.Format("2006-01-02") },
}).Parse(htmlTemplateSource))

type htmlYearPoint struct {
	Date     time.Time
	NetWorth decimal.Decimal
	TotalTax decimal.Decimal
}

func (h HTMLFormatter) Format(result *domain.MonteCarloResult) ([]byte, error) {
	var years []htmlYearPoint
	var balances []domain.AccountSnapshot
	if run := result.MedianRun; run != nil {
		taxByYear := make(map[int]decimal.Decimal, len(run.YearlyTaxes))
		for _, summary := range run.YearlyTaxes {
			taxByYear[summary.Year] = summary.TotalTax
		}
		for _, point := range run.YearlyNetWorth() {
			years = append(years, htmlYearPoint{
				Date:     point.Date,
				NetWorth: point.Value,
				TotalTax: taxByYear[point.Date.Year()],
			})
		}
		balances = FinalBalances(run)
	}

	data := struct {
		*domain.MonteCarloResult
		Verdict       Verdict
		Assumptions   []string
		IterationsRun int
		Years         []htmlYearPoint
		Balances      []domain.AccountSnapshot
	}{result, Analyze(result), h.Assumptions, len(result.Iterations), years, balances}

	var buf bytes.Buffer
	if err := htmlTemplate.Execute(&buf, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
