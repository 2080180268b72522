package output

import (
	"bytes"
	"encoding/csv"
	"strconv"

	"github.com/finsim/plan-simulator/internal/domain"
)

// CSVDetailedExporter provides one row per iteration, sorted worst to best.
type CSVDetailedExporter struct{}

func (c CSVDetailedExporter) Name() string { return "detailed-csv" }

func (c CSVDetailedExporter) Format(result *domain.MonteCarloResult) ([]byte, error) {
	buf := &bytes.Buffer{}
	w := csv.NewWriter(buf)
	if err := w.Write([]string{"Rank", "Seed", "FinalNetWorth", "Success"}); err != nil {
		return nil, err
	}
	for i, outcome := range result.Iterations {
		row := []string{
			intToString(i + 1),
			strconv.FormatUint(outcome.Seed, 10),
			outcome.FinalNetWorth.StringFixed(2),
			boolToString(outcome.Success),
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}
