package pipeline

import (
	"fmt"
	"io"
	"strconv"

	"github.com/dyluth/esgpanel/internal/panel"
	"github.com/dyluth/esgpanel/internal/predict"
	"github.com/dyluth/esgpanel/internal/printer"
)

// WriteCrosstab prints the region by income group table with margins.
func WriteCrosstab(w io.Writer, t *panel.Crosstab) {
	header, rows := t.Table("Region")
	printer.Table(w, header, rows)
}

// WriteCountryMetadata prints the numbered country list.
func WriteCountryMetadata(w io.Writer, meta []panel.CountryMeta) {
	rows := make([][]string, len(meta))
	for i, m := range meta {
		rows[i] = []string{strconv.Itoa(m.Index), m.CountryName, m.CountryCode, m.Region, m.IncomeGroup}
	}
	printer.Table(w, []string{"#", "Country Name", "Country Code", "Region", "Income Group"}, rows)
}

// WriteComparisonTable prints the ranked cross-validation results.
func WriteComparisonTable(w io.Writer, c *predict.Comparison) {
	rows := make([][]string, len(c.Results))
	for i, r := range c.Results {
		rows[i] = []string{
			strconv.Itoa(i + 1), r.Model,
			fmtMetric(r.Mean.RMSE, r.Std.RMSE),
			fmtMetric(r.Mean.MAE, r.Std.MAE),
			fmtMetric(r.Mean.R2, r.Std.R2),
		}
	}
	printer.Table(w, []string{"Rank", "Model", "RMSE", "MAE", "R2"}, rows)
}

// WriteImportances prints the feature importances of the refit model.
func WriteImportances(w io.Writer, c *predict.Comparison) {
	if len(c.Importances) == 0 {
		return
	}
	rows := make([][]string, len(c.Importances))
	for i, imp := range c.Importances {
		rows[i] = []string{imp.Feature, strconv.FormatFloat(imp.Importance, 'f', 3, 64)}
	}
	fmt.Fprintf(w, "Feature importances (%s)\n", c.Importances[0].Model)
	printer.Table(w, []string{"Feature", "Importance"}, rows)
}

func fmtMetric(mean, std float64) string {
	return fmt.Sprintf("%.3f ± %.3f", mean, std)
}
