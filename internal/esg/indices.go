// Package esg builds the fixed-effects regression dataset from the long
// panel: one standardised index per ESG pillar, joined with the economic
// indicators pivoted to columns.
package esg

import (
	"math"
	"sort"

	"github.com/dyluth/esgpanel/internal/config"
	"github.com/dyluth/esgpanel/internal/panel"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"
)

// Pillar index column names
const (
	ColumnENV = "ENV_index"
	ColumnSOC = "SOC_index"
	ColumnGOV = "GOV_index"
)

// IndexColumn returns the dataset column for an ESG pillar letter.
func IndexColumn(category string) string {
	switch category {
	case "E":
		return ColumnENV
	case "S":
		return ColumnSOC
	case "G":
		return ColumnGOV
	}
	return category + "_index"
}

// zScorer standardises signed values within one indicator.
type zScorer struct {
	mean, std float64
	ok        bool
}

func newZScorer(values []float64) zScorer {
	if len(values) < 2 {
		return zScorer{}
	}
	mean, std := stat.MeanStdDev(values, nil)
	if std == 0 || math.IsNaN(std) {
		return zScorer{}
	}
	return zScorer{mean: mean, std: std, ok: true}
}

func (z zScorer) score(v float64) float64 {
	if !z.ok || math.IsNaN(v) {
		return math.NaN()
	}
	return (v - z.mean) / z.std
}

// BuildIndices returns one row per country-year with the ENV, GOV and SOC
// indices. Each mapped indicator is multiplied by its direction so that
// higher always means better, standardised across all countries and years
// (sample standard deviation), then averaged within its pillar over the
// indicators available that year. A pillar with no available indicator is
// NaN. Rows are sorted by country code and year.
func BuildIndices(p panel.Panel, specs []config.ESGIndicator, logger *zap.Logger) *Dataset {
	if logger == nil {
		logger = zap.NewNop()
	}
	byName := make(map[string]config.ESGIndicator, len(specs))
	for _, s := range specs {
		byName[s.Name] = s
	}

	signed := make(map[string][]float64)
	for _, o := range p {
		s, ok := byName[o.Indicator]
		if !ok || !o.HasValue() {
			continue
		}
		signed[o.Indicator] = append(signed[o.Indicator], o.Value*float64(s.Direction))
	}
	scorers := make(map[string]zScorer, len(signed))
	for name, vals := range signed {
		scorers[name] = newZScorer(vals)
		if !scorers[name].ok {
			logger.Warn("Indicator cannot be standardised", zap.String("indicator", name), zap.Int("values", len(vals)))
		}
	}

	categories := categoriesOf(specs)
	columns := make([]string, len(categories))
	catPos := make(map[string]int, len(categories))
	for i, c := range categories {
		columns[i] = IndexColumn(c)
		catPos[c] = i
	}

	type acc struct {
		sum []float64
		n   []int
	}
	rows := make(map[Key]*acc)
	var order []Key
	for _, o := range p {
		s, ok := byName[o.Indicator]
		if !ok {
			continue
		}
		k := Key{CountryName: o.CountryName, CountryCode: o.CountryCode, Year: o.Year}
		a, seen := rows[k]
		if !seen {
			a = &acc{sum: make([]float64, len(categories)), n: make([]int, len(categories))}
			rows[k] = a
			order = append(order, k)
		}
		z := scorers[o.Indicator].score(o.Value * float64(s.Direction))
		if math.IsNaN(z) {
			continue
		}
		j := catPos[s.Category]
		a.sum[j] += z
		a.n[j]++
	}

	d := &Dataset{Columns: columns}
	for _, k := range order {
		a := rows[k]
		vals := make([]float64, len(categories))
		for j := range vals {
			if a.n[j] == 0 {
				vals[j] = math.NaN()
			} else {
				vals[j] = a.sum[j] / float64(a.n[j])
			}
		}
		d.Rows = append(d.Rows, Row{Key: k, Values: vals})
	}
	d.SortByCodeYear()
	return d
}

// BuildEconWide pivots the economic indicators to one column each, taking
// the mean of duplicates. A country-year appears when it has a known
// region and income group and at least one economic value. Columns follow the indicators'
// names in sorted order.
func BuildEconWide(p panel.Panel, specs []config.EconIndicator) *Dataset {
	sorted := append([]config.EconIndicator{}, specs...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	pos := make(map[string]int, len(sorted))
	columns := make([]string, len(sorted))
	for i, s := range sorted {
		pos[s.Name] = i
		columns[i] = s.Column
	}

	type acc struct {
		row Row
		sum []float64
		n   []int
	}
	type wideKey struct {
		Key
		region, income string
	}
	rows := make(map[wideKey]*acc)
	var order []wideKey
	for _, o := range p {
		j, ok := pos[o.Indicator]
		if !ok || !o.HasValue() || o.Region == "" || o.IncomeGroup == "" {
			continue
		}
		k := wideKey{Key{o.CountryName, o.CountryCode, o.Year}, o.Region, o.IncomeGroup}
		a, seen := rows[k]
		if !seen {
			a = &acc{
				row: Row{Key: k.Key, Region: o.Region, IncomeGroup: o.IncomeGroup},
				sum: make([]float64, len(columns)),
				n:   make([]int, len(columns)),
			}
			rows[k] = a
			order = append(order, k)
		}
		a.sum[j] += o.Value
		a.n[j]++
	}

	d := &Dataset{Columns: columns}
	for _, k := range order {
		a := rows[k]
		a.row.Values = make([]float64, len(columns))
		for j := range columns {
			if a.n[j] == 0 {
				a.row.Values[j] = math.NaN()
			} else {
				a.row.Values[j] = a.sum[j] / float64(a.n[j])
			}
		}
		d.Rows = append(d.Rows, a.row)
	}
	d.SortByCodeYear()
	return d
}

// BuildRegressionDataset left-joins the economic pivot with the ESG indices
// on country and year. Economic rows without indices keep NaN indices.
func BuildRegressionDataset(p panel.Panel, cfg *config.Config, logger *zap.Logger) *Dataset {
	if logger == nil {
		logger = zap.NewNop()
	}
	econ := BuildEconWide(p, cfg.EconIndicators)
	indices := BuildIndices(p, cfg.ESGIndicators, logger)

	byKey := make(map[Key][]float64, len(indices.Rows))
	for _, r := range indices.Rows {
		byKey[r.Key] = r.Values
	}

	d := &Dataset{Columns: append(append([]string{}, econ.Columns...), indices.Columns...)}
	matched := 0
	for _, r := range econ.Rows {
		vals := append([]float64{}, r.Values...)
		if idx, ok := byKey[r.Key]; ok {
			vals = append(vals, idx...)
			matched++
		} else {
			for range indices.Columns {
				vals = append(vals, math.NaN())
			}
		}
		d.Rows = append(d.Rows, Row{Key: r.Key, Region: r.Region, IncomeGroup: r.IncomeGroup, Values: vals})
	}
	d.SortByCodeYear()

	logger.Info("Regression dataset built",
		zap.Int("rows", len(d.Rows)),
		zap.Int("rows_with_indices", matched),
		zap.Strings("columns", d.Columns))
	return d
}

func categoriesOf(specs []config.ESGIndicator) []string {
	set := make(map[string]bool)
	var out []string
	for _, s := range specs {
		if !set[s.Category] {
			set[s.Category] = true
			out = append(out, s.Category)
		}
	}
	sort.Strings(out)
	return out
}
