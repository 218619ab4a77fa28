// Package dashboard renders a single self-contained HTML page summarising
// a run of the pipeline: the panel, the ESG index trends, the fixed-effects
// coefficients and the model comparison.
package dashboard

import (
	"fmt"
	"html/template"
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/dyluth/esgpanel/internal/esg"
	"github.com/dyluth/esgpanel/internal/fe"
	"github.com/dyluth/esgpanel/internal/panel"
	"github.com/dyluth/esgpanel/internal/predict"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/plot/vg"
)

// Inputs are the stage outputs a dashboard is built from. Any of them may
// be nil; the matching section is then left out.
type Inputs struct {
	Panel       panel.Panel
	Dataset     *esg.Dataset
	Regression  *fe.Result
	Comparison  *predict.Comparison
	GeneratedAt time.Time
}

// PanelSummary describes the selected panel.
type PanelSummary struct {
	Observations int
	Countries    int
	Indicators   int
	FirstYear    int
	LastYear     int
	MissingPct   string
}

// TableView is a pre-formatted table.
type TableView struct {
	Header []string
	Rows   [][]string
}

// Series is one line of the trend chart.
type Series struct {
	Name   string
	Years  []int
	Values []float64 // NaN where no country had a value
}

// Data is everything the page template needs.
type Data struct {
	Title       string
	GeneratedAt string
	Panel       *PanelSummary
	Crosstab    *TableView
	Trends      []Series
	Regression  *fe.Result
	Coefs       []fe.Coefficient
	Comparison  *predict.Comparison

	// Charts as inline SVG, empty when there is nothing to plot.
	TrendSVG template.HTML
	CoefSVG  template.HTML
	RMSESVG  template.HTML
}

// Build gathers the dashboard data from in and draws its charts.
func Build(in Inputs) (*Data, error) {
	if in.GeneratedAt.IsZero() {
		in.GeneratedAt = time.Now()
	}
	d := &Data{
		Title:       "ESG and economic growth: panel results",
		GeneratedAt: in.GeneratedAt.UTC().Format(time.RFC3339),
	}

	if len(in.Panel) > 0 {
		first, last := in.Panel.YearRange()
		d.Panel = &PanelSummary{
			Observations: len(in.Panel),
			Countries:    len(in.Panel.Countries()),
			Indicators:   len(in.Panel.Indicators()),
			FirstYear:    first,
			LastYear:     last,
			MissingPct:   strconv.FormatFloat(100*in.Panel.MissingShare(), 'f', 1, 64) + "%",
		}
		d.Crosstab = crosstabView(panel.RegionIncomeTable(in.Panel))
	}

	if in.Dataset != nil {
		d.Trends = YearlyMeans(in.Dataset, []string{esg.ColumnENV, esg.ColumnSOC, esg.ColumnGOV})
		p, err := TrendPlot(d.Trends)
		if err != nil {
			return nil, err
		}
		if d.TrendSVG, err = inlineSVG(p, 8*vg.Centimeter); err != nil {
			return nil, err
		}
	}

	if in.Regression != nil {
		d.Regression = in.Regression
		for _, c := range in.Regression.Regressors() {
			if c.Name != "Intercept" {
				d.Coefs = append(d.Coefs, c)
			}
		}
		p, err := CoefPlot(d.Coefs)
		if err != nil {
			return nil, fmt.Errorf("coefficient chart: %w", err)
		}
		if d.CoefSVG, err = inlineSVG(p, rowsHeight(len(d.Coefs))); err != nil {
			return nil, err
		}
	}

	if in.Comparison != nil {
		d.Comparison = in.Comparison
		p, err := RMSEPlot(in.Comparison.Results)
		if err != nil {
			return nil, fmt.Errorf("model comparison chart: %w", err)
		}
		if d.RMSESVG, err = inlineSVG(p, rowsHeight(len(in.Comparison.Results))); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// YearlyMeans averages each column across countries for every year present
// in d. Columns missing from d are skipped.
func YearlyMeans(d *esg.Dataset, columns []string) []Series {
	yearSet := make(map[int]struct{})
	for _, r := range d.Rows {
		yearSet[r.Year] = struct{}{}
	}
	years := make([]int, 0, len(yearSet))
	for y := range yearSet {
		years = append(years, y)
	}
	sort.Ints(years)
	pos := make(map[int]int, len(years))
	for i, y := range years {
		pos[y] = i
	}

	var out []Series
	for _, col := range columns {
		j := d.ColumnIndex(col)
		if j < 0 {
			continue
		}
		buckets := make([][]float64, len(years))
		for _, r := range d.Rows {
			if v := r.Values[j]; !math.IsNaN(v) {
				buckets[pos[r.Year]] = append(buckets[pos[r.Year]], v)
			}
		}
		s := Series{Name: col, Years: years, Values: make([]float64, len(years))}
		for i, b := range buckets {
			if len(b) == 0 {
				s.Values[i] = math.NaN()
				continue
			}
			s.Values[i] = stat.Mean(b, nil)
		}
		out = append(out, s)
	}
	return out
}

func crosstabView(t *panel.Crosstab) *TableView {
	header, rows := t.Table("Region")
	return &TableView{Header: header, Rows: rows}
}
