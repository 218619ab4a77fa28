package panel

import (
	"errors"
	"sort"
	"strconv"

	"go.uber.org/zap"
)

// ErrEmptySelection is returned when no country names are configured.
var ErrEmptySelection = errors.New("country list is empty")

// SelectionReport summarises a country filter.
type SelectionReport struct {
	Requested int      // names in the selection list
	Matched   int      // distinct countries kept
	Unmatched []string // requested names absent from the panel
}

// SelectCountries keeps the observations whose country name is listed.
// Missing values are kept; they are handled per model later.
func SelectCountries(p Panel, names []string, logger *zap.Logger) (Panel, SelectionReport, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(names) == 0 {
		return nil, SelectionReport{}, ErrEmptySelection
	}

	wanted := make(map[string]bool, len(names))
	for _, n := range names {
		wanted[n] = true
	}

	found := make(map[string]struct{})
	var out Panel
	for _, o := range p {
		if wanted[o.CountryName] {
			out = append(out, o)
			found[o.CountryName] = struct{}{}
		}
	}

	report := SelectionReport{Requested: len(wanted), Matched: len(found)}
	for n := range wanted {
		if _, ok := found[n]; !ok {
			report.Unmatched = append(report.Unmatched, n)
		}
	}
	sort.Strings(report.Unmatched)

	logger.Info("Filtered panel to selected countries",
		zap.Int("unique_countries", report.Matched),
		zap.Int("rows", len(out)))
	if len(report.Unmatched) > 0 {
		logger.Warn("Selected countries not present in panel", zap.Strings("names", report.Unmatched))
	}

	return out, report, nil
}

// TotalLabel names the margin row and column of a crosstab.
const TotalLabel = "Total"

// Crosstab counts unique countries per (row, column) label pair.
// Rows and Columns exclude the Total margin, which is held separately.
type Crosstab struct {
	Rows      []string
	Columns   []string
	Counts    map[string]map[string]int
	RowTotals map[string]int
	ColTotals map[string]int
	Total     int
}

// Count returns the number of countries in cell (row, col).
// Either label may be TotalLabel to read a margin.
func (c *Crosstab) Count(row, col string) int {
	switch {
	case row == TotalLabel && col == TotalLabel:
		return c.Total
	case row == TotalLabel:
		return c.ColTotals[col]
	case col == TotalLabel:
		return c.RowTotals[row]
	}
	return c.Counts[row][col]
}

// RegionIncomeTable cross-tabulates countries by region and income group.
// Countries lacking either label are left out, as are duplicates.
func RegionIncomeTable(p Panel) *Crosstab {
	type key struct{ name, region, income string }
	seen := make(map[key]bool)

	t := &Crosstab{
		Counts:    make(map[string]map[string]int),
		RowTotals: make(map[string]int),
		ColTotals: make(map[string]int),
	}
	rows := make(map[string]struct{})
	cols := make(map[string]struct{})

	for _, o := range p {
		if o.Region == "" || o.IncomeGroup == "" {
			continue
		}
		k := key{o.CountryName, o.Region, o.IncomeGroup}
		if seen[k] {
			continue
		}
		seen[k] = true

		if t.Counts[o.Region] == nil {
			t.Counts[o.Region] = make(map[string]int)
		}
		t.Counts[o.Region][o.IncomeGroup]++
		t.RowTotals[o.Region]++
		t.ColTotals[o.IncomeGroup]++
		t.Total++
		rows[o.Region] = struct{}{}
		cols[o.IncomeGroup] = struct{}{}
	}

	t.Rows = sortedKeys(rows)
	t.Columns = sortedKeys(cols)
	return t
}

// CountryMeta describes one selected country.
type CountryMeta struct {
	Index       int
	CountryName string
	CountryCode string
	Region      string
	IncomeGroup string
}

// CountryMetadata lists the distinct countries sorted by region, income
// group and name, numbered from 1.
func CountryMetadata(p Panel) []CountryMeta {
	type key struct{ name, code, region, income string }
	seen := make(map[key]bool)
	var out []CountryMeta
	for _, o := range p {
		k := key{o.CountryName, o.CountryCode, o.Region, o.IncomeGroup}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, CountryMeta{
			CountryName: o.CountryName,
			CountryCode: o.CountryCode,
			Region:      o.Region,
			IncomeGroup: o.IncomeGroup,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Region != b.Region {
			return labelLess(a.Region, b.Region)
		}
		if a.IncomeGroup != b.IncomeGroup {
			return labelLess(a.IncomeGroup, b.IncomeGroup)
		}
		return a.CountryName < b.CountryName
	})
	for i := range out {
		out[i].Index = i + 1
	}
	return out
}

// labelLess orders classification labels with unknown ("") last.
func labelLess(a, b string) bool {
	if a == "" || b == "" {
		return b == "" && a != ""
	}
	return a < b
}

// Table lays the crosstab out as rows of cells with the margins last. The
// first column holds the row labels under rowLabel.
func (c *Crosstab) Table(rowLabel string) (header []string, rows [][]string) {
	cols := append(append([]string{}, c.Columns...), TotalLabel)
	header = append([]string{rowLabel}, cols...)
	for _, r := range append(append([]string{}, c.Rows...), TotalLabel) {
		row := []string{r}
		for _, col := range cols {
			row = append(row, strconv.Itoa(c.Count(r, col)))
		}
		rows = append(rows, row)
	}
	return header, rows
}
