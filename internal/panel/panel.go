// Package panel holds the long country-year panel shared by every pipeline
// stage: one Observation per (country, indicator, year), with the country's
// World Bank region and income group attached.
package panel

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
)

// Column headers of the long panel CSV, in file order.
var Header = []string{
	"Country Name", "Country Code", "Indicator", "Year", "Value",
	"Category", "Source", "Region", "Income Group",
}

// Observation is a single long-format row.
// Value is NaN when the source reported no data.
type Observation struct {
	CountryName string
	CountryCode string
	Indicator   string
	Year        int
	Value       float64
	Category    string
	Source      string
	Region      string
	IncomeGroup string
}

// HasValue reports whether the observation carries a number.
func (o Observation) HasValue() bool {
	return !math.IsNaN(o.Value)
}

// Panel is a slice of observations with table-level helpers.
type Panel []Observation

// Countries returns the distinct country names, sorted.
func (p Panel) Countries() []string {
	set := make(map[string]struct{})
	for _, o := range p {
		set[o.CountryName] = struct{}{}
	}
	return sortedKeys(set)
}

// Indicators returns the distinct indicator names, sorted.
func (p Panel) Indicators() []string {
	set := make(map[string]struct{})
	for _, o := range p {
		set[o.Indicator] = struct{}{}
	}
	return sortedKeys(set)
}

// YearRange returns the smallest and largest year in the panel.
func (p Panel) YearRange() (int, int) {
	if len(p) == 0 {
		return 0, 0
	}
	lo, hi := p[0].Year, p[0].Year
	for _, o := range p[1:] {
		if o.Year < lo {
			lo = o.Year
		}
		if o.Year > hi {
			hi = o.Year
		}
	}
	return lo, hi
}

// MissingShare returns the fraction of observations without a value.
func (p Panel) MissingShare() float64 {
	if len(p) == 0 {
		return 0
	}
	missing := 0
	for _, o := range p {
		if !o.HasValue() {
			missing++
		}
	}
	return float64(missing) / float64(len(p))
}

// SortStable orders the panel by country code, year and category,
// keeping the input order for ties.
func (p Panel) SortStable() {
	sort.SliceStable(p, func(i, j int) bool {
		a, b := p[i], p[j]
		if a.CountryCode != b.CountryCode {
			return a.CountryCode < b.CountryCode
		}
		if a.Year != b.Year {
			return a.Year < b.Year
		}
		return a.Category < b.Category
	})
}

// FormatValue renders a value for CSV output; NaN becomes an empty field.
func FormatValue(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// ParseValue parses a CSV field, treating blanks and non-numbers as NaN.
func ParseValue(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

// Write encodes the panel as CSV with the long-format header.
func Write(w io.Writer, p Panel) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, o := range p {
		record := []string{
			o.CountryName, o.CountryCode, o.Indicator, strconv.Itoa(o.Year),
			FormatValue(o.Value), o.Category, o.Source, o.Region, o.IncomeGroup,
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteFile writes the panel to path, creating parent directories.
func WriteFile(path string, p Panel) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := Write(f, p); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}

// Read decodes a long-format CSV. Columns are matched by header name,
// so extra columns are ignored and order does not matter.
func Read(r io.Reader) (Panel, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[h] = i
	}
	for _, required := range []string{"Country Name", "Country Code", "Indicator", "Year", "Value"} {
		if _, ok := idx[required]; !ok {
			return nil, fmt.Errorf("missing column %q", required)
		}
	}

	field := func(rec []string, name string) string {
		i, ok := idx[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return rec[i]
	}

	var p Panel
	line := 1
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		year, err := strconv.Atoi(field(rec, "Year"))
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid year %q", line, field(rec, "Year"))
		}
		p = append(p, Observation{
			CountryName: field(rec, "Country Name"),
			CountryCode: field(rec, "Country Code"),
			Indicator:   field(rec, "Indicator"),
			Year:        year,
			Value:       ParseValue(field(rec, "Value")),
			Category:    field(rec, "Category"),
			Source:      field(rec, "Source"),
			Region:      field(rec, "Region"),
			IncomeGroup: field(rec, "Income Group"),
		})
	}
	return p, nil
}

// ReadFile reads a long-format CSV from path.
func ReadFile(path string) (Panel, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	p, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return p, nil
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
