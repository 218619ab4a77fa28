package esg

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/dyluth/esgpanel/internal/panel"
	"gonum.org/v1/gonum/mat"
)

// Key identifies one country-year.
type Key struct {
	CountryName string
	CountryCode string
	Year        int
}

// Row is one country-year of a wide dataset. Values line up with the
// dataset's Columns; NaN marks a missing value.
type Row struct {
	Key
	Region      string
	IncomeGroup string
	Values      []float64
}

// Dataset is a wide country-year table.
type Dataset struct {
	Columns []string
	Rows    []Row
}

// ColumnIndex returns the position of a value column, or -1.
func (d *Dataset) ColumnIndex(name string) int {
	for i, c := range d.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Value returns row i's value for column name, NaN when absent.
func (d *Dataset) Value(i int, name string) float64 {
	j := d.ColumnIndex(name)
	if j < 0 {
		return math.NaN()
	}
	return d.Rows[i].Values[j]
}

// SortByCodeYear orders rows by country code then year.
func (d *Dataset) SortByCodeYear() {
	sort.SliceStable(d.Rows, func(i, j int) bool {
		a, b := d.Rows[i], d.Rows[j]
		if a.CountryCode != b.CountryCode {
			return a.CountryCode < b.CountryCode
		}
		return a.Year < b.Year
	})
}

// Matrix extracts complete cases for target and features: every row that
// has all of them. It returns the design matrix, the target vector and the
// keys of the rows that were kept.
func (d *Dataset) Matrix(target string, features []string) (*mat.Dense, []float64, []Row, error) {
	if len(features) == 0 {
		return nil, nil, nil, fmt.Errorf("no features requested")
	}
	ti := d.ColumnIndex(target)
	if ti < 0 {
		return nil, nil, nil, fmt.Errorf("unknown column %q", target)
	}
	fi := make([]int, len(features))
	for k, f := range features {
		fi[k] = d.ColumnIndex(f)
		if fi[k] < 0 {
			return nil, nil, nil, fmt.Errorf("unknown column %q", f)
		}
	}

	var data, y []float64
	var kept []Row
	for _, r := range d.Rows {
		if math.IsNaN(r.Values[ti]) {
			continue
		}
		complete := true
		for _, j := range fi {
			if math.IsNaN(r.Values[j]) {
				complete = false
				break
			}
		}
		if !complete {
			continue
		}
		for _, j := range fi {
			data = append(data, r.Values[j])
		}
		y = append(y, r.Values[ti])
		kept = append(kept, r)
	}
	if len(y) == 0 {
		return nil, nil, nil, fmt.Errorf("no complete rows for %s ~ %v", target, features)
	}
	return mat.NewDense(len(y), len(features), data), y, kept, nil
}

// Identifier columns written ahead of the value columns.
var idHeader = []string{"Country Name", "country_code", "Year", "Region", "Income Group"}

// Write encodes the dataset as CSV.
func (d *Dataset) Write(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(append(append([]string{}, idHeader...), d.Columns...)); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, r := range d.Rows {
		rec := []string{r.CountryName, r.CountryCode, strconv.Itoa(r.Year), r.Region, r.IncomeGroup}
		for _, v := range r.Values {
			rec = append(rec, panel.FormatValue(v))
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteFile writes the dataset to path, creating parent directories.
func (d *Dataset) WriteFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := d.Write(f); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}

// ReadDataset decodes a CSV written by Write.
func ReadDataset(r io.Reader) (*Dataset, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	if len(header) < len(idHeader) {
		return nil, fmt.Errorf("expected at least %d columns, got %d", len(idHeader), len(header))
	}
	for i, h := range idHeader {
		if header[i] != h {
			return nil, fmt.Errorf("column %d: expected %q, got %q", i+1, h, header[i])
		}
	}

	d := &Dataset{Columns: append([]string{}, header[len(idHeader):]...)}
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
		year, err := strconv.Atoi(rec[2])
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid year %q", line, rec[2])
		}
		row := Row{
			Key:         Key{CountryName: rec[0], CountryCode: rec[1], Year: year},
			Region:      rec[3],
			IncomeGroup: rec[4],
			Values:      make([]float64, len(d.Columns)),
		}
		for j := range d.Columns {
			row.Values[j] = panel.ParseValue(rec[len(idHeader)+j])
		}
		d.Rows = append(d.Rows, row)
	}
	return d, nil
}

// ReadDatasetFile reads a dataset CSV from path.
func ReadDatasetFile(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	d, err := ReadDataset(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return d, nil
}
