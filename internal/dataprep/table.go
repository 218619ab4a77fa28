package dataprep

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Table is a raw rectangular file: a header and string records.
type Table struct {
	Name    string
	Header  []string
	Records [][]string
	index   map[string]int
}

// NewTable builds a Table and indexes its header.
// Duplicate header names are rejected.
func NewTable(name string, header []string, records [][]string) (*Table, error) {
	t := &Table{Name: name, Header: header, Records: records, index: make(map[string]int, len(header))}
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		t.Header[i] = h
		if _, dup := t.index[h]; dup {
			return nil, fmt.Errorf("%s: duplicate column %q", name, h)
		}
		t.index[h] = i
	}
	return t, nil
}

// Has reports whether the table has a column.
func (t *Table) Has(col string) bool {
	_, ok := t.index[col]
	return ok
}

// Get returns the value of col in record, or "" when absent.
func (t *Table) Get(record []string, col string) string {
	i, ok := t.index[col]
	if !ok || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}

// Require checks that every named column exists.
func (t *Table) Require(cols ...string) error {
	for _, c := range cols {
		if !t.Has(c) {
			return fmt.Errorf("%s: missing column %q", t.Name, c)
		}
	}
	return nil
}

// ReadCSV reads a CSV table. Short rows (DataBank footers) are allowed.
func ReadCSV(name string, r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%s: failed to parse CSV: %w", name, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%s: file is empty", name)
	}
	return NewTable(name, records[0], records[1:])
}

// ReadXLSX reads the first sheet of a workbook as a table.
func ReadXLSX(name string, r io.Reader) (*Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to open workbook: %w", name, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%s: workbook has no sheets", name)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("%s: failed to read sheet %q: %w", name, sheets[0], err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%s: sheet %q is empty", name, sheets[0])
	}
	return NewTable(name, rows[0], rows[1:])
}

// ReadTableFile reads a .csv or .xlsx file depending on its extension.
func ReadTableFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	name := filepath.Base(path)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return ReadXLSX(name, f)
	case ".csv", ".txt":
		return ReadCSV(name, f)
	default:
		return nil, fmt.Errorf("%s: unsupported file type (expected .csv or .xlsx)", name)
	}
}
