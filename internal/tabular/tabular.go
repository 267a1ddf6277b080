// Package tabular reads row-oriented files with a header row into a Table.
// The format is chosen from the file name suffix before any bytes are read.
package tabular

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"
)

type Format string

const (
	CSV  Format = "csv"
	XLSX Format = "xlsx"
	XLS  Format = "xls"
)

var ErrUnsupportedFormat = errors.New("unsupported format")

// FormatFromName maps a file name suffix to a Format.
func FormatFromName(name string) (Format, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv":
		return CSV, nil
	case ".xlsx":
		return XLSX, nil
	case ".xls":
		return XLS, nil
	default:
		return "", fmt.Errorf("%w: %q (expected .csv, .xls or .xlsx)", ErrUnsupportedFormat, filepath.Base(name))
	}
}

// Table is a parsed file: a header plus data rows in file order.
// Fully blank rows are dropped.
type Table struct {
	Columns []string
	Rows    [][]string
	index   map[string]int
}

func newTable(records [][]string) *Table {
	t := &Table{index: make(map[string]int)}
	if len(records) == 0 {
		return t
	}

	header := records[0]
	t.Columns = make([]string, len(header))
	for i, name := range header {
		if i == 0 {
			name = strings.TrimPrefix(name, "\ufeff")
		}
		name = strings.TrimSpace(name)
		t.Columns[i] = name
		if _, seen := t.index[name]; !seen {
			t.index[name] = i
		}
	}

	for _, rec := range records[1:] {
		if blank(rec) {
			continue
		}
		t.Rows = append(t.Rows, rec)
	}
	return t
}

// Missing returns the required columns absent from the header, in the
// order they were asked for.
func (t *Table) Missing(required ...string) []string {
	var missing []string
	for _, col := range required {
		if _, ok := t.index[col]; !ok {
			missing = append(missing, col)
		}
	}
	return missing
}

// Value returns the trimmed cell under column for row i. Short rows yield "".
func (t *Table) Value(i int, column string) string {
	idx, ok := t.index[column]
	if !ok || i < 0 || i >= len(t.Rows) {
		return ""
	}
	row := t.Rows[i]
	if idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

// Parse reads r according to format.
func Parse(format Format, r io.Reader) (*Table, error) {
	var (
		records [][]string
		err     error
	)
	switch format {
	case CSV:
		records, err = readCSV(r)
	case XLSX:
		records, err = readXLSX(r)
	case XLS:
		records, err = readXLS(r)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, errors.New("file is empty")
	}
	return newTable(records), nil
}

func readCSV(r io.Reader) ([][]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	return records, nil
}

func readXLSX(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return nil, errors.New("xlsx workbook has no sheets")
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	return rows, nil
}

func readXLS(r io.Reader) ([][]string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read xls: %w", err)
	}
	wb, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
	if err != nil {
		return nil, fmt.Errorf("open xls: %w", err)
	}
	if wb == nil {
		return nil, errors.New("open xls: no workbook stream")
	}
	sheet := wb.GetSheet(0)
	if sheet == nil {
		return nil, errors.New("xls workbook has no sheets")
	}

	// ReadAllCells skips sheets whose only row is row 0.
	if sheet.MaxRow == 0 {
		if header := xlsRow(sheet, 0); len(header) > 0 {
			return [][]string{header}, nil
		}
		return nil, nil
	}
	// Rows are concatenated across sheets; the cap keeps the first one only.
	// Rows missing from the file come back nil and are dropped as blank.
	return wb.ReadAllCells(int(sheet.MaxRow) + 1), nil
}

// xlsRow reads row i using the bounds of its ROW record. The library
// dereferences rows it never saw, so a missing row yields nil.
func xlsRow(sheet *xls.WorkSheet, i int) (rec []string) {
	defer func() {
		if recover() != nil {
			rec = nil
		}
	}()
	row := sheet.Row(i)
	rec = make([]string, row.LastCol())
	for j := row.FirstCol(); j < row.LastCol(); j++ {
		rec[j] = row.Col(j)
	}
	return rec
}

func blank(rec []string) bool {
	for _, cell := range rec {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
