// Package table reads asset tables into records and writes classified
// records and catalogs back out as XLSX, CSV or JSON Lines.
package table

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/macropower/cablecat/pkg/record"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported format")
	ErrMissingColumn     = errors.New("missing required column")
	ErrDuplicateColumn   = errors.New("duplicate column")
	ErrNoSheet           = errors.New("sheet not found")
)

// Issue is a cell that could not be typed. The cell reads as absent.
type Issue struct {
	Err    error
	Column string
	// Row is the 1-based row number in the source.
	Row int
}

func (i Issue) String() string {
	return fmt.Sprintf("row %d: %v", i.Row, i.Err)
}

// Table is a decoded input table.
type Table struct {
	// Columns lists the column names in source order.
	Columns []string
	Records []record.Record
	Issues  []Issue
	// Skipped counts rows dropped for a blank identity field.
	Skipped int
}

// Reader decodes tables against a [record.Schema].
type Reader struct {
	schema   *record.Schema
	drop     map[int]bool
	sheet    string
	skipRows int
	header   bool
}

// ReaderOpt configures a [Reader].
type ReaderOpt func(r *Reader)

// WithSkipRows skips n banner rows at the top of the table.
func WithSkipRows(n int) ReaderOpt {
	return func(r *Reader) {
		r.skipRows = n
	}
}

// WithDropColumns removes the columns at the given zero-based indexes
// before columns are named.
func WithDropColumns(idx ...int) ReaderOpt {
	return func(r *Reader) {
		for _, i := range idx {
			r.drop[i] = true
		}
	}
}

// WithHeader reads column names from the first row. Without it, columns
// map to the schema fields in declaration order.
func WithHeader(header bool) ReaderOpt {
	return func(r *Reader) {
		r.header = header
	}
}

// WithSheet selects the XLSX sheet. Defaults to the first sheet.
func WithSheet(name string) ReaderOpt {
	return func(r *Reader) {
		r.sheet = name
	}
}

// NewReader creates a new [Reader].
func NewReader(schema *record.Schema, opts ...ReaderOpt) *Reader {
	r := &Reader{schema: schema, drop: map[int]bool{}}
	for _, opt := range opts {
		opt(r)
	}

	return r
}

// ReadFile reads the table at path. The format follows the extension.
func (r *Reader) ReadFile(ctx context.Context, path string) (*Table, error) {
	f, err := os.Open(path) //nolint:gosec // G304: Reading user-provided input is the point.
	if err != nil {
		return nil, fmt.Errorf("open table: %w", err)
	}

	defer func() {
		err := f.Close()
		if err != nil {
			slog.ErrorContext(ctx, "close table", slog.String("path", path), slog.Any("error", err))
		}
	}()

	var t *Table

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".xlsx", ".xlsm":
		t, err = r.ReadXLSX(f)
	case ".csv":
		t, err = r.ReadCSV(f)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	slog.DebugContext(ctx, "read table",
		slog.String("path", path),
		slog.Int("records", len(t.Records)),
		slog.Int("skipped", t.Skipped),
		slog.Int("issues", len(t.Issues)),
	)

	return t, nil
}

// ReadCSV reads a CSV table.
func (r *Reader) ReadCSV(in io.Reader) (*Table, error) {
	cr := csv.NewReader(in)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}

	return r.FromRows(rows)
}

// ReadXLSX reads the configured sheet of an XLSX workbook.
func (r *Reader) ReadXLSX(in io.Reader) (*Table, error) {
	f, err := excelize.OpenReader(in)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}

	defer func() {
		err := f.Close()
		if err != nil {
			slog.Error("close workbook", slog.Any("error", err))
		}
	}()

	sheets := f.GetSheetList()

	sheet := r.sheet
	switch {
	case sheet == "" && len(sheets) > 0:
		sheet = sheets[0]
	case !slices.Contains(sheets, sheet):
		return nil, fmt.Errorf("%w: %q", ErrNoSheet, sheet)
	}

	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}

	return r.FromRows(rows)
}

// FromRows decodes raw rows. Blank cells are absent, cells that do not
// parse as their field's type are absent and reported as issues, and rows
// with a blank identity field are dropped.
func (r *Reader) FromRows(rows [][]string) (*Table, error) {
	first := r.skipRows + 1
	if r.skipRows >= len(rows) {
		rows = nil
	} else {
		rows = slices.Clone(rows[r.skipRows:])
	}

	for i, row := range rows {
		rows[i] = r.dropColumns(row)
	}

	columns, err := r.columns(rows)
	if err != nil {
		return nil, err
	}

	if r.header && len(rows) > 0 {
		rows = rows[1:]
		first++
	}

	t := &Table{Columns: columns}

	for i, row := range rows {
		rowNum := first + i

		if blank(row) {
			continue
		}

		fields := make(map[string]record.Value, len(columns))
		for j, name := range columns {
			if name == "" {
				continue
			}

			var raw string
			if j < len(row) {
				raw = row[j]
			}

			if _, declared := r.schema.Lookup(name); !declared {
				if raw = strings.TrimSpace(raw); raw != "" {
					fields[name] = record.String(raw)
				}

				continue
			}

			v, err := r.schema.Parse(name, raw)
			if err != nil {
				t.Issues = append(t.Issues, Issue{Row: rowNum, Column: name, Err: err})
			}
			if v.Present() {
				fields[name] = v
			}
		}

		if id := r.schema.Identity; id != "" {
			if _, ok := fields[id]; !ok {
				t.Skipped++
				continue
			}
		}

		t.Records = append(t.Records, record.New(fields))
	}

	return t, nil
}

func (r *Reader) dropColumns(row []string) []string {
	if len(r.drop) == 0 {
		return row
	}

	out := make([]string, 0, len(row))
	for i, cell := range row {
		if !r.drop[i] {
			out = append(out, cell)
		}
	}

	return out
}

func (r *Reader) columns(rows [][]string) ([]string, error) {
	var columns []string

	if r.header {
		if len(rows) > 0 {
			for _, c := range rows[0] {
				columns = append(columns, strings.TrimSpace(c))
			}
		}

		seen := make(map[string]bool, len(columns))
		for _, c := range columns {
			if c != "" && seen[c] {
				return nil, fmt.Errorf("%w: %q", ErrDuplicateColumn, c)
			}

			seen[c] = true
		}
	} else {
		width := 0
		for _, row := range rows {
			width = max(width, len(row))
		}

		columns = r.schema.Names()
		if width < len(columns) {
			columns = columns[:width]
		}
	}

	for _, f := range r.schema.Fields {
		if f.Required && !slices.Contains(columns, f.Name) {
			return nil, fmt.Errorf("%w: %q", ErrMissingColumn, f.Name)
		}
	}

	return columns, nil
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}

	return true
}
