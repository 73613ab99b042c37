package table

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/macropower/cablecat/pkg/record"
)

// Formats understood by [Writer.WriteFile].
const (
	FormatCSV   = "csv"
	FormatXLSX  = "xlsx"
	FormatJSONL = "jsonl"
)

// DefaultSheet is the sheet name used for classified XLSX output.
const DefaultSheet = "Classified"

// Writer writes records with a fixed column layout.
type Writer struct {
	unsetMarker string
	sheet       string
	columns     []string
}

// WriterOpt configures a [Writer].
type WriterOpt func(w *Writer)

// WithUnsetMarker sets the text written for unset attributes.
func WithUnsetMarker(marker string) WriterOpt {
	return func(w *Writer) {
		w.unsetMarker = marker
	}
}

// WithSheetName sets the XLSX sheet name.
func WithSheetName(name string) WriterOpt {
	return func(w *Writer) {
		w.sheet = name
	}
}

// NewWriter creates a [Writer] that emits the given columns in order,
// typically the input columns followed by the pass attributes.
func NewWriter(columns []string, opts ...WriterOpt) *Writer {
	w := &Writer{sheet: DefaultSheet}
	for _, c := range columns {
		if c != "" {
			w.columns = append(w.columns, c)
		}
	}
	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Columns returns the output columns.
func (w *Writer) Columns() []string {
	return w.columns
}

// WriteFile writes records to path in the given format, creating parent
// directories as needed.
func (w *Writer) WriteFile(ctx context.Context, path, format string, records []record.Record) error {
	err := os.MkdirAll(filepath.Dir(path), 0o750)
	if err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	f, err := os.Create(path) //nolint:gosec // G304: Writing to a user-provided path is the point.
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}

	err = w.Write(f, format, records)
	if err != nil {
		_ = f.Close()
		return err
	}

	err = f.Close()
	if err != nil {
		return fmt.Errorf("close output: %w", err)
	}

	slog.DebugContext(ctx, "wrote table",
		slog.String("path", path),
		slog.String("format", format),
		slog.Int("records", len(records)),
	)

	return nil
}

// Write writes records to out in the given format.
func (w *Writer) Write(out io.Writer, format string, records []record.Record) error {
	switch format {
	case FormatCSV:
		return w.WriteCSV(out, records)
	case FormatXLSX:
		return w.WriteXLSX(out, records)
	case FormatJSONL:
		return w.WriteJSONL(out, records)
	}

	return fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
}

// WriteCSV writes a header row followed by one row per record.
func (w *Writer) WriteCSV(out io.Writer, records []record.Record) error {
	cw := csv.NewWriter(out)

	err := cw.Write(w.columns)
	if err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	row := make([]string, len(w.columns))
	for _, r := range records {
		for i, c := range w.columns {
			row[i] = w.text(r.Get(c))
		}

		err = cw.Write(row)
		if err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}

	cw.Flush()

	err = cw.Error()
	if err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}

	return nil
}

// WriteXLSX writes a single-sheet workbook. Numbers are written as
// numeric cells.
func (w *Writer) WriteXLSX(out io.Writer, records []record.Record) error {
	rows := make([][]any, 0, len(records))
	for _, r := range records {
		row := make([]any, len(w.columns))
		for i, c := range w.columns {
			row[i] = w.cell(r.Get(c))
		}

		rows = append(rows, row)
	}

	return writeWorkbook(out, []sheet{{name: w.sheet, header: w.columns, rows: rows}})
}

// WriteJSONL writes one JSON object per record.
func (w *Writer) WriteJSONL(out io.Writer, records []record.Record) error {
	enc := json.NewEncoder(out)
	enc.SetEscapeHTML(false)

	for _, r := range records {
		obj := make(map[string]any, len(w.columns))
		for _, c := range w.columns {
			obj[c] = w.cell(r.Get(c))
		}

		err := enc.Encode(obj)
		if err != nil {
			return fmt.Errorf("encode record: %w", err)
		}
	}

	return nil
}

func (w *Writer) text(v record.Value) string {
	if v.IsUnset() {
		return w.unsetMarker
	}

	return v.String()
}

func (w *Writer) cell(v record.Value) any {
	if v.IsUnset() {
		return w.unsetMarker
	}

	return v.Any()
}

type sheet struct {
	name   string
	header []string
	rows   [][]any
}

func writeWorkbook(out io.Writer, sheets []sheet) error {
	f := excelize.NewFile()

	defer func() {
		err := f.Close()
		if err != nil {
			slog.Error("close workbook", slog.Any("error", err))
		}
	}()

	for i, s := range sheets {
		name := sheetName(s.name)

		if i == 0 {
			err := f.SetSheetName(f.GetSheetName(0), name)
			if err != nil {
				return fmt.Errorf("rename sheet: %w", err)
			}
		} else {
			_, err := f.NewSheet(name)
			if err != nil {
				return fmt.Errorf("create sheet %q: %w", name, err)
			}
		}

		err := writeSheet(f, name, s)
		if err != nil {
			return err
		}
	}

	err := f.Write(out)
	if err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}

	return nil
}

func writeSheet(f *excelize.File, name string, s sheet) error {
	sw, err := f.NewStreamWriter(name)
	if err != nil {
		return fmt.Errorf("stream sheet %q: %w", name, err)
	}

	header := make([]any, len(s.header))
	for i, h := range s.header {
		header[i] = h
	}

	err = sw.SetRow("A1", header)
	if err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i, row := range s.rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("cell name: %w", err)
		}

		err = sw.SetRow(cell, row)
		if err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	err = sw.Flush()
	if err != nil {
		return fmt.Errorf("flush sheet %q: %w", name, err)
	}

	return nil
}

// sheetName trims name to a valid XLSX sheet name.
func sheetName(name string) string {
	name = strings.Map(func(r rune) rune {
		if strings.ContainsRune(`:\/?*[]`, r) {
			return '_'
		}

		return r
	}, name)

	runes := []rune(name)
	if len(runes) > 31 {
		runes = runes[:31]
	}
	if len(runes) == 0 {
		return "Sheet1"
	}

	return string(runes)
}
