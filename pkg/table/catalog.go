package table

import (
	"fmt"
	"io"

	"github.com/macropower/cablecat/pkg/catalog"
	"github.com/macropower/cablecat/pkg/yaml"
)

// Labels for the catalog rows that count missing values.
const (
	AbsentLabel = "(blank)"
	UnsetLabel  = "(unset)"
)

// WriteCatalogXLSX writes one sheet per catalog entry, listing each
// distinct value with its count.
func WriteCatalogXLSX(out io.Writer, entries []catalog.Entry) error {
	sheets := make([]sheet, 0, len(entries))

	for _, e := range entries {
		s := sheet{
			name:   e.Field,
			header: []string{e.Field, "Count"},
			rows:   make([][]any, 0, len(e.Values)+2),
		}

		for _, vc := range e.Values {
			s.rows = append(s.rows, []any{vc.Value.Any(), vc.Count})
		}
		if e.Absent > 0 {
			s.rows = append(s.rows, []any{AbsentLabel, e.Absent})
		}
		if e.Unset > 0 {
			s.rows = append(s.rows, []any{UnsetLabel, e.Unset})
		}

		sheets = append(sheets, s)
	}

	return writeWorkbook(out, sheets)
}

type catalogValue struct {
	Value any `yaml:"value"`
	Count int `yaml:"count"`
}

type catalogField struct {
	Field  string         `yaml:"field"`
	Values []catalogValue `yaml:"values"`
	Absent int            `yaml:"absent,omitempty"`
	Unset  int            `yaml:"unset,omitempty"`
}

// WriteCatalogYAML writes the catalog as a YAML sequence with one item per
// field.
func WriteCatalogYAML(out io.Writer, entries []catalog.Entry) error {
	doc := make([]catalogField, 0, len(entries))

	for _, e := range entries {
		f := catalogField{
			Field:  e.Field,
			Values: make([]catalogValue, 0, len(e.Values)),
			Absent: e.Absent,
			Unset:  e.Unset,
		}
		for _, vc := range e.Values {
			f.Values = append(f.Values, catalogValue{Value: vc.Value.Any(), Count: vc.Count})
		}

		doc = append(doc, f)
	}

	b, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal catalog: %w", err)
	}

	_, err = out.Write(b)
	if err != nil {
		return fmt.Errorf("write catalog: %w", err)
	}

	return nil
}
