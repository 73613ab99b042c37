package record

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	ErrUnknownField   = errors.New("unknown field")
	ErrDuplicateField = errors.New("duplicate field")
	ErrInvalidValue   = errors.New("invalid value")
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// FieldType is the semantic type of a record field.
type FieldType string

const (
	TypeCategorical FieldType = "categorical"
	TypeInteger     FieldType = "integer"
	TypeReal        FieldType = "real"
)

// Numeric reports whether range comparisons are defined for t.
func (t FieldType) Numeric() bool {
	return t == TypeInteger || t == TypeReal
}

// Field declares one record field.
type Field struct {
	// Name is the column header of the field in the input table.
	Name string `json:"name" jsonschema:"title=Name" validate:"required"`
	// Type is one of categorical, integer or real.
	Type FieldType `json:"type" jsonschema:"title=Type,enum=categorical,enum=integer,enum=real" validate:"required,oneof=categorical integer real"`
	// Required fields must be present as columns in the input.
	Required bool `json:"required,omitempty" jsonschema:"title=Required"`
}

// Schema declares the fields available to rules.
type Schema struct {
	index map[string]*Field

	// Identity names the field whose absence marks an incomplete row.
	Identity string `json:"identity,omitempty" jsonschema:"title=Identity Field"`
	// Fields lists the declared fields in column order.
	Fields []*Field `json:"fields" jsonschema:"title=Fields"`
}

// NewSchema creates a new [Schema] from the given fields.
func NewSchema(identity string, fields ...*Field) (*Schema, error) {
	s := &Schema{Identity: identity, Fields: fields}

	err := s.Build()
	if err != nil {
		return nil, err
	}

	return s, nil
}

// MustNewSchema creates a new [Schema] and panics on error.
func MustNewSchema(identity string, fields ...*Field) *Schema {
	s, err := NewSchema(identity, fields...)
	if err != nil {
		panic(err)
	}

	return s
}

// Build validates the field declarations and indexes them by name.
func (s *Schema) Build() error {
	s.index = make(map[string]*Field, len(s.Fields))

	for i, f := range s.Fields {
		if f == nil {
			return fmt.Errorf("field %d: %w", i, ErrInvalidValue)
		}

		err := validate.Struct(f)
		if err != nil {
			return fmt.Errorf("field %d (%q): %w", i, f.Name, err)
		}
		if _, ok := s.index[f.Name]; ok {
			return fmt.Errorf("%w: %q", ErrDuplicateField, f.Name)
		}

		s.index[f.Name] = f
	}

	if s.Identity != "" {
		if _, ok := s.index[s.Identity]; !ok {
			return fmt.Errorf("identity: %w: %q", ErrUnknownField, s.Identity)
		}
	}

	return nil
}

// Lookup returns the declared field with the given name.
func (s *Schema) Lookup(name string) (*Field, bool) {
	if s.index == nil {
		for _, f := range s.Fields {
			if f != nil && f.Name == name {
				return f, true
			}
		}

		return nil, false
	}

	f, ok := s.index[name]

	return f, ok
}

// Names returns the declared field names in column order.
func (s *Schema) Names() []string {
	names := make([]string, 0, len(s.Fields))
	for _, f := range s.Fields {
		names = append(names, f.Name)
	}

	return names
}

// Parse converts a raw cell into a typed [Value] for the named field.
// Blank cells are absent. A cell that does not parse as the field's type
// returns an absent value together with an error wrapping
// [ErrInvalidValue], so callers may log and continue.
func (s *Schema) Parse(name, raw string) (Value, error) {
	f, ok := s.Lookup(name)
	if !ok {
		return Absent(), fmt.Errorf("%w: %q", ErrUnknownField, name)
	}

	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Absent(), nil
	}

	switch f.Type {
	case TypeCategorical:
		return String(raw), nil

	case TypeInteger:
		i, err := strconv.ParseInt(raw, 10, 64)
		if err == nil {
			return Integer(i), nil
		}

		// Spreadsheets often store whole numbers as "12.0".
		fl, ferr := strconv.ParseFloat(raw, 64)
		if ferr == nil && fl == math.Trunc(fl) && math.Abs(fl) <= math.MaxInt64 {
			return Integer(int64(fl)), nil
		}

		return Absent(), fmt.Errorf("%s: %w: %q is not an integer", name, ErrInvalidValue, raw)

	case TypeReal:
		fl, err := strconv.ParseFloat(raw, 64)
		if err != nil || math.IsNaN(fl) {
			return Absent(), fmt.Errorf("%s: %w: %q is not a number", name, ErrInvalidValue, raw)
		}

		return Real(fl), nil
	}

	return Absent(), fmt.Errorf("%s: %w: unsupported type %q", name, ErrInvalidValue, f.Type)
}
