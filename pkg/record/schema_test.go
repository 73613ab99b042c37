package record_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/macropower/cablecat/pkg/record"
)

func testSchema(t *testing.T) *record.Schema {
	t.Helper()

	s, err := record.NewSchema("PEA",
		&record.Field{Name: "PEA", Type: record.TypeCategorical, Required: true},
		&record.Field{Name: "Cores", Type: record.TypeInteger},
		&record.Field{Name: "Diameter", Type: record.TypeReal},
	)
	require.NoError(t, err)

	return s
}

func TestNewSchema(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		err      error
		identity string
		fields   []*record.Field
		wantErr  bool
	}{
		"valid": {
			identity: "PEA",
			fields: []*record.Field{
				{Name: "PEA", Type: record.TypeCategorical},
			},
		},
		"duplicate field": {
			fields: []*record.Field{
				{Name: "PEA", Type: record.TypeCategorical},
				{Name: "PEA", Type: record.TypeInteger},
			},
			err: record.ErrDuplicateField,
		},
		"unknown identity": {
			identity: "Owner",
			fields: []*record.Field{
				{Name: "PEA", Type: record.TypeCategorical},
			},
			err: record.ErrUnknownField,
		},
		"bad type": {
			fields: []*record.Field{
				{Name: "Voltage", Type: "volts"},
			},
			wantErr: true,
		},
		"missing name": {
			fields: []*record.Field{
				{Type: record.TypeReal},
			},
			wantErr: true,
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			_, err := record.NewSchema(tc.identity, tc.fields...)
			switch {
			case tc.err != nil:
				require.ErrorIs(t, err, tc.err)
			case tc.wantErr:
				require.Error(t, err)
			default:
				require.NoError(t, err)
			}
		})
	}
}

func TestSchema_Parse(t *testing.T) {
	t.Parallel()

	s := testSchema(t)

	tcs := map[string]struct {
		field   string
		raw     string
		want    record.Value
		wantErr bool
	}{
		"categorical":        {field: "PEA", raw: " PEA-01 ", want: record.String("PEA-01")},
		"blank is absent":    {field: "Cores", raw: "  ", want: record.Absent()},
		"integer":            {field: "Cores", raw: "24", want: record.Integer(24)},
		"integer as float":   {field: "Cores", raw: "12.0", want: record.Integer(12)},
		"fractional integer": {field: "Cores", raw: "12.5", want: record.Absent(), wantErr: true},
		"real":               {field: "Diameter", raw: "6.8", want: record.Real(6.8)},
		"real from integer":  {field: "Diameter", raw: "8", want: record.Real(8)},
		"non-numeric real":   {field: "Diameter", raw: "n/a", want: record.Absent(), wantErr: true},
		"undeclared field":   {field: "Voltage", raw: "220", want: record.Absent(), wantErr: true},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			got, err := s.Parse(tc.field, tc.raw)
			if tc.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}

			assert.Equal(t, tc.want, got)
		})
	}
}

func TestSchema_Lookup(t *testing.T) {
	t.Parallel()

	s := testSchema(t)

	f, ok := s.Lookup("Cores")
	require.True(t, ok)
	assert.Equal(t, record.TypeInteger, f.Type)
	assert.True(t, f.Type.Numeric())

	_, ok = s.Lookup("Voltage")
	assert.False(t, ok)

	assert.Equal(t, []string{"PEA", "Cores", "Diameter"}, s.Names())
}
