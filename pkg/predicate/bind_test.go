package predicate_test

import (
	"testing"

	"github.com/goccy/go-yaml"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/macropower/cablecat/pkg/predicate"
	"github.com/macropower/cablecat/pkg/record"
)

func testScope(t *testing.T) *predicate.Scope {
	t.Helper()

	schema, err := record.NewSchema("PEA",
		&record.Field{Name: "PEA", Type: record.TypeCategorical, Required: true},
		&record.Field{Name: "Concession", Type: record.TypeCategorical},
		&record.Field{Name: "Line_Type", Type: record.TypeCategorical},
		&record.Field{Name: "Cores", Type: record.TypeInteger},
		&record.Field{Name: "Diameter", Type: record.TypeReal},
		&record.Field{Name: "Total_Distance", Type: record.TypeReal},
	)
	require.NoError(t, err)

	return predicate.NewScope(schema, "GroupConcession")
}

func TestBind(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		p        predicate.Predicate
		err      error
		wantPath []string
	}{
		"valid tree": {
			p: predicate.And(
				predicate.InSet("GroupConcession", "NT"),
				predicate.Between("Diameter", 5, 8),
				predicate.Not(predicate.InSet("Cores", 1, 2)),
			),
		},
		"undeclared field": {
			p:        predicate.InSet("Voltage", "220"),
			err:      predicate.ErrUndeclaredField,
			wantPath: []string{"in", "field"},
		},
		"derived attribute from a later pass": {
			p:        predicate.InSet("Group", "2.2"),
			err:      predicate.ErrUndeclaredField,
			wantPath: []string{"in", "field"},
		},
		"range on categorical": {
			p:        predicate.Or(predicate.InSet("Cores", 12), predicate.Between("Line_Type", 1, 2)),
			err:      predicate.ErrTypeMismatch,
			wantPath: []string{"or", "1", "between", "field"},
		},
		"number in categorical set": {
			p:        predicate.Not(predicate.InSet("Concession", "-", 12)),
			err:      predicate.ErrTypeMismatch,
			wantPath: []string{"not", "in", "values", "1"},
		},
		"text in integer set": {
			p:        predicate.InSet("Cores", 12, "24"),
			err:      predicate.ErrTypeMismatch,
			wantPath: []string{"in", "values", "1"},
		},
		"fractional value in integer set": {
			p:   predicate.InSet("Cores", 12.5),
			err: predicate.ErrTypeMismatch,
		},
		"inverted range": {
			p:   predicate.Between("Diameter", 8, 5),
			err: predicate.ErrInvalidPredicate,
		},
		"empty set": {
			p:   predicate.InSet("Cores"),
			err: predicate.ErrInvalidPredicate,
		},
		"empty conjunction": {
			p:   predicate.And(),
			err: predicate.ErrInvalidPredicate,
		},
		"bad expression": {
			p:        predicate.And(predicate.Expr(`Voltage > 1`)),
			err:      predicate.ErrInvalidPredicate,
			wantPath: []string{"and", "0", "expr"},
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			got, err := predicate.Bind(tc.p, testScope(t))
			if tc.err == nil {
				require.NoError(t, err)
				assert.NotNil(t, got)

				return
			}

			require.ErrorIs(t, err, tc.err)

			if tc.wantPath != nil {
				var pe *predicate.Error
				require.ErrorAs(t, err, &pe)
				assert.Equal(t, tc.wantPath, pe.Path)
			}
		})
	}
}

func TestBind_NormalizesMembers(t *testing.T) {
	t.Parallel()

	scope := testScope(t)

	p, err := predicate.Bind(predicate.InSet("Diameter", 8), scope)
	require.NoError(t, err)

	r := cable(map[string]record.Value{"Diameter": record.Real(8)})
	assert.True(t, predicate.Matches(p, r))

	p, err = predicate.Bind(predicate.InSet("Cores", 12.0), scope)
	require.NoError(t, err)

	r = cable(map[string]record.Value{"Cores": record.Integer(12)})
	assert.True(t, predicate.Matches(p, r))

	// A categorical value under a numeric field is a data error.
	r = cable(map[string]record.Value{"Cores": record.String("12")})
	assert.Equal(t, predicate.Unknown, p.Eval(r))
}

func TestBind_Expr(t *testing.T) {
	t.Parallel()

	p, err := predicate.Bind(
		predicate.Expr(`GroupConcession == "NT" && between(Total_Distance, 0.0, 0.5)`),
		testScope(t),
	)
	require.NoError(t, err)
	assert.Equal(t, []string{"GroupConcession", "Total_Distance"}, p.Fields())

	r := cable(map[string]record.Value{"Total_Distance": record.Real(0.5)}).
		With("GroupConcession", record.String("NT"))
	assert.Equal(t, predicate.True, p.Eval(r))

	r = cable(nil).With("GroupConcession", record.String("NT"))
	assert.Equal(t, predicate.Unknown, p.Eval(r))
}

func TestCompile_FromYAML(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		input   string
		match   record.Record
		err     error
		matches bool
	}{
		"nested tree": {
			input: `
and:
  - in:
      field: GroupConcession
      values: [NT]
  - in:
      field: Line_Type
      values: ["เส้นใยแก้วนำแสง(dropwire)"]
  - between:
      field: Diameter
      low: 5
      high: 8
  - in:
      field: Cores
      values: [1, 2]
  - not:
      in:
        field: Cores
        values: [2]
`,
			match: cable(map[string]record.Value{
				"Line_Type": record.String("เส้นใยแก้วนำแสง(dropwire)"),
				"Diameter":  record.Real(5),
				"Cores":     record.Integer(1),
			}).With("GroupConcession", record.String("NT")),
			matches: true,
		},
		"two operators on one node": {
			input: `
in:
  field: Cores
  values: [1]
expr: Cores == 1
`,
			err: predicate.ErrInvalidPredicate,
		},
		"no operator": {
			input: `{}`,
			err:   predicate.ErrInvalidPredicate,
		},
		"unknown field": {
			input: `
in:
  field: Voltage
  values: ["220"]
`,
			err: predicate.ErrUndeclaredField,
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			var spec predicate.Spec
			require.NoError(t, yaml.Unmarshal([]byte(tc.input), &spec))

			p, err := predicate.Compile(&spec, testScope(t))
			if tc.err != nil {
				require.ErrorIs(t, err, tc.err)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tc.matches, predicate.Matches(p, tc.match))
		})
	}
}
