package yaml_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/macropower/cablecat/pkg/yaml"
)

const source = `apiVersion: cablecat.jacobcolvin.com/v1beta1
kind: Rulebook
passes:
  - attribute: Group
    rules:
      - label: "2.2"
        when:
          in:
            field: Voltage
            values: ["220"]
`

func TestError(t *testing.T) {
	t.Parallel()

	errUndeclared := errors.New("undeclared field")
	path := yaml.AppendPath(yaml.NewPathBuilder().Root(),
		"passes", "0", "rules", "0", "when", "in", "field").Build()

	tcs := map[string]struct {
		err      *yaml.Error
		contains []string
		equals   string
	}{
		"plain": {
			err:    yaml.NewError(errUndeclared),
			equals: "undeclared field",
		},
		"path without source": {
			err:    yaml.NewError(errUndeclared, yaml.WithPath(path)),
			equals: "error at $.passes[0].rules[0].when.in.field: undeclared field",
		},
		"path with source": {
			err: yaml.NewError(errUndeclared, yaml.WithPath(path), yaml.WithSource([]byte(source))),
			contains: []string{
				"error at $.passes[0].rules[0].when.in.field: undeclared field",
				"Voltage",
			},
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			require.ErrorIs(t, tc.err, errUndeclared)

			got := tc.err.Error()
			if tc.equals != "" {
				assert.Equal(t, tc.equals, got)
			}
			for _, want := range tc.contains {
				assert.Contains(t, got, want)
			}
		})
	}
}

func TestErrorWrapper(t *testing.T) {
	t.Parallel()

	ew := yaml.NewErrorWrapper(yaml.WithSource([]byte(source)))

	plain := errors.New("plain")
	assert.Same(t, plain, ew.Wrap(plain))
	require.NoError(t, ew.Wrap(nil))

	wrapped := ew.Wrap(yaml.NewError(errors.New("bad")))

	var yamlErr *yaml.Error
	require.ErrorAs(t, wrapped, &yamlErr)
	assert.Equal(t, []byte(source), yamlErr.Source)
}

func TestDecoder_SyntaxError(t *testing.T) {
	t.Parallel()

	var v any

	err := yaml.Unmarshal([]byte("passes: [unclosed\n"), &v)

	var yamlErr *yaml.Error
	require.ErrorAs(t, err, &yamlErr)
	assert.NotNil(t, yamlErr.Token)
}

func TestMarshal(t *testing.T) {
	t.Parallel()

	got, err := yaml.Marshal(map[string]any{"labels": []string{"NT", "Other"}})
	require.NoError(t, err)
	assert.Equal(t, "labels:\n  - NT\n  - Other\n", string(got))
}
