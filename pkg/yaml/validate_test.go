package yaml_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/macropower/cablecat/pkg/yaml"
)

const testSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["passes"],
  "properties": {
    "passes": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["attribute"],
        "properties": {
          "attribute": {"type": "string"},
          "default": {"type": "string"}
        },
        "additionalProperties": false
      }
    }
  }
}`

func TestNewValidator(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		schema  string
		wantErr bool
	}{
		"valid schema":   {schema: testSchema},
		"invalid json":   {schema: `{"type": `, wantErr: true},
		"invalid schema": {schema: `{"type": 12}`, wantErr: true},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			v, err := yaml.NewValidator("https://example.com/test.json", []byte(tc.schema))
			if tc.wantErr {
				require.Error(t, err)
				assert.Nil(t, v)
			} else {
				require.NoError(t, err)
				assert.NotNil(t, v)
			}
		})
	}
}

func TestValidator_Validate(t *testing.T) {
	t.Parallel()

	v := yaml.MustNewValidator("https://example.com/test.json", []byte(testSchema))

	tcs := map[string]struct {
		input    string
		wantPath string
	}{
		"valid": {
			input: "passes:\n  - attribute: Group\n    default: \"3.0\"\n",
		},
		"missing required": {
			input:    "{}\n",
			wantPath: "$",
		},
		"wrong type in sequence": {
			input:    "passes:\n  - attribute: Group\n  - attribute: 12\n",
			wantPath: "$.passes[1].attribute",
		},
		"unknown key": {
			input:    "passes:\n  - attribute: Group\n    defualt: \"3.0\"\n",
			wantPath: "$.passes[0]",
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			var data any
			require.NoError(t, yaml.Unmarshal([]byte(tc.input), &data))

			err := v.Validate(data)
			if tc.wantPath == "" {
				require.NoError(t, err)
				return
			}

			var yamlErr *yaml.Error
			require.ErrorAs(t, err, &yamlErr)
			require.NotNil(t, yamlErr.Path)
			assert.Equal(t, tc.wantPath, yamlErr.Path.String())
		})
	}
}

func TestAppendPath(t *testing.T) {
	t.Parallel()

	pb := yaml.NewPathBuilder().Root().Child("passes").Index(1)
	got := yaml.AppendPath(pb, "rules", "3", "when", "and", "0", "in", "field").Build()

	assert.Equal(t, "$.passes[1].rules[3].when.and[0].in.field", got.String())
	assert.True(t, strings.HasPrefix(got.String(), "$.passes"))
}
