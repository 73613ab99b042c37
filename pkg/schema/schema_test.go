package schema_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/macropower/cablecat/pkg/schema"
)

type pass struct {
	Attribute string `json:"attribute"`
	Default   string `json:"default,omitempty"`
}

type node struct {
	Name     string  `json:"name" jsonschema:"title=Name"`
	Children []*pass `json:"children,omitempty"`
}

func TestGenerator_Generate(t *testing.T) {
	t.Parallel()

	g, err := schema.NewGenerator()
	require.NoError(t, err)

	data, err := g.Generate(&node{})
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(data, &got))

	assert.NotContains(t, got, "$id")
	assert.Equal(t, "object", got["type"])
	assert.Equal(t, []any{"name"}, got["required"])
	assert.Equal(t, false, got["additionalProperties"])
	assert.Contains(t, got["properties"], "children")
}

func TestMustGenerate(t *testing.T) {
	t.Parallel()

	assert.NotPanics(t, func() {
		assert.NotEmpty(t, schema.MustGenerate(&node{}))
	})
}
