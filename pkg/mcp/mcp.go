package mcp

import (
	"fmt"
	"maps"
	"math"
	"slices"
	"strconv"

	"github.com/modelcontextprotocol/go-sdk/jsonschema"

	"github.com/macropower/cablecat/pkg/record"
)

const (
	name         = "cablecat"
	instructions = `MCP Server 'cablecat' classifies telecom line and cable asset records with the loaded rulebook.

When to use these tools:
- Finding the category a single asset record receives
- Understanding WHY a record received a category, including rules that matched but were overridden
- Reviewing which rules and labels the rulebook defines
- Listing the distinct values a set of records holds, to check rulebook coverage

REQUIRED workflow:
1. Use 'list_rules' first to learn the pass attributes, the fields rules read, and the labels they assign
2. Use 'classify_record' with field names EXACTLY as declared in the rulebook schema
3. Use 'explain_record' when a label is unexpected. Rules are evaluated in ascending order and the LAST matching rule wins

IMPORTANT: A label equal to the unset marker means no rule matched and the pass has no default.
`
)

func newRecordSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type:        "object",
		Description: "An asset record keyed by schema field name. Values may be strings or numbers. Missing or null fields are absent.",
	}
}

// toRecord converts JSON arguments into a typed record using schema.
// Unknown fields and values that do not fit the field type are reported as
// issues and left absent.
func toRecord(schema *record.Schema, fields map[string]any) (record.Record, []string) {
	values := make(map[string]record.Value, len(fields))

	var issues []string

	for _, name := range schema.Names() {
		raw, ok := fields[name]
		if !ok || raw == nil {
			continue
		}

		v, err := toValue(schema, name, raw)
		if err != nil {
			issues = append(issues, err.Error())
			continue
		}

		values[name] = v
	}

	for _, name := range slices.Sorted(maps.Keys(fields)) {
		if _, ok := schema.Lookup(name); !ok {
			issues = append(issues, fmt.Sprintf("%s: %v", name, record.ErrUnknownField))
		}
	}

	return record.New(values), issues
}

func toValue(schema *record.Schema, name string, raw any) (record.Value, error) {
	switch v := raw.(type) {
	case string:
		return schema.Parse(name, v)
	case float64:
		return schema.Parse(name, formatNumber(v))
	case int:
		return schema.Parse(name, strconv.Itoa(v))
	case int64:
		return schema.Parse(name, strconv.FormatInt(v, 10))
	default:
		return record.Absent(), fmt.Errorf("%s: %w: unsupported JSON type %T", name, record.ErrInvalidValue, raw)
	}
}

func formatNumber(f float64) string {
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.FormatInt(int64(f), 10)
	}

	return strconv.FormatFloat(f, 'f', -1, 64)
}

// label renders a derived attribute value for tool output.
func label(v record.Value, unsetMarker string) string {
	if v.IsUnset() {
		return unsetMarker
	}

	return v.String()
}
