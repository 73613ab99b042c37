package record_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/macropower/cablecat/pkg/record"
)

func TestRecord_With(t *testing.T) {
	t.Parallel()

	base := record.New(map[string]record.Value{
		"Concession": record.String("-"),
		"Cores":      record.Integer(12),
	})

	first := base.With("GroupConcession", record.String("NT"))
	second := first.With("Group", record.Unset())

	_, ok := base.Lookup("GroupConcession")
	assert.False(t, ok, "base record must not change")

	_, ok = first.Lookup("Group")
	assert.False(t, ok, "earlier accumulator must not change")

	assert.Equal(t, record.String("NT"), second.Get("GroupConcession"))
	assert.True(t, second.Get("Group").IsUnset())
	assert.Equal(t, record.Integer(12), second.Get("Cores"))
	assert.Equal(t, []record.Attr{
		{Name: "GroupConcession", Value: record.String("NT")},
		{Name: "Group", Value: record.Unset()},
	}, second.Derived())
}

func TestRecord_WithOverrides(t *testing.T) {
	t.Parallel()

	r := record.New(nil).
		With("Group", record.String("1.1")).
		With("Group", record.String("2.2"))

	assert.Equal(t, record.String("2.2"), r.Get("Group"))
}

func TestRecord_New_CopiesInput(t *testing.T) {
	t.Parallel()

	in := map[string]record.Value{"PEA": record.String("A")}
	r := record.New(in)
	in["PEA"] = record.String("B")

	assert.Equal(t, record.String("A"), r.Get("PEA"))
}

func TestRecord_Map(t *testing.T) {
	t.Parallel()

	r := record.New(map[string]record.Value{
		"Diameter": record.Real(6.5),
		"Notes":    record.Absent(),
	}).With("Group", record.Unset())

	got := r.Map("UNSET")
	require.Len(t, got, 3)
	assert.InDelta(t, 6.5, got["Diameter"], 0)
	assert.Nil(t, got["Notes"])
	assert.Equal(t, "UNSET", got["Group"])
}

func TestValue_Equal(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		a, b record.Value
		want bool
	}{
		"same string":          {a: record.String("NT"), b: record.String("NT"), want: true},
		"case sensitive":       {a: record.String("nt"), b: record.String("NT"), want: false},
		"integer and real":     {a: record.Integer(12), b: record.Real(12), want: true},
		"string and integer":   {a: record.String("12"), b: record.Integer(12), want: false},
		"absent and absent":    {a: record.Absent(), b: record.Absent(), want: true},
		"unset and empty text": {a: record.Unset(), b: record.String(""), want: false},
		"unset and absent":     {a: record.Unset(), b: record.Absent(), want: false},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tc.want, tc.a.Equal(tc.b))
		})
	}
}

func TestCompare(t *testing.T) {
	t.Parallel()

	assert.Negative(t, record.Compare(record.Integer(2), record.Integer(12)))
	assert.Negative(t, record.Compare(record.Integer(2), record.Real(2.5)))
	assert.Positive(t, record.Compare(record.String("b"), record.String("a")))
	assert.Zero(t, record.Compare(record.Real(8), record.Integer(8)))
}

func TestValue_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "8.0", record.Real(8).String())
	assert.Equal(t, "0.25", record.Real(0.25).String())
	assert.Equal(t, "24", record.Integer(24).String())
	assert.Empty(t, record.Unset().String())
}
