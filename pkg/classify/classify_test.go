package classify_test

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/macropower/cablecat/pkg/classify"
	"github.com/macropower/cablecat/pkg/predicate"
	"github.com/macropower/cablecat/pkg/record"
	"github.com/macropower/cablecat/pkg/rule"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const (
	ownership = "GroupConcession"
	category  = "Group"
)

func testSchema(t *testing.T) *record.Schema {
	t.Helper()

	s, err := record.NewSchema("PEA",
		&record.Field{Name: "PEA", Type: record.TypeCategorical, Required: true},
		&record.Field{Name: "owner", Type: record.TypeCategorical},
		&record.Field{Name: "line_type", Type: record.TypeCategorical},
		&record.Field{Name: "cores", Type: record.TypeInteger},
		&record.Field{Name: "diameter", Type: record.TypeReal},
	)
	require.NoError(t, err)

	return s
}

func newClassifier(t *testing.T, def *string) *classify.Classifier {
	t.Helper()

	schema := testSchema(t)
	scope := predicate.NewScope(schema)

	owners := rule.MustNewSet(ownership, nil, scope,
		rule.New(1, "NT", predicate.InSet("owner", "-", "TOT")),
		rule.New(2, "Other", predicate.InSet("owner", "3BB")),
	)
	categories := rule.MustNewSet(category, def, scope.With(ownership),
		rule.New(1, "2.2", predicate.And(
			predicate.InSet(ownership, "NT"),
			predicate.InSet("line_type", "copper-dropwire"),
		)),
		rule.New(2, "4.1.1", predicate.And(
			predicate.InSet("cores", 12, 24),
			predicate.Between("diameter", 18, 20),
		)),
		rule.New(3, "4.1.4", predicate.And(
			predicate.InSet("line_type", "fiber-fig8"),
			predicate.Not(predicate.InSet("cores", 12, 24, 48, 60, 120)),
		)),
	)

	c, err := classify.New(schema, owners, categories)
	require.NoError(t, err)

	return c
}

func rec(fields map[string]any) record.Record {
	values := make(map[string]record.Value, len(fields))
	for k, v := range fields {
		switch x := v.(type) {
		case string:
			values[k] = record.String(x)
		case int:
			values[k] = record.Integer(int64(x))
		case float64:
			values[k] = record.Real(x)
		}
	}

	return record.New(values)
}

func TestClassify_CrossPassVisibility(t *testing.T) {
	t.Parallel()

	c := newClassifier(t, nil)

	res := c.Classify(rec(map[string]any{"owner": "-", "line_type": "copper-dropwire"}))

	assert.Equal(t, record.String("NT"), res.Record.Get(ownership))
	assert.Equal(t, record.String("2.2"), res.Record.Get(category))
	assert.Equal(t, []record.Value{record.String("NT"), record.String("2.2")}, res.Labels)
	assert.Empty(t, res.Gaps(c))
}

func TestClassify_EarlierMatchPreserved(t *testing.T) {
	t.Parallel()

	c := newClassifier(t, nil)

	res := c.Classify(rec(map[string]any{"cores": 12, "diameter": 19.0, "line_type": "fiber-fig8"}))

	assert.Equal(t, record.String("4.1.1"), res.Record.Get(category))
	assert.True(t, res.Record.Get(ownership).IsUnset())
	assert.Equal(t, []string{ownership}, res.Gaps(c))
}

func TestClassify_UnsetVersusDefault(t *testing.T) {
	t.Parallel()

	r := rec(map[string]any{"owner": "3BB", "line_type": "fiber-adss"})

	res := newClassifier(t, nil).Classify(r)
	got, ok := res.Record.Lookup(category)
	require.True(t, ok, "unset is written, never omitted")
	assert.True(t, got.IsUnset())

	def := "3.0"
	res = newClassifier(t, &def).Classify(r)
	assert.Equal(t, record.String("3.0"), res.Record.Get(category))
}

func TestClassify_InputUntouched(t *testing.T) {
	t.Parallel()

	c := newClassifier(t, nil)
	in := rec(map[string]any{"owner": "-", "line_type": "copper-dropwire"})

	_ = c.Classify(in)

	_, ok := in.Lookup(ownership)
	assert.False(t, ok)
	assert.Empty(t, in.Derived())
}

func TestClassify_Deterministic(t *testing.T) {
	t.Parallel()

	c := newClassifier(t, nil)
	r := rec(map[string]any{"owner": "TOT", "line_type": "fiber-fig8", "cores": 6})

	first := c.Classify(r)
	second := c.Classify(r)

	assert.Equal(t, first, second)
	assert.Equal(t, record.String("4.1.4"), first.Record.Get(category))
}

func TestExplain(t *testing.T) {
	t.Parallel()

	c := newClassifier(t, nil)
	r := rec(map[string]any{"owner": "-", "line_type": "copper-dropwire", "cores": 24, "diameter": 18.0})

	ex := c.Explain(r)
	require.Len(t, ex.Steps, 2)
	assert.Equal(t, ownership, ex.Steps[0].Attribute)
	assert.Equal(t, "NT", ex.Steps[0].Winner.Label)

	// 2.2 matched first and was overridden by 4.1.1.
	require.Len(t, ex.Steps[1].Matched, 2)
	assert.Equal(t, "2.2", ex.Steps[1].Matched[0].Label)
	assert.Equal(t, record.String("4.1.1"), ex.Steps[1].Label)

	assert.Equal(t, c.Classify(r), ex.Result)
}

func TestNew_Errors(t *testing.T) {
	t.Parallel()

	schema := testSchema(t)
	scope := predicate.NewScope(schema)
	set := func(attr string) *rule.Set {
		return rule.MustNewSet(attr, nil, scope, rule.New(1, "x", predicate.InSet("owner", "-")))
	}

	_, err := classify.New(schema, set("A"), set("A"))
	require.ErrorIs(t, err, classify.ErrDuplicateAttribute)

	_, err = classify.New(schema, set("owner"))
	require.ErrorIs(t, err, classify.ErrAttributeCollision)

	_, err = classify.New(schema, &rule.Set{Attribute: "B"})
	require.ErrorIs(t, err, classify.ErrUncompiledPass)
}

func TestCatalogFields(t *testing.T) {
	t.Parallel()

	c := newClassifier(t, nil)
	assert.Equal(t, []string{"owner", "line_type", "cores", "diameter"}, c.CatalogFields())

	withCatalog := c.WithCatalog("cores", category)
	assert.Equal(t, []string{"cores", category}, withCatalog.CatalogFields())
	assert.Equal(t, []string{"owner", "line_type", "cores", "diameter"}, c.CatalogFields())
}

func TestClassifyAll_MatchesSequential(t *testing.T) {
	t.Parallel()

	c := newClassifier(t, nil)

	owners := []string{"-", "TOT", "3BB", "unknown"}
	lines := []string{"copper-dropwire", "fiber-fig8", "fiber-adss"}
	records := make([]record.Record, 0, 1000)
	for i := range 1000 {
		records = append(records, rec(map[string]any{
			"PEA":       fmt.Sprintf("PEA-%04d", i),
			"owner":     owners[i%len(owners)],
			"line_type": lines[i%len(lines)],
			"cores":     []int{1, 2, 6, 12, 24, 48}[i%6],
			"diameter":  float64(i % 25),
		}))
	}

	var done atomic.Int64

	got, err := c.ClassifyAll(t.Context(), records, classify.Options{
		Workers:   4,
		ChunkSize: 7,
		Progress:  func(n int) { done.Add(int64(n)) },
	})
	require.NoError(t, err)
	require.Len(t, got, len(records))
	assert.Equal(t, int64(len(records)), done.Load())

	for i, r := range records {
		assert.Equal(t, c.Classify(r), got[i], "record %d", i)
	}
}

func TestClassifyAll_Canceled(t *testing.T) {
	t.Parallel()

	c := newClassifier(t, nil)

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	_, err := c.ClassifyAll(ctx, []record.Record{rec(nil)}, classify.Options{})
	require.ErrorIs(t, err, context.Canceled)
}

func TestClassifyAll_Empty(t *testing.T) {
	t.Parallel()

	got, err := newClassifier(t, nil).ClassifyAll(t.Context(), nil, classify.Options{})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSummarize(t *testing.T) {
	t.Parallel()

	c := newClassifier(t, nil)
	results := []classify.Result{
		c.Classify(rec(map[string]any{"owner": "-", "line_type": "copper-dropwire"})),
		c.Classify(rec(map[string]any{"owner": "-", "line_type": "fiber-adss"})),
		c.Classify(rec(map[string]any{"owner": "3BB", "line_type": "fiber-fig8", "cores": 2})),
	}

	s := c.Summarize(results)
	assert.Equal(t, 3, s.Records)
	assert.Equal(t, 2, s.Complete)
	require.Len(t, s.Passes, 2)
	assert.Equal(t, map[string]int{"NT": 2, "Other": 1}, s.Passes[0].Labels)
	assert.Zero(t, s.Passes[0].Unset)
	assert.Equal(t, map[string]int{"2.2": 1, "4.1.4": 1}, s.Passes[1].Labels)
	assert.Equal(t, 1, s.Passes[1].Unset)
	assert.Equal(t, []string{"2.2", "4.1.4"}, s.Passes[1].SortedLabels())
}
