package metrics_test

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/macropower/cablecat/pkg/classify"
	"github.com/macropower/cablecat/pkg/metrics"
	"github.com/macropower/cablecat/pkg/predicate"
	"github.com/macropower/cablecat/pkg/record"
	"github.com/macropower/cablecat/pkg/rule"
)

func classifier(t *testing.T) *classify.Classifier {
	t.Helper()

	schema := record.MustNewSchema("", &record.Field{Name: "Cores", Type: record.TypeInteger})
	scope := predicate.NewScope(schema)

	set, err := rule.NewSet("Group", nil, scope,
		rule.New(1, "fiber", predicate.InSet("Cores", 12, 24)),
	)
	require.NoError(t, err)

	c, err := classify.New(schema, set)
	require.NoError(t, err)

	return c
}

func TestRecorder(t *testing.T) {
	t.Parallel()

	c := classifier(t)
	rec := metrics.NewRecorder()

	results := []classify.Result{
		c.Classify(record.New(map[string]record.Value{"Cores": record.Integer(12)})),
		c.Classify(record.New(map[string]record.Value{"Cores": record.Integer(24)})),
		c.Classify(record.New(map[string]record.Value{"Cores": record.Integer(2)})),
	}

	rec.Observe(c, results, 5*time.Millisecond)
	rec.Reloaded(nil)
	rec.Reloaded(errors.New("bad revision"))

	srv := httptest.NewServer(rec.Handler())
	t.Cleanup(srv.Close)

	req, err := http.NewRequestWithContext(t.Context(), http.MethodGet, srv.URL, http.NoBody)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)

	t.Cleanup(func() { require.NoError(t, resp.Body.Close()) })

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	out := string(body)
	assert.Contains(t, out, "cablecat_records_classified_total 3")
	assert.Contains(t, out, `cablecat_labels_assigned_total{label="fiber",pass="Group"} 2`)
	assert.Contains(t, out, `cablecat_classification_gaps_total{pass="Group"} 1`)
	assert.Contains(t, out, `cablecat_rulebook_reloads_total{result="failed"} 1`)
	assert.Contains(t, out, `cablecat_rulebook_reloads_total{result="ok"} 1`)
	assert.Contains(t, out, "cablecat_classify_duration_seconds_count 1")

	n, err := testutil.GatherAndCount(rec.Registry(), "cablecat_labels_assigned_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
