package rulebook_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/macropower/cablecat/pkg/classify"
	"github.com/macropower/cablecat/pkg/record"
	"github.com/macropower/cablecat/pkg/rulebook"
	"github.com/macropower/cablecat/pkg/yaml"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func rulebookWithDefault(def string) string {
	return baseSchema + `passes:
  - attribute: Group
    default: "` + def + `"
    rules:
      - label: "1.1"
        when:
          in:
            field: Cores
            values: [1]
`
}

func fileLoader(path string) rulebook.LoadFunc {
	return func() (*classify.Classifier, error) {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}

		rb := &rulebook.Rulebook{}
		err = yaml.Unmarshal(data, rb)
		if err != nil {
			return nil, err
		}

		return rb.Compile()
	}
}

func groupOf(c *classify.Classifier) record.Value {
	res := c.Classify(record.New(map[string]record.Value{"PEA": record.String("PEA-01")}))
	return res.Record.Get("Group")
}

func TestWatcher(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "rulebook.yaml")
	require.NoError(t, os.WriteFile(path, []byte(rulebookWithDefault("3.0")), 0o600))

	reloads := make(chan error, 16)
	w, err := rulebook.NewWatcher(path, fileLoader(path),
		rulebook.WithDebounce(50*time.Millisecond),
		rulebook.WithOnReload(func(err error) { reloads <- err }),
	)
	require.NoError(t, err)
	assert.Equal(t, record.String("3.0"), groupOf(w.Classifier()))

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-done)
	})

	// Give the watcher time to register the directory.
	time.Sleep(100 * time.Millisecond)

	require.NoError(t, os.WriteFile(path, []byte(rulebookWithDefault("9.9")), 0o600))
	require.Eventually(t, func() bool {
		return groupOf(w.Classifier()).Equal(record.String("9.9"))
	}, 5*time.Second, 20*time.Millisecond)

	require.NoError(t, os.WriteFile(path, []byte(baseSchema+"passes: []\n"), 0o600))

	deadline := time.After(5 * time.Second)
	for failed := false; !failed; {
		select {
		case err := <-reloads:
			failed = err != nil
		case <-deadline:
			t.Fatal("timed out waiting for failed reload")
		}
	}

	assert.Equal(t, record.String("9.9"), groupOf(w.Classifier()))
}

func TestNewWatcher_InitialError(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "rulebook.yaml")
	require.NoError(t, os.WriteFile(path, []byte(baseSchema), 0o600))

	w, err := rulebook.NewWatcher(path, fileLoader(path))
	require.ErrorIs(t, err, rulebook.ErrMissingPasses)
	assert.Nil(t, w)
}
