package table_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/macropower/cablecat/pkg/catalog"
	"github.com/macropower/cablecat/pkg/record"
	"github.com/macropower/cablecat/pkg/table"
)

func classified() []record.Record {
	base := record.New(map[string]record.Value{
		"PEA":   record.String("PEA-01"),
		"Cores": record.Integer(12),
	})

	return []record.Record{
		base.With("GroupConcession", record.String("NT")).With("Group", record.String("4.1.1")),
		record.New(map[string]record.Value{"PEA": record.String("PEA-02"), "Diameter": record.Real(8)}).
			With("GroupConcession", record.Unset()).
			With("Group", record.Unset()),
	}
}

var columns = []string{"PEA", "Cores", "Diameter", "GroupConcession", "Group"}

func TestWriter_WriteCSV(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, table.NewWriter(columns, table.WithUnsetMarker("UNSET")).WriteCSV(&buf, classified()))

	want := "PEA,Cores,Diameter,GroupConcession,Group\n" +
		"PEA-01,12,,NT,4.1.1\n" +
		"PEA-02,,8.0,UNSET,UNSET\n"
	assert.Equal(t, want, buf.String())
}

func TestWriter_WriteJSONL(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, table.NewWriter(columns, table.WithUnsetMarker("UNSET")).WriteJSONL(&buf, classified()))

	want := `{"Cores":12,"Diameter":null,"Group":"4.1.1","GroupConcession":"NT","PEA":"PEA-01"}
{"Cores":null,"Diameter":8,"Group":"UNSET","GroupConcession":"UNSET","PEA":"PEA-02"}
`
	assert.Equal(t, want, buf.String())
}

func TestWriter_WriteXLSX(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	w := table.NewWriter(columns, table.WithUnsetMarker("-"), table.WithSheetName("RD05"))
	require.NoError(t, w.Write(&buf, table.FormatXLSX, classified()))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)

	t.Cleanup(func() { require.NoError(t, f.Close()) })

	assert.Equal(t, []string{"RD05"}, f.GetSheetList())

	rows, err := f.GetRows("RD05")
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		columns,
		{"PEA-01", "12", "", "NT", "4.1.1"},
		{"PEA-02", "", "8", "-", "-"},
	}, rows)
}

func TestWriter_WriteFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "out", "assets.classified.csv")
	require.NoError(t, table.NewWriter(columns).WriteFile(t.Context(), path, table.FormatCSV, classified()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "PEA-02,,8.0,,\n")

	err = table.NewWriter(columns).Write(&bytes.Buffer{}, "parquet", nil)
	require.ErrorIs(t, err, table.ErrUnsupportedFormat)
}

func TestWriteCatalogXLSX(t *testing.T) {
	t.Parallel()

	entries := []catalog.Entry{
		{
			Field: "Cores",
			Values: []catalog.ValueCount{
				{Value: record.Integer(12), Count: 3},
				{Value: record.Integer(24), Count: 1},
			},
			Absent: 2,
		},
		{
			Field:  "Group",
			Values: []catalog.ValueCount{{Value: record.String("2.2"), Count: 1}},
			Unset:  4,
		},
	}

	var buf bytes.Buffer
	require.NoError(t, table.WriteCatalogXLSX(&buf, entries))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)

	t.Cleanup(func() { require.NoError(t, f.Close()) })

	assert.Equal(t, []string{"Cores", "Group"}, f.GetSheetList())

	rows, err := f.GetRows("Cores")
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"Cores", "Count"}, {"12", "3"}, {"24", "1"}, {table.AbsentLabel, "2"}}, rows)

	rows, err = f.GetRows("Group")
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"Group", "Count"}, {"2.2", "1"}, {table.UnsetLabel, "4"}}, rows)
}

func TestWriteCatalogYAML(t *testing.T) {
	t.Parallel()

	entries := []catalog.Entry{
		{
			Field: "Cores",
			Values: []catalog.ValueCount{
				{Value: record.Integer(12), Count: 3},
			},
			Absent: 2,
		},
		{
			Field:  "Group",
			Values: []catalog.ValueCount{{Value: record.String("2.2"), Count: 1}},
			Unset:  4,
		},
	}

	var buf bytes.Buffer
	require.NoError(t, table.WriteCatalogYAML(&buf, entries))

	want := `- field: Cores
  values:
  - value: 12
    count: 3
  absent: 2
- field: Group
  values:
  - value: "2.2"
    count: 1
  unset: 4
`
	assert.YAMLEq(t, want, buf.String())
}
