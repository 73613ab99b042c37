package cli

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"

	"github.com/spf13/cobra"

	"github.com/macropower/cablecat/api/v1beta1/configs"
	"github.com/macropower/cablecat/pkg/catalog"
	"github.com/macropower/cablecat/pkg/classify"
	"github.com/macropower/cablecat/pkg/log"
	"github.com/macropower/cablecat/pkg/record"
	"github.com/macropower/cablecat/pkg/table"
)

type CatalogArgs struct {
	RulebookArgs
	InputArgs

	Input     string
	Output    string
	Collation string
	Fields    []string
}

func (ca *CatalogArgs) AddFlags(cmd *cobra.Command) {
	ca.RulebookArgs.AddFlags(cmd)
	ca.InputArgs.AddFlags(cmd)

	cmd.Flags().StringVarP(&ca.Output, "output", "o", "",
		"Output file (.xlsx or .yaml). Defaults to YAML on stdout")
	cmd.Flags().StringSliceVarP(&ca.Fields, "field", "f", nil,
		"Field or pass attribute to catalog. Defaults to the rulebook's catalog fields")
	cmd.Flags().StringVar(&ca.Collation, "collation", "", "BCP 47 language tag used to sort values")
}

func NewCatalogCmd(ra *RootArgs) *cobra.Command {
	ca := &CatalogArgs{RulebookArgs: RulebookArgs{RootArgs: ra}}

	cmd := &cobra.Command{
		Use:   "catalog INPUT",
		Short: "List the distinct values of each field in an export",
		Long: `List the distinct values of each field in an export, with counts.

Records are classified first, so pass attributes may be cataloged too.
Use the catalog to check that the rulebook covers the values in real data.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ca.Input = args[0]

			return runCatalog(cmd, ca)
		},
	}

	ca.AddFlags(cmd)

	bindEnvVars(cmd)

	return cmd
}

func runCatalog(cmd *cobra.Command, ca *CatalogArgs) error {
	cfg := ca.Config()

	rb, c, err := ca.Load(cmd)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	logger := log.WithContext(ctx)

	t, err := table.NewReader(c.Schema(), ca.ReaderOpts(cmd, cfg.Input)...).ReadFile(ctx, ca.Input)
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}

	results, err := c.ClassifyAll(ctx, t.Records, classify.Options{Workers: cfg.Classify.Workers})
	if err != nil {
		return fmt.Errorf("classify: %w", err)
	}

	records := make([]record.Record, 0, len(results))
	for _, r := range results {
		records = append(records, r.Record)
	}

	fields := ca.Fields
	if len(fields) == 0 {
		fields = rb.CatalogFields()
	}

	collation := cfg.Catalog.Collation
	if cmd.Flags().Changed("collation") {
		collation = ca.Collation
	}

	cat, err := catalog.New(slices.Concat(c.Schema().Names(), c.Attributes()), catalog.WithCollation(collation))
	if err != nil {
		return fmt.Errorf("create cataloger: %w", err)
	}

	entries, err := cat.Catalog(records, fields...)
	if err != nil {
		return fmt.Errorf("catalog: %w", err)
	}

	logger.InfoContext(ctx, "catalog complete",
		slog.Int("records", len(records)),
		slog.Any("fields", fields),
	)

	if ca.Output == "" || ca.Output == "-" {
		return table.WriteCatalogYAML(cmd.OutOrStdout(), entries) //nolint:wrapcheck // Already wrapped.
	}

	return writeCatalogFile(ca.Output, entries)
}

func writeCatalogFile(path string, entries []catalog.Entry) (err error) {
	format := configs.FormatFromPath(path, configs.FormatYAML)
	if format != configs.FormatXLSX && format != configs.FormatYAML {
		return fmt.Errorf("%w: %q for catalog output", table.ErrUnsupportedFormat, format)
	}

	err = os.MkdirAll(filepath.Dir(path), 0o750)
	if err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	f, err := os.Create(path) //nolint:gosec // G304: Writing to a user-provided path is the point.
	if err != nil {
		return fmt.Errorf("create catalog: %w", err)
	}

	defer func() {
		cerr := f.Close()
		if err == nil && cerr != nil {
			err = fmt.Errorf("close catalog: %w", cerr)
		}
	}()

	if format == configs.FormatXLSX {
		return table.WriteCatalogXLSX(f, entries) //nolint:wrapcheck // Already wrapped.
	}

	return table.WriteCatalogYAML(f, entries) //nolint:wrapcheck // Already wrapped.
}
