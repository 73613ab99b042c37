package cli

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/macropower/cablecat/api/v1beta1/configs"
	"github.com/macropower/cablecat/api/v1beta1/rulebooks"
	"github.com/macropower/cablecat/pkg/classify"
	"github.com/macropower/cablecat/pkg/config"
	"github.com/macropower/cablecat/pkg/table"
)

// RulebookArgs selects the rulebook for a command. Flags take precedence
// over the configuration file.
type RulebookArgs struct {
	*RootArgs

	Preset string
	Path   string
}

func (ra *RulebookArgs) AddFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&ra.Path, "rulebook", "r", "", "Path to a rulebook file")
	cmd.Flags().StringVar(&ra.Preset, "preset", "",
		fmt.Sprintf("Embedded rulebook to use, one of: %s", rulebooks.Presets()))

	cmd.MarkFlagsMutuallyExclusive("rulebook", "preset")

	err := cmd.MarkFlagFilename("rulebook", "yaml", "yml")
	if err != nil {
		panic(fmt.Errorf("mark rulebook flag: %w", err))
	}

	err = cmd.RegisterFlagCompletionFunc("preset",
		cobra.FixedCompletions(rulebooks.Presets(), cobra.ShellCompDirectiveNoFileComp),
	)
	if err != nil {
		panic(err)
	}
}

// Source resolves the rulebook location. A configured path is relative to
// the configuration file.
func (ra *RulebookArgs) Source() rulebooks.Source {
	switch {
	case ra.Path != "":
		return rulebooks.Source{Path: ra.Path}
	case ra.Preset != "":
		return rulebooks.Source{Preset: ra.Preset}
	}

	rc := ra.Config().Rulebook
	if rc.Path == "" {
		return rulebooks.Source{Preset: rc.Preset}
	}

	path := rc.Path
	if !filepath.IsAbs(path) {
		path = filepath.Join(filepath.Dir(ra.GetConfigPath()), path)
	}

	return rulebooks.Source{Path: path}
}

// Load loads and compiles the selected rulebook.
func (ra *RulebookArgs) Load(cmd *cobra.Command) (*rulebooks.Rulebook, *classify.Classifier, error) {
	src := ra.Source()

	rb, c, err := rulebooks.Load(src, config.WithColor(colorEnabled(cmd)))
	if err != nil {
		return nil, nil, err //nolint:wrapcheck // Already annotated with the source.
	}

	slog.DebugContext(cmd.Context(), "loaded rulebook",
		slog.String("source", src.String()),
		slog.String("rulebook", rb.String()),
		slog.Any("passes", c.Attributes()),
	)

	return rb, c, nil
}

// InputArgs controls how input tables are read. Flags override the input
// section of the configuration file.
type InputArgs struct {
	Sheet       string
	DropColumns []int
	SkipRows    int
	Header      bool
}

func (ia *InputArgs) AddFlags(cmd *cobra.Command) {
	cmd.Flags().IntVar(&ia.SkipRows, "skip-rows", configs.DefaultSkipRows, "Banner rows above the data")
	cmd.Flags().StringVar(&ia.Sheet, "sheet", "", "XLSX sheet to read, defaults to the first sheet")
	cmd.Flags().BoolVar(&ia.Header, "header", false, "Read column names from the first data row")
	cmd.Flags().IntSliceVar(&ia.DropColumns, "drop-columns", nil, "Zero-based column indexes to drop")
}

// ReaderOpts merges the flags that were set with the configured defaults.
func (ia *InputArgs) ReaderOpts(cmd *cobra.Command, cfg *configs.InputConfig) []table.ReaderOpt {
	skip := configs.DefaultSkipRows
	if cfg.SkipRows != nil {
		skip = *cfg.SkipRows
	}
	if cmd.Flags().Changed("skip-rows") {
		skip = ia.SkipRows
	}

	sheet := cfg.Sheet
	if cmd.Flags().Changed("sheet") {
		sheet = ia.Sheet
	}

	header := cfg.Header
	if cmd.Flags().Changed("header") {
		header = ia.Header
	}

	drop := cfg.DropColumns
	if cmd.Flags().Changed("drop-columns") {
		drop = ia.DropColumns
	}

	return []table.ReaderOpt{
		table.WithSkipRows(skip),
		table.WithSheet(sheet),
		table.WithHeader(header),
		table.WithDropColumns(drop...),
	}
}
