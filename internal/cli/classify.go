package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/dustin/go-humanize/english"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/macropower/cablecat/api/v1beta1/configs"
	"github.com/macropower/cablecat/pkg/classify"
	"github.com/macropower/cablecat/pkg/log"
	"github.com/macropower/cablecat/pkg/record"
	tbl "github.com/macropower/cablecat/pkg/table"
	"github.com/macropower/cablecat/pkg/telemetry"
)

// maxLoggedIssues bounds the per-cell warnings logged for one input.
const maxLoggedIssues = 20

// ErrUnsetMarkerCollision is returned when the unset marker equals a label
// the rulebook can assign.
var ErrUnsetMarkerCollision = errors.New("unset marker collides with a rulebook label")

type ClassifyArgs struct {
	RulebookArgs
	InputArgs

	Input       string
	Output      string
	Format      string
	UnsetMarker string
	Workers     int
	Quiet       bool
}

func (ca *ClassifyArgs) AddFlags(cmd *cobra.Command) {
	ca.RulebookArgs.AddFlags(cmd)
	ca.InputArgs.AddFlags(cmd)

	cmd.Flags().StringVarP(&ca.Output, "output", "o", "",
		"Output file, or - for stdout. Defaults to <input>.classified<ext>")
	cmd.Flags().StringVar(&ca.Format, "format", "",
		fmt.Sprintf("Output format, one of: %s. Defaults to the output extension",
			[]string{configs.FormatCSV, configs.FormatXLSX, configs.FormatJSONL}))
	cmd.Flags().StringVar(&ca.UnsetMarker, "unset-marker", "", "Value written for unclassified attributes")
	cmd.Flags().IntVar(&ca.Workers, "workers", 0, "Concurrent classification workers, 0 uses all CPUs")
	cmd.Flags().BoolVarP(&ca.Quiet, "quiet", "q", false, "Do not print the summary")

	err := cmd.RegisterFlagCompletionFunc("format",
		cobra.FixedCompletions(
			[]string{configs.FormatCSV, configs.FormatXLSX, configs.FormatJSONL},
			cobra.ShellCompDirectiveNoFileComp,
		),
	)
	if err != nil {
		panic(err)
	}
}

func NewClassifyCmd(ra *RootArgs) *cobra.Command {
	ca := &ClassifyArgs{RulebookArgs: RulebookArgs{RootArgs: ra}}

	cmd := &cobra.Command{
		Use:   "classify INPUT",
		Short: "Classify every record of an XLSX or CSV export",
		Long: `Classify every record of an XLSX or CSV export.

Each rulebook pass adds one column. Within a pass, rules are evaluated in
ascending order and the last matching rule wins. Records no rule matches
receive the pass default, or the unset marker when the pass has none.`,
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: cobra.FixedCompletions(nil, cobra.ShellCompDirectiveDefault),
		RunE: func(cmd *cobra.Command, args []string) error {
			ca.Input = args[0]

			return runClassify(cmd, ca)
		},
	}

	ca.AddFlags(cmd)

	bindEnvVars(cmd)

	return cmd
}

func runClassify(cmd *cobra.Command, ca *ClassifyArgs) error {
	cfg := ca.Config()

	rb, c, err := ca.Load(cmd)
	if err != nil {
		return err
	}

	marker := cfg.Output.UnsetMarker
	if ca.UnsetMarker != "" {
		marker = ca.UnsetMarker
	}

	err = checkUnsetMarker(c, marker)
	if err != nil {
		return err
	}

	workers := cfg.Classify.Workers
	if cmd.Flags().Changed("workers") {
		workers = ca.Workers
	}

	runID := uuid.NewString()

	ctx := log.WithRun(cmd.Context(), runID, rb.String())
	ctx, span := telemetry.Tracer().Start(ctx, "classify", trace.WithAttributes(
		attribute.String("cablecat.run_id", runID),
		attribute.String("cablecat.rulebook", rb.String()),
		attribute.String("cablecat.input", ca.Input),
	))
	defer span.End()

	logger := log.WithContext(ctx)
	start := time.Now()

	t, err := tbl.NewReader(c.Schema(), ca.ReaderOpts(cmd, cfg.Input)...).ReadFile(ctx, ca.Input)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("read input: %w", err)
	}

	logIssues(logger, t)

	results, err := c.ClassifyAll(ctx, t.Records, classify.Options{
		Workers:   workers,
		ChunkSize: cfg.Classify.ChunkSize,
	})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("classify: %w", err)
	}

	out := ca.Output
	if out == "" {
		out = defaultOutputPath(ca.Input, ca.Format)
	}

	format := ca.Format
	if format == "" {
		format = cfg.Output.FormatFor(out)
	}

	records := make([]record.Record, 0, len(results))
	for _, r := range results {
		records = append(records, r.Record)
	}

	w := tbl.NewWriter(outputColumns(t.Columns, c.Attributes()), tbl.WithUnsetMarker(marker))

	if out == "-" {
		err = w.Write(cmd.OutOrStdout(), format, records)
	} else {
		err = w.WriteFile(ctx, out, format, records)
	}
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("write output: %w", err)
	}

	summary := c.Summarize(results)
	elapsed := time.Since(start)

	span.SetAttributes(
		attribute.Int("cablecat.records", summary.Records),
		attribute.Int("cablecat.complete", summary.Complete),
		attribute.Int("cablecat.issues", len(t.Issues)),
	)

	logger.InfoContext(ctx, "classification complete",
		slog.String("output", out),
		slog.String("format", format),
		slog.Int("records", summary.Records),
		slog.Int("complete", summary.Complete),
		slog.Int("skipped", t.Skipped),
		slog.Duration("duration", elapsed),
	)

	if ca.Quiet {
		return nil
	}

	sw := cmd.OutOrStdout()
	if out == "-" {
		sw = cmd.ErrOrStderr()
	}

	return printSummary(sw, summary, marker, t, elapsed)
}

// checkUnsetMarker rejects markers that would be indistinguishable from a
// real label in the output.
func checkUnsetMarker(c *classify.Classifier, marker string) error {
	if marker == "" {
		return fmt.Errorf("%w: marker is empty", ErrUnsetMarkerCollision)
	}

	for _, p := range c.Passes() {
		if slices.Contains(p.Labels(), marker) {
			return fmt.Errorf("%w: %q is a label of pass %q", ErrUnsetMarkerCollision, marker, p.Attribute)
		}
	}

	return nil
}

// defaultOutputPath returns <stem>.classified<ext> beside input. The
// extension follows format when one is given.
func defaultOutputPath(input, format string) string {
	ext := filepath.Ext(input)
	stem := strings.TrimSuffix(input, ext)

	if format != "" {
		ext = "." + format
	}

	return stem + ".classified" + ext
}

// outputColumns lists the input columns followed by the pass attributes.
// An input column named like an attribute is replaced by it.
func outputColumns(input, attrs []string) []string {
	cols := make([]string, 0, len(input)+len(attrs))
	for _, c := range input {
		if !slices.Contains(attrs, c) {
			cols = append(cols, c)
		}
	}

	return append(cols, attrs...)
}

func logIssues(logger *slog.Logger, t *tbl.Table) {
	for i, issue := range t.Issues {
		if i == maxLoggedIssues {
			logger.Warn("more cells could not be read",
				slog.Int("remaining", len(t.Issues)-maxLoggedIssues),
			)

			break
		}

		logger.Warn("cell read as blank",
			slog.Int("row", issue.Row),
			slog.String("column", issue.Column),
			slog.Any("error", issue.Err),
		)
	}

	if t.Skipped > 0 {
		logger.Info("skipped rows without identity", slog.Int("count", t.Skipped))
	}
}

func printSummary(w io.Writer, s classify.Summary, marker string, t *tbl.Table, elapsed time.Duration) error {
	rows := [][]string{}
	for _, p := range s.Passes {
		for _, l := range p.SortedLabels() {
			rows = append(rows, []string{p.Attribute, l, humanize.Comma(int64(p.Labels[l]))})
		}
		if p.Unset > 0 {
			rows = append(rows, []string{p.Attribute, marker, humanize.Comma(int64(p.Unset))})
		}
	}

	tw := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("PASS", "LABEL", "RECORDS").
		Rows(rows...)

	_, err := fmt.Fprintf(w, "Classified %s records (%s complete) in %s.\n",
		humanize.Comma(int64(s.Records)),
		humanize.Comma(int64(s.Complete)),
		elapsed.Round(time.Millisecond),
	)
	if err != nil {
		return fmt.Errorf("write summary: %w", err)
	}

	if t.Skipped > 0 || len(t.Issues) > 0 {
		_, err = fmt.Fprintf(w, "Skipped %s %s without identity, %s %s read as blank.\n",
			humanize.Comma(int64(t.Skipped)), english.PluralWord(t.Skipped, "row", "rows"),
			humanize.Comma(int64(len(t.Issues))), english.PluralWord(len(t.Issues), "cell", "cells"),
		)
		if err != nil {
			return fmt.Errorf("write summary: %w", err)
		}
	}

	_, err = fmt.Fprintln(w, tw.String())
	if err != nil {
		return fmt.Errorf("write summary: %w", err)
	}

	return nil
}
