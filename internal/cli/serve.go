package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/macropower/cablecat/api/v1beta1/rulebooks"
	"github.com/macropower/cablecat/pkg/classify"
	"github.com/macropower/cablecat/pkg/config"
	"github.com/macropower/cablecat/pkg/mcp"
	"github.com/macropower/cablecat/pkg/metrics"
	"github.com/macropower/cablecat/pkg/rulebook"
	"github.com/macropower/cablecat/pkg/telemetry"
)

// ErrWatchPreset is returned when --watch is used without a rulebook file.
var ErrWatchPreset = errors.New("--watch requires a rulebook file")

type ServeArgs struct {
	RulebookArgs

	Addr  string
	HTTP  bool
	Watch bool
}

type staticSource struct {
	c *classify.Classifier
}

func (s staticSource) Classifier() *classify.Classifier {
	return s.c
}

func NewServeCmd(ra *RootArgs) *cobra.Command {
	sa := &ServeArgs{RulebookArgs: RulebookArgs{RootArgs: ra}}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve classification tools over MCP",
		Long: `Serve classification tools over the Model Context Protocol.

By default the server speaks MCP over stdio. With --http it serves the
streamable HTTP transport and Prometheus metrics on /metrics.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, sa)
		},
	}

	sa.AddFlags(cmd)
	cmd.Flags().BoolVar(&sa.HTTP, "http", false, "Serve streamable HTTP instead of stdio")
	cmd.Flags().StringVar(&sa.Addr, "addr", "", "HTTP listen address, defaults to the configured address")
	cmd.Flags().BoolVarP(&sa.Watch, "watch", "w", false, "Reload the rulebook file when it changes")

	bindEnvVars(cmd)

	return cmd
}

func runServe(cmd *cobra.Command, sa *ServeArgs) error {
	ctx := cmd.Context()
	cfg := sa.Config()

	watch := cfg.Serve.Watch
	if cmd.Flags().Changed("watch") {
		watch = sa.Watch
	}

	addr := ""
	if sa.HTTP {
		addr = cfg.Serve.Addr
		if sa.Addr != "" {
			addr = sa.Addr
		}
	}

	rec := metrics.NewRecorder()
	src := sa.Source()

	var (
		source  mcp.ClassifierSource
		watcher *rulebook.Watcher
	)

	switch {
	case watch && src.Path == "":
		return ErrWatchPreset

	case watch:
		load := func() (*classify.Classifier, error) {
			_, c, err := rulebooks.Load(src, config.WithColor(colorEnabled(cmd)))
			if err != nil {
				return nil, err //nolint:wrapcheck // Already annotated with the source.
			}

			err = checkUnsetMarker(c, cfg.Output.UnsetMarker)
			if err != nil {
				return nil, err
			}

			return c, nil
		}

		w, err := rulebook.NewWatcher(src.Path, load, rulebook.WithOnReload(rec.Reloaded))
		if err != nil {
			return err //nolint:wrapcheck // Already annotated with the source.
		}

		watcher = w
		source = w

	default:
		_, c, err := sa.Load(cmd)
		if err != nil {
			return err
		}

		err = checkUnsetMarker(c, cfg.Output.UnsetMarker)
		if err != nil {
			return err
		}

		source = staticSource{c: c}
	}

	srv, err := mcp.NewServer(source,
		mcp.WithAddress(addr),
		mcp.WithRecorder(rec),
		mcp.WithTracer(telemetry.Tracer()),
		mcp.WithUnsetMarker(cfg.Output.UnsetMarker),
		mcp.WithCollation(cfg.Catalog.Collation),
	)
	if err != nil {
		return fmt.Errorf("create MCP server: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)

	if watcher != nil {
		slog.InfoContext(ctx, "watching rulebook", slog.String("path", src.Path))

		g.Go(func() error {
			return watcher.Run(gctx)
		})
	}

	g.Go(func() error {
		// Stop the watcher once the client disconnects.
		defer cancel()

		return srv.Serve(gctx)
	})

	err = g.Wait()
	if err != nil {
		return fmt.Errorf("serve: %w", err)
	}

	return nil
}
