package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/macropower/cablecat/api/v1beta1/configs"
	"github.com/macropower/cablecat/pkg/config"
	"github.com/macropower/cablecat/pkg/log"
	"github.com/macropower/cablecat/pkg/telemetry"
	"github.com/macropower/cablecat/pkg/version"
)

const (
	cmdName = "cablecat"
	cmdDesc = `Rule-based classification of telecom line and cable asset records.`

	cmdExamples = `  # Classify an export with the default rulebook:
  cablecat classify ./assets.xlsx

  # Classify with the rd03 rulebook and write JSON Lines:
  cablecat classify ./assets.xlsx --preset rd03 -o ./assets.jsonl

  # Catalog the values the rulebook reads:
  cablecat catalog ./assets.xlsx -o ./catalog.xlsx

  # Copy a preset to edit it, then check it:
  cablecat rulebook write rd05 ./rulebook.yaml
  cablecat lint --rulebook ./rulebook.yaml

  # Serve classification tools over MCP and reload on edits:
  cablecat serve --rulebook ./rulebook.yaml --watch`
)

type RootArgs struct {
	cfg      *configs.Config
	shutdown func(context.Context) error

	LogLevel   string
	LogFormat  string
	ConfigPath string
}

func NewRootArgs() *RootArgs {
	return &RootArgs{}
}

func (ra *RootArgs) AddFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().
		StringVar(&ra.LogLevel, "log-level", "info", fmt.Sprintf("Log level, one of: %s", log.AllLevels))
	cmd.PersistentFlags().
		StringVar(&ra.LogFormat, "log-format", "text", fmt.Sprintf("Log format, one of: %s", log.AllFormats))
	cmd.PersistentFlags().
		StringVar(&ra.ConfigPath, "config", "", "Path to the cablecat configuration file")

	var err error

	err = cmd.RegisterFlagCompletionFunc("log-format",
		cobra.FixedCompletions(log.AllFormats, cobra.ShellCompDirectiveNoFileComp),
	)
	if err != nil {
		panic(err)
	}

	err = cmd.RegisterFlagCompletionFunc("log-level",
		cobra.FixedCompletions(log.AllLevels, cobra.ShellCompDirectiveNoFileComp),
	)
	if err != nil {
		panic(err)
	}

	err = cmd.MarkPersistentFlagFilename("config", "yaml", "yml")
	if err != nil {
		panic(fmt.Errorf("mark config flag: %w", err))
	}
}

// Config returns the active configuration. It is loaded before any
// subcommand runs.
func (ra *RootArgs) Config() *configs.Config {
	if ra.cfg == nil {
		return configs.New()
	}

	return ra.cfg
}

// GetConfigPath returns the configuration file path in use.
func (ra *RootArgs) GetConfigPath() string {
	if ra.ConfigPath != "" {
		return ra.ConfigPath
	}

	return configs.GetPath()
}

func NewRootCmd() *cobra.Command {
	args := NewRootArgs()

	cmd := &cobra.Command{
		Use:                cmdName,
		Short:              cmdDesc,
		Example:            cmdExamples,
		SilenceUsage:       true,
		PersistentPreRunE:  setup(args),
		PersistentPostRunE: teardown(args),
	}

	args.AddFlags(cmd)

	cmd.AddCommand(
		NewClassifyCmd(args),
		NewCatalogCmd(args),
		NewLintCmd(args),
		NewRulebookCmd(args),
		NewServeCmd(args),
		NewConfigCmd(args),
	)

	bindEnvVars(cmd)

	return cmd
}

func setup(ra *RootArgs) func(cmd *cobra.Command, _ []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		logHandler, err := log.CreateHandlerWithStrings(cmd.ErrOrStderr(), ra.LogLevel, ra.LogFormat)
		if err != nil {
			return fmt.Errorf("create log handler: %w", err)
		}

		slog.SetDefault(slog.New(logHandler))

		cfg, err := loadConfig(ra.GetConfigPath(), colorEnabled(cmd))
		if err != nil {
			return err
		}

		ra.cfg = cfg

		shutdown, err := telemetry.Init(cmd.Context(), telemetry.Options{
			Writer:         cmd.ErrOrStderr(),
			Exporter:       cfg.Telemetry.Exporter,
			Endpoint:       cfg.Telemetry.Endpoint,
			ServiceVersion: version.GetVersion(),
		}.FromEnv())
		if err != nil {
			return fmt.Errorf("init telemetry: %w", err)
		}

		ra.shutdown = shutdown

		return nil
	}
}

func teardown(ra *RootArgs) func(cmd *cobra.Command, _ []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		if ra.shutdown == nil {
			return nil
		}

		err := ra.shutdown(context.WithoutCancel(cmd.Context()))
		if err != nil {
			return fmt.Errorf("shutdown telemetry: %w", err)
		}

		return nil
	}
}

// loadConfig reads the configuration at path, writing the default
// configuration first if nothing exists there.
func loadConfig(path string, color bool) (*configs.Config, error) {
	err := configs.WriteDefault(path, false)
	if err != nil {
		slog.Debug("write default config", slog.Any("err", err))
	}

	cl, err := config.NewLoaderFromFile(path, configs.New, configs.DefaultValidator, config.WithColor(color))
	if err != nil {
		slog.Warn("could not read config, using defaults", slog.Any("err", err))

		return configs.New(), nil
	}

	err = cl.Validate()
	if err != nil {
		return nil, fmt.Errorf("invalid config %q: %w", path, err)
	}

	cfg, err := cl.Load()
	if err != nil {
		return nil, fmt.Errorf("invalid config %q: %w", path, err)
	}

	err = cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("invalid config %q: %w", path, err)
	}

	return cfg, nil
}

// colorEnabled reports whether stderr is a terminal, so that YAML errors
// can be annotated in color.
func colorEnabled(cmd *cobra.Command) bool {
	f, ok := cmd.ErrOrStderr().(*os.File)
	if !ok {
		return false
	}

	return term.IsTerminal(int(f.Fd()))
}
