package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/macropower/cablecat/api/v1beta1/rulebooks"
	"github.com/macropower/cablecat/pkg/config"
)

func NewRulebookCmd(ra *RootArgs) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rulebook",
		Short: "Inspect and copy rulebooks",
	}

	cmd.AddCommand(
		newRulebookListCmd(),
		newRulebookShowCmd(ra),
		newRulebookWriteCmd(),
	)

	return cmd
}

func newRulebookListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the embedded rulebooks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			for _, name := range rulebooks.Presets() {
				l, err := rulebooks.NewLoader(rulebooks.Source{Preset: name}, config.WithColor(colorEnabled(cmd)))
				if err != nil {
					return err //nolint:wrapcheck // Already annotated with the source.
				}

				rb, err := l.Load()
				if err != nil {
					return fmt.Errorf("load preset %s: %w", name, err)
				}

				mustN(fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", name, rb.String(), rb.Metadata.Description))
			}

			return nil
		},
	}
}

func newRulebookShowCmd(ra *RootArgs) *cobra.Command {
	rba := &RulebookArgs{RootArgs: ra}

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the selected rulebook after validation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rb, _, err := rba.Load(cmd)
			if err != nil {
				return err
			}

			b, err := rb.MarshalYAML()
			if err != nil {
				return err //nolint:wrapcheck // Already wrapped.
			}

			mustN(cmd.OutOrStdout().Write(b))

			return nil
		},
	}

	rba.AddFlags(cmd)

	bindEnvVars(cmd)

	return cmd
}

func newRulebookWriteCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:       "write PRESET PATH",
		Short:     "Copy an embedded rulebook to a file for editing",
		Args:      cobra.ExactArgs(2),
		ValidArgs: rulebooks.Presets(),
		RunE: func(cmd *cobra.Command, args []string) error {
			err := rulebooks.WritePreset(args[0], args[1], force)
			if err != nil {
				return err //nolint:wrapcheck // Already wrapped.
			}

			mustN(fmt.Fprintf(cmd.OutOrStdout(), "wrote %s to %s\n", args[0], args[1]))

			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file, keeping a backup")

	return cmd
}
