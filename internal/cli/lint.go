package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

// ErrLintFindings is returned by lint --strict when any finding is reported.
var ErrLintFindings = errors.New("rulebook has lint findings")

type LintArgs struct {
	RulebookArgs

	Strict bool
}

func NewLintCmd(ra *RootArgs) *cobra.Command {
	la := &LintArgs{RulebookArgs: RulebookArgs{RootArgs: ra}}

	cmd := &cobra.Command{
		Use:   "lint",
		Short: "Validate a rulebook and report rules that need review",
		Long: `Validate a rulebook and report rules that need review.

Configuration errors, such as an undeclared field or a duplicate rule
order, fail the command. Findings list rules carrying review notes and rules
that can never win because a later rule has the same predicate.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runLint(cmd, la)
		},
	}

	la.AddFlags(cmd)
	cmd.Flags().BoolVar(&la.Strict, "strict", false, "Fail when any finding is reported")

	bindEnvVars(cmd)

	return cmd
}

func runLint(cmd *cobra.Command, la *LintArgs) error {
	rb, c, err := la.Load(cmd)
	if err != nil {
		return err
	}

	findings := rb.Lint()
	w := cmd.OutOrStdout()

	for _, f := range findings {
		mustN(fmt.Fprintf(w, "%s: rule %s: %s\n", f.Path, f.Rule.Name(), f.Message))
	}

	rules := 0
	for _, p := range c.Passes() {
		rules += len(p.Rules)
	}

	mustN(fmt.Fprintf(w, "%s: %d passes, %d rules, %d findings\n",
		rb.String(), len(c.Passes()), rules, len(findings)))

	if la.Strict && len(findings) > 0 {
		return fmt.Errorf("%w: %d", ErrLintFindings, len(findings))
	}

	return nil
}
