package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/satishbabariya/anybase/cli/internal/ui"
	"github.com/satishbabariya/anybase/query"
)

func newExecCommand(opts *globalOptions) *cobra.Command {
	var nonQuery bool
	var important bool
	var nulls []int
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "exec TEMPLATE [ARG...]",
		Short: "Run a query template and print its rows",
		Long: `Run a query template through the dispatcher and wait for the result.
Each {ARG} in TEMPLATE is replaced by the next ARG. Use --null to pass
SQL NULL at a given argument position.`,
		Example: `  anybase exec -e sqlite -d app "SELECT * FROM users WHERE id={ARG}" 42
  anybase exec --non-query "UPDATE users SET email={ARG} WHERE id={ARG}" x 42 --null 1`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			values, err := buildArgs(args[1:], nulls)
			if err != nil {
				return err
			}
			return runExec(cmd, opts, args[0], values, nonQuery, important, timeout)
		},
	}

	cmd.Flags().BoolVar(&nonQuery, "non-query", false, "statement returns no rows")
	cmd.Flags().BoolVar(&important, "important", false, "queue on the important lane")
	cmd.Flags().IntSliceVar(&nulls, "null", nil, "1-based argument positions to send as NULL")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "how long to wait for the result")

	return cmd
}

func runExec(cmd *cobra.Command, opts *globalOptions, template string, args []*string, nonQuery, important bool, timeout time.Duration) error {
	cfg, err := opts.loadValid(cmd)
	if err != nil {
		return err
	}

	d, err := cfg.NewDriver(nil)
	if err != nil {
		return err
	}
	if err := cfg.Apply(d); err != nil {
		return err
	}
	defer d.UnSet()

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	r, err := d.Query(ctx, template, args, nonQuery, important)
	if err != nil {
		return err
	}
	if r.Failed() {
		return r.Err
	}
	if nonQuery {
		ui.PrintSuccess("statement executed")
		return nil
	}
	return ui.PrintRows(r.Rows)
}

// buildArgs turns positional values into query arguments, replacing the
// 1-based positions in nulls with NULL.
func buildArgs(values []string, nulls []int) ([]*string, error) {
	args := query.Args(values...)
	for _, pos := range nulls {
		if pos < 1 || pos > len(args) {
			return nil, fmt.Errorf("--null %d: only %d arguments given", pos, len(args))
		}
		args[pos-1] = query.Null
	}
	return args, nil
}
