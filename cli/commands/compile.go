package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/satishbabariya/anybase/cli/internal/ui"
	"github.com/satishbabariya/anybase/driver"
	"github.com/satishbabariya/anybase/query"
)

func newCompileCommand(opts *globalOptions) *cobra.Command {
	var escape bool
	var raw bool
	var nulls []int

	cmd := &cobra.Command{
		Use:   "compile TEMPLATE [ARG...]",
		Short: "Show the SQL a template compiles to",
		Long: `Compile a query template for the configured engine without
connecting. Prints the statement text and the bound values.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("escape") {
				cfg.EscapeMode = escape
			}

			values, err := buildArgs(args[1:], nulls)
			if err != nil {
				return err
			}

			e, err := cfg.NewEngine()
			if err != nil {
				return err
			}
			d := driver.New(e, cfg.DriverOptions(nil)...)

			stmt, err := d.Compile(args[0], values)
			if err != nil {
				return err
			}

			if raw {
				printStatement(stmt)
				return nil
			}
			return ui.PrintMarkdown(statementMarkdown(e.Name(), d.Mode().String(), stmt))
		},
	}

	cmd.Flags().BoolVar(&escape, "escape", false, "inline escaped literals instead of binding (MySQL only)")
	cmd.Flags().BoolVar(&raw, "raw", false, "print plain text")
	cmd.Flags().IntSliceVar(&nulls, "null", nil, "1-based argument positions to send as NULL")

	return cmd
}

func printStatement(stmt query.Statement) {
	fmt.Fprintln(ui.Out, stmt.Text)
	for i, v := range stmt.Values {
		fmt.Fprintf(ui.Out, "%d\t%s\n", i+1, valueString(v))
	}
}

func statementMarkdown(engine, mode string, stmt query.Statement) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "**engine** `%s` · **mode** `%s`\n\n", engine, mode)
	fmt.Fprintf(&sb, "```sql\n%s\n```\n", stmt.Text)

	if len(stmt.Values) > 0 {
		sb.WriteString("\n| # | value |\n|---|---|\n")
		for i, v := range stmt.Values {
			fmt.Fprintf(&sb, "| %d | `%s` |\n", i+1, strings.ReplaceAll(valueString(v), "|", `\|`))
		}
	}
	return sb.String()
}

func valueString(v any) string {
	if v == nil {
		return "NULL"
	}
	return fmt.Sprint(v)
}
