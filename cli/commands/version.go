package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/satishbabariya/anybase"
	"github.com/satishbabariya/anybase/cli/internal/ui"
	"github.com/satishbabariya/anybase/cli/internal/version"
)

// NewVersionCommand creates the version command.
func NewVersionCommand() *cobra.Command {
	var short bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Long:  "Display version information and the supported engines",
		Run: func(cmd *cobra.Command, args []string) {
			info := version.Get()
			if short {
				fmt.Fprintln(ui.Out, info.String())
				return
			}
			fmt.Fprintln(ui.Out, info.FullString())
			fmt.Fprintf(ui.Out, "Engines: %v\n", anybase.Engines())
		},
	}

	cmd.Flags().BoolVar(&short, "short", false, "print a single line")

	return cmd
}
