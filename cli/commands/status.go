package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/satishbabariya/anybase/cli/internal/ui"
	"github.com/satishbabariya/anybase/driver"
)

// pingQuery is valid on every supported engine.
const pingQuery = "SELECT 1"

func newStatusCommand(opts *globalOptions) *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Connect once and report the connection state",
		RunE: func(cmd *cobra.Command, args []string) error {
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

			progress := ui.StartProgress("connecting to " + describeTarget(d))

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			r, err := d.Query(ctx, pingQuery, nil, false, true)
			switch {
			case err != nil:
				progress.Fail(err)
			case r.Failed():
				progress.Fail(r.Err)
			default:
				progress.Success("connected")
			}

			ui.PrintBox("Status", statusLines(d))
			if err != nil {
				return err
			}
			return r.Err
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "how long to wait for a connection")

	return cmd
}

func describeTarget(d *driver.Base) string {
	t := d.Target()
	if d.Engine().DefaultPort() == 0 {
		return fmt.Sprintf("%s %s", d.Engine().Name(), t.Database)
	}
	return fmt.Sprintf("%s %s@%s:%d/%s", d.Engine().Name(), t.User, t.Server, t.Port, t.Database)
}

func statusLines(d *driver.Base) string {
	important, common := d.Pending()
	lines := []string{
		"target:  " + describeTarget(d),
		"state:   " + ui.StateBadge(d.GetLastState()),
		"mode:    " + d.Mode().String(),
		fmt.Sprintf("pending: %d important, %d common", important, common),
	}
	return strings.Join(lines, "\n")
}
