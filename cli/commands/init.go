package commands

import (
	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"

	"github.com/satishbabariya/anybase"
	"github.com/satishbabariya/anybase/cli/internal/ui"
	"github.com/satishbabariya/anybase/config"
	"github.com/satishbabariya/anybase/driver/mysql"
	"github.com/satishbabariya/anybase/driver/postgres"
	"github.com/satishbabariya/anybase/driver/sqlite"
)

// askTarget fills the target fields interactively. Tests replace it.
var askTarget = func(cfg *config.Config) error {
	engine := sqlite.Name
	if e, err := anybase.Engine(cfg.Engine); err == nil {
		engine = e.Name()
	}

	qs := []*survey.Question{
		{
			Name: "engine",
			Prompt: &survey.Select{
				Message: "Engine:",
				Options: []string{mysql.Name, postgres.Name, sqlite.Name},
				Default: engine,
			},
		},
		{
			Name:     "database",
			Prompt:   &survey.Input{Message: "Database:", Default: cfg.Database},
			Validate: survey.Required,
		},
		{
			Name:   "host",
			Prompt: &survey.Input{Message: "Host (empty for SQLite):", Default: cfg.Host},
		},
		{
			Name:   "user",
			Prompt: &survey.Input{Message: "User:", Default: cfg.User},
		},
	}

	answers := struct {
		Engine   string
		Database string
		Host     string
		User     string
	}{}
	if err := survey.Ask(qs, &answers); err != nil {
		return err
	}

	cfg.Engine = answers.Engine
	cfg.Database = answers.Database
	cfg.Host = answers.Host
	cfg.User = answers.User
	return nil
}

func newInitCommand(opts *globalOptions) *cobra.Command {
	var interactive bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write ~/.config/anybase/.anybase.yaml",
		Long: `Write the current settings, including the global flags, to
~/.config/anybase/.anybase.yaml. The password is never saved; pass it
with ANYBASE_PASSWORD or --ask-password.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load(cmd)
			if err != nil {
				return err
			}
			if interactive {
				if err := askTarget(cfg); err != nil {
					return err
				}
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			path, err := config.SaveConfig(cfg)
			if err != nil {
				return err
			}
			ui.PrintSuccess("wrote %s", path)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "prompt for the connection settings")

	return cmd
}
