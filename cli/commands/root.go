// Package commands implements the anybase CLI.
package commands

import (
	"fmt"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"

	"github.com/satishbabariya/anybase/cli/internal/ui"
	"github.com/satishbabariya/anybase/cli/internal/version"
	"github.com/satishbabariya/anybase/config"
	"github.com/satishbabariya/anybase/internal/debug"
)

// globalOptions holds the persistent flags shared by every command.
type globalOptions struct {
	configFile  string
	engine      string
	database    string
	host        string
	user        string
	password    string
	askPassword bool
	logLevel    string
	debug       bool

	// prompted caches the password read by --ask-password.
	prompted *string
}

// promptPassword reads a password without echo. Tests replace it.
var promptPassword = func() (string, error) {
	var pw string
	err := survey.AskOne(&survey.Password{Message: "Password:"}, &pw)
	return pw, err
}

// Execute is the main entry point for the CLI
func Execute() error {
	cmd := NewRootCommand()
	if err := cmd.Execute(); err != nil {
		ui.PrintError("%v", err)
		return err
	}
	return nil
}

// NewRootCommand creates the anybase command with all subcommands.
func NewRootCommand() *cobra.Command {
	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:           "anybase",
		Short:         "Queue queries against MySQL, PostgreSQL and SQLite",
		Long:          "anybase runs {ARG} query templates through a background dispatcher for MySQL, PostgreSQL or SQLite.",
		Version:       version.Get().Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&opts.configFile, "config", "", "config file (default: search .anybase.yaml)")
	pf.StringVarP(&opts.engine, "engine", "e", "", "engine: mysql, postgre or sqlite")
	pf.StringVarP(&opts.database, "database", "d", "", "database name or SQLite file")
	pf.StringVarP(&opts.host, "host", "H", "", "server host[:port]")
	pf.StringVarP(&opts.user, "user", "u", "", "user name")
	pf.StringVarP(&opts.password, "password", "p", "", "password")
	pf.BoolVar(&opts.askPassword, "ask-password", false, "prompt for the password")
	pf.StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn or error")
	pf.BoolVar(&opts.debug, "debug", false, "enable debug logging")

	cmd.AddCommand(newExecCommand(opts))
	cmd.AddCommand(newCompileCommand(opts))
	cmd.AddCommand(newStatusCommand(opts))
	cmd.AddCommand(newWatchCommand(opts))
	cmd.AddCommand(newInitCommand(opts))
	cmd.AddCommand(NewVersionCommand())

	return cmd
}

// load reads the configuration and applies the flags that were set on the
// command line. The result is not validated.
func (o *globalOptions) load(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := (&config.Loader{File: o.configFile}).Load()
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("engine") {
		cfg.Engine = o.engine
	}
	if flags.Changed("database") {
		cfg.Database = o.database
	}
	if flags.Changed("host") {
		cfg.Host = o.host
	}
	if flags.Changed("user") {
		cfg.User = o.user
	}
	if flags.Changed("password") {
		cfg.Password = o.password
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = o.logLevel
	}
	if o.debug {
		cfg.LogLevel = "debug"
	}
	debug.SetLevel(cfg.LogLevel)

	if o.askPassword {
		if o.prompted == nil {
			pw, err := promptPassword()
			if err != nil {
				return nil, fmt.Errorf("failed to read password: %w", err)
			}
			o.prompted = &pw
		}
		cfg.Password = *o.prompted
	}

	return cfg, nil
}

// loadValid is load followed by Validate.
func (o *globalOptions) loadValid(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := o.load(cmd)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
