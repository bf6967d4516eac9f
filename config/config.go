// Package config loads driver settings from .anybase.yaml, .env files and
// ANYBASE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/afero"
	"github.com/spf13/viper"

	"github.com/satishbabariya/anybase"
	"github.com/satishbabariya/anybase/dispatch"
	"github.com/satishbabariya/anybase/driver"
	"github.com/satishbabariya/anybase/driver/mysql"
	"github.com/satishbabariya/anybase/driver/postgres"
	"github.com/satishbabariya/anybase/driver/sqlite"
	"github.com/satishbabariya/anybase/telemetry"
)

// AppFs is the filesystem configuration is read from and written to.
var AppFs = afero.NewOsFs()

const (
	// FileName is the config file name without extension.
	FileName = ".anybase"
	// EnvPrefix prefixes environment overrides, e.g. ANYBASE_HOST.
	EnvPrefix = "ANYBASE"
)

// Config holds the application configuration
type Config struct {
	Engine   string
	Database string
	Host     string
	User     string
	Password string

	SSLMode    string
	PGDriver   string
	TLS        string
	SQLiteDir  string
	// EscapeMode is only valid for MySQL. Validate rejects it elsewhere.
	EscapeMode bool

	LogLevel    string
	MetricsAddr string

	Dispatch dispatch.Config

	// File is the config file that was read, if any.
	File string
}

// Loader reads configuration. The zero value searches the working
// directory and the user's home.
type Loader struct {
	// Fs defaults to AppFs.
	Fs afero.Fs
	// Home overrides the home directory lookup.
	Home string
	// File reads this file instead of searching.
	File string
}

// LoadConfig loads configuration with a zero Loader.
func LoadConfig() (*Config, error) {
	return (&Loader{}).Load()
}

func (l *Loader) fs() afero.Fs {
	if l.Fs != nil {
		return l.Fs
	}
	return AppFs
}

func (l *Loader) home() (string, error) {
	if l.Home != "" {
		return l.Home, nil
	}
	return homedir.Dir()
}

// Load reads the config file (a missing one is fine), applies .env and
// .env.local, then environment overrides.
func (l *Loader) Load() (*Config, error) {
	fs := l.fs()
	v := newViper(fs)

	if l.File != "" {
		v.SetConfigFile(l.File)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", l.File, err)
		}
	} else {
		home, err := l.home()
		if err != nil {
			return nil, err
		}
		v.SetConfigName(FileName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath(home)
		v.AddConfigPath(filepath.Join(home, ".config", "anybase"))

		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	// .env never overrides the environment; .env.local always does.
	if err := loadEnvFile(fs, ".env", false); err != nil {
		return nil, err
	}
	if err := loadEnvFile(fs, ".env.local", true); err != nil {
		return nil, err
	}

	cfg := &Config{
		Engine:      v.GetString("engine"),
		Database:    v.GetString("database"),
		Host:        v.GetString("host"),
		User:        v.GetString("user"),
		Password:    v.GetString("password"),
		SSLMode:     v.GetString("sslmode"),
		PGDriver:    v.GetString("pg_driver"),
		TLS:         v.GetString("tls"),
		SQLiteDir:   v.GetString("sqlite_dir"),
		EscapeMode:  v.GetBool("escape_mode"),
		LogLevel:    v.GetString("log_level"),
		MetricsAddr: v.GetString("metrics_addr"),
		Dispatch: dispatch.Config{
			Interval:          v.GetDuration("dispatch.interval"),
			Backoff:           v.GetDuration("dispatch.backoff"),
			ImportantCapacity: v.GetInt("dispatch.important_capacity"),
			CommonCapacity:    v.GetInt("dispatch.common_capacity"),
			ImportantBatch:    v.GetInt("dispatch.important_batch"),
			CommonBatch:       v.GetInt("dispatch.common_batch"),
			StopGrace:         v.GetDuration("dispatch.stop_grace"),
			QueryTimeout:      v.GetDuration("dispatch.query_timeout"),
		},
		File: v.ConfigFileUsed(),
	}
	return cfg, nil
}

func newViper(fs afero.Fs) *viper.Viper {
	v := viper.New()
	v.SetFs(fs)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	d := dispatch.DefaultConfig()
	v.SetDefault("engine", sqlite.Name)
	v.SetDefault("database", "")
	v.SetDefault("host", "")
	v.SetDefault("user", "")
	v.SetDefault("password", "")
	v.SetDefault("sslmode", postgres.SSLDisable)
	v.SetDefault("pg_driver", "pq")
	v.SetDefault("tls", "")
	v.SetDefault("sqlite_dir", "")
	v.SetDefault("escape_mode", false)
	v.SetDefault("log_level", "warn")
	v.SetDefault("metrics_addr", "")
	v.SetDefault("dispatch.interval", d.Interval)
	v.SetDefault("dispatch.backoff", d.Backoff)
	v.SetDefault("dispatch.important_capacity", d.ImportantCapacity)
	v.SetDefault("dispatch.common_capacity", d.CommonCapacity)
	v.SetDefault("dispatch.important_batch", d.ImportantBatch)
	v.SetDefault("dispatch.common_batch", d.CommonBatch)
	v.SetDefault("dispatch.stop_grace", d.StopGrace)
	v.SetDefault("dispatch.query_timeout", d.QueryTimeout)
	return v
}

// loadEnvFile applies a dotenv file from fs to the process environment.
// Without override, variables that are already set are kept.
func loadEnvFile(fs afero.Fs, name string, override bool) error {
	f, err := fs.Open(name)
	if err != nil {
		return nil
	}
	defer f.Close()

	vars, err := godotenv.Parse(f)
	if err != nil {
		return fmt.Errorf("failed to parse %s: %w", name, err)
	}
	for k, val := range vars {
		if _, exists := os.LookupEnv(k); exists && !override {
			continue
		}
		if err := os.Setenv(k, val); err != nil {
			return err
		}
	}
	return nil
}

// Validate checks that the engine is known and the target is usable.
func (c *Config) Validate() error {
	e, err := anybase.Engine(c.Engine)
	if err != nil {
		return err
	}
	if c.EscapeMode && !driver.SupportsEscapeMode(e) {
		return fmt.Errorf("escape_mode: %w: %s", driver.ErrEscapeUnsupported, e.Name())
	}
	if c.Database == "" {
		return errors.New("database is required")
	}
	if c.Dispatch.Interval < 0 || c.Dispatch.Backoff < 0 {
		return errors.New("dispatch interval and backoff must not be negative")
	}
	return nil
}

// NewEngine builds the configured engine variant.
func (c *Config) NewEngine() (driver.Engine, error) {
	e, err := anybase.Engine(c.Engine)
	if err != nil {
		return nil, err
	}
	switch e.Name() {
	case mysql.Name:
		if c.TLS != "" {
			return mysql.New(mysql.WithTLS(c.TLS)), nil
		}
	case postgres.Name:
		var opts []postgres.Option
		if c.SSLMode != "" {
			opts = append(opts, postgres.WithSSLMode(c.SSLMode))
		}
		switch c.PGDriver {
		case "", "pq":
		case "pgx":
			opts = append(opts, postgres.WithDriver(postgres.DriverPgx))
		default:
			return nil, fmt.Errorf("%w %q", postgres.ErrInvalidDriver, c.PGDriver)
		}
		return postgres.New(opts...), nil
	case sqlite.Name:
		if c.SQLiteDir != "" {
			return sqlite.New(sqlite.WithDir(c.SQLiteDir)), nil
		}
	}
	return e, nil
}

// DriverOptions translates the configuration into driver options.
func (c *Config) DriverOptions(rec telemetry.Recorder) []driver.Option {
	opts := []driver.Option{driver.WithDispatchConfig(c.Dispatch)}
	if c.EscapeMode {
		opts = append(opts, driver.WithEscapeMode())
	}
	if rec != nil {
		opts = append(opts, driver.WithMetrics(rec))
	}
	return opts
}

// NewDriver creates an unconfigured driver. Call Apply to connect it.
func (c *Config) NewDriver(rec telemetry.Recorder) (*driver.Base, error) {
	e, err := c.NewEngine()
	if err != nil {
		return nil, err
	}
	return driver.New(e, c.DriverOptions(rec)...), nil
}

// Apply calls Set on d with the configured target.
func (c *Config) Apply(d driver.Driver) error {
	return d.Set(c.Database, c.Host, c.User, c.Password)
}

// SameTarget reports whether two configurations connect to the same place
// with the same credentials.
func (c *Config) SameTarget(o *Config) bool {
	return c.Engine == o.Engine &&
		c.Database == o.Database &&
		c.Host == o.Host &&
		c.User == o.User &&
		c.Password == o.Password
}

// SameEngine reports whether two configurations build the same engine
// variant with the same driver options.
func (c *Config) SameEngine(o *Config) bool {
	return c.Engine == o.Engine &&
		c.SSLMode == o.SSLMode &&
		c.PGDriver == o.PGDriver &&
		c.TLS == o.TLS &&
		c.SQLiteDir == o.SQLiteDir &&
		c.EscapeMode == o.EscapeMode &&
		c.Dispatch == o.Dispatch
}

// SaveConfig writes cfg to ~/.config/anybase/.anybase.yaml. The password
// is never written.
func SaveConfig(cfg *Config) (string, error) {
	return (&Loader{}).Save(cfg)
}

// Save writes cfg below the loader's home directory.
func (l *Loader) Save(cfg *Config) (string, error) {
	fs := l.fs()
	home, err := l.home()
	if err != nil {
		return "", err
	}

	v := viper.New()
	v.SetFs(fs)
	v.Set("engine", cfg.Engine)
	v.Set("database", cfg.Database)
	v.Set("host", cfg.Host)
	v.Set("user", cfg.User)
	v.Set("sslmode", cfg.SSLMode)
	v.Set("pg_driver", cfg.PGDriver)
	v.Set("tls", cfg.TLS)
	v.Set("sqlite_dir", cfg.SQLiteDir)
	v.Set("escape_mode", cfg.EscapeMode)
	v.Set("log_level", cfg.LogLevel)
	v.Set("metrics_addr", cfg.MetricsAddr)
	v.Set("dispatch.interval", cfg.Dispatch.Interval.String())
	v.Set("dispatch.backoff", cfg.Dispatch.Backoff.String())
	v.Set("dispatch.important_capacity", cfg.Dispatch.ImportantCapacity)
	v.Set("dispatch.common_capacity", cfg.Dispatch.CommonCapacity)
	v.Set("dispatch.important_batch", cfg.Dispatch.ImportantBatch)
	v.Set("dispatch.common_batch", cfg.Dispatch.CommonBatch)
	v.Set("dispatch.stop_grace", cfg.Dispatch.StopGrace.String())
	v.Set("dispatch.query_timeout", cfg.Dispatch.QueryTimeout.String())

	configPath := filepath.Join(home, ".config", "anybase")
	if err := fs.MkdirAll(configPath, 0o755); err != nil {
		return "", err
	}

	configFile := filepath.Join(configPath, FileName+".yaml")
	if err := v.WriteConfigAs(configFile); err != nil {
		return "", fmt.Errorf("failed to write config: %w", err)
	}
	return configFile, nil
}
