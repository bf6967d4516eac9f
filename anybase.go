// Package anybase creates query drivers for MySQL, PostgreSQL and SQLite.
//
// A driver queues queries written with {ARG} placeholders and runs them on a
// background loop that reconnects on every cycle:
//
//	db, err := anybase.Base("sqlite")
//	if err != nil {
//		return err
//	}
//	if err := db.Set("app", "", "", ""); err != nil {
//		return err
//	}
//	defer db.UnSet()
//
//	db.QueryAsync("SELECT * FROM users WHERE id={ARG}", query.Args("42"),
//		func(r query.Result) { ... }, false, false)
package anybase

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/satishbabariya/anybase/driver"
	"github.com/satishbabariya/anybase/driver/mysql"
	"github.com/satishbabariya/anybase/driver/postgres"
	"github.com/satishbabariya/anybase/driver/sqlite"
)

// ErrUnsupportedEngine is returned by Base for an unknown engine name.
var ErrUnsupportedEngine = errors.New("unsupported engine")

// engines maps accepted names to engine constructors.
var engines = map[string]func() driver.Engine{
	mysql.Name:    func() driver.Engine { return mysql.New() },
	"mariadb":     func() driver.Engine { return mysql.New() },
	postgres.Name: func() driver.Engine { return postgres.New() },
	"postgres":    func() driver.Engine { return postgres.New() },
	"postgresql":  func() driver.Engine { return postgres.New() },
	sqlite.Name:   func() driver.Engine { return sqlite.New() },
	"sqlite3":     func() driver.Engine { return sqlite.New() },
}

// Engine returns a default-configured engine for name. Matching ignores case
// and surrounding space.
func Engine(name string) (driver.Engine, error) {
	newEngine, ok := engines[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedEngine, name)
	}
	return newEngine(), nil
}

// Base creates an unconfigured driver for the named engine.
func Base(name string, opts ...driver.Option) (*driver.Base, error) {
	e, err := Engine(name)
	if err != nil {
		return nil, err
	}
	return driver.New(e, opts...), nil
}

// MustBase is like Base but panics on an unknown engine.
func MustBase(name string, opts ...driver.Option) *driver.Base {
	b, err := Base(name, opts...)
	if err != nil {
		panic(err)
	}
	return b
}

// Engines lists the accepted engine names.
func Engines() []string {
	names := make([]string, 0, len(engines))
	for name := range engines {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
