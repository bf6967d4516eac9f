// Package version reports the build of the anybase binary and of the
// database drivers linked into it.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"

	"github.com/satishbabariya/anybase/driver/sqlite"
)

// Set with -ldflags "-X .../version.Version=... -X .../version.GitCommit=...".
// Empty values are filled from the embedded build info.
var (
	Version   = ""
	BuildDate = ""
	GitCommit = ""
)

// Modules whose versions are listed under Drivers, keyed by display name.
var driverModules = []struct {
	name string
	path string
}{
	{"mysql", "github.com/go-sql-driver/mysql"},
	{"pq", "github.com/lib/pq"},
	{"pgx", "github.com/jackc/pgx/v4"},
	{"sqlite3", "github.com/mattn/go-sqlite3"},
}

// Driver is one linked database driver.
type Driver struct {
	Name    string
	Version string
}

// Info describes the running binary.
type Info struct {
	Version   string
	BuildDate string
	GitCommit string
	GoVersion string
	Platform  string
	SQLite    string
	Drivers   []Driver
}

// Get collects version information.
func Get() Info {
	bi, _ := debug.ReadBuildInfo()
	return fromBuildInfo(bi)
}

func fromBuildInfo(bi *debug.BuildInfo) Info {
	info := Info{
		Version:   Version,
		BuildDate: BuildDate,
		GitCommit: GitCommit,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
		SQLite:    sqlite.LibVersion(),
	}

	deps := map[string]string{}
	if bi != nil {
		if info.Version == "" && bi.Main.Version != "(devel)" {
			info.Version = bi.Main.Version
		}
		for _, s := range bi.Settings {
			switch {
			case s.Key == "vcs.revision" && info.GitCommit == "":
				info.GitCommit = shortCommit(s.Value)
			case s.Key == "vcs.time" && info.BuildDate == "":
				info.BuildDate = s.Value
			}
		}
		for _, dep := range bi.Deps {
			if dep.Replace != nil {
				dep = dep.Replace
			}
			deps[dep.Path] = dep.Version
		}
	}

	for _, m := range driverModules {
		v, ok := deps[m.path]
		if !ok {
			v = "unknown"
		}
		info.Drivers = append(info.Drivers, Driver{Name: m.name, Version: v})
	}

	info.Version = orUnknown(info.Version, "devel")
	info.BuildDate = orUnknown(info.BuildDate, "unknown")
	info.GitCommit = orUnknown(info.GitCommit, "unknown")
	return info
}

// String is the one-line form printed by "version --short".
func (i Info) String() string {
	return fmt.Sprintf("anybase %s (%s, %s)", i.Version, i.Platform, i.GoVersion)
}

// FullString lists every field, one per line.
func (i Info) FullString() string {
	var sb strings.Builder
	row := func(k, v string) { fmt.Fprintf(&sb, "%-8s %s\n", k+":", v) }

	row("Version", i.Version)
	row("Commit", i.GitCommit)
	row("Built", i.BuildDate)
	row("Go", i.GoVersion)
	row("Platform", i.Platform)
	row("SQLite", i.SQLite)

	drivers := make([]string, len(i.Drivers))
	for n, d := range i.Drivers {
		drivers[n] = d.Name + " " + d.Version
	}
	row("Drivers", strings.Join(drivers, ", "))
	return strings.TrimSuffix(sb.String(), "\n")
}

func shortCommit(rev string) string {
	if len(rev) > 12 {
		return rev[:12]
	}
	return rev
}

func orUnknown(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
