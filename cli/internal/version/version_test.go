package version

import (
	"runtime/debug"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromBuildInfo(t *testing.T) {
	bi := &debug.BuildInfo{
		Main: debug.Module{Path: "github.com/satishbabariya/anybase", Version: "v1.2.3"},
		Deps: []*debug.Module{
			{Path: "github.com/lib/pq", Version: "v1.10.9"},
			{Path: "github.com/go-sql-driver/mysql", Version: "v1.9.0", Replace: &debug.Module{Path: "github.com/go-sql-driver/mysql", Version: "v1.9.3"}},
		},
		Settings: []debug.BuildSetting{
			{Key: "vcs.revision", Value: "0123456789abcdef0123"},
			{Key: "vcs.time", Value: "2026-10-01T12:00:00Z"},
		},
	}

	info := fromBuildInfo(bi)
	assert.Equal(t, "v1.2.3", info.Version)
	assert.Equal(t, "0123456789ab", info.GitCommit)
	assert.Equal(t, "2026-10-01T12:00:00Z", info.BuildDate)
	assert.NotEmpty(t, info.SQLite)

	require.Len(t, info.Drivers, len(driverModules))
	assert.Equal(t, Driver{Name: "mysql", Version: "v1.9.3"}, info.Drivers[0])
	assert.Equal(t, Driver{Name: "pq", Version: "v1.10.9"}, info.Drivers[1])
	assert.Equal(t, "unknown", info.Drivers[2].Version)

	full := info.FullString()
	assert.Contains(t, full, "Commit:  0123456789ab")
	assert.Contains(t, full, "mysql v1.9.3, pq v1.10.9")
	assert.Contains(t, info.String(), "anybase v1.2.3")
}

func TestFromBuildInfo_Defaults(t *testing.T) {
	info := fromBuildInfo(nil)
	assert.Equal(t, "devel", info.Version)
	assert.Equal(t, "unknown", info.GitCommit)
	assert.Equal(t, "unknown", info.BuildDate)

	info = fromBuildInfo(&debug.BuildInfo{Main: debug.Module{Version: "(devel)"}})
	assert.Equal(t, "devel", info.Version)
}

func TestFromBuildInfo_LinkerFlagsWin(t *testing.T) {
	old := GitCommit
	GitCommit = "release"
	t.Cleanup(func() { GitCommit = old })

	info := fromBuildInfo(&debug.BuildInfo{Settings: []debug.BuildSetting{{Key: "vcs.revision", Value: "abc"}}})
	assert.Equal(t, "release", info.GitCommit)
}
