package version

import (
	"encoding/json"
	"runtime"
	"runtime/debug"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withBuildInfo(t *testing.T, v, commit, date string) {
	t.Helper()
	origVersion, origCommit, origDate := Version, Commit, Date
	Version, Commit, Date = v, commit, date
	t.Cleanup(func() { Version, Commit, Date = origVersion, origCommit, origDate })
}

func withModuleInfo(t *testing.T, bi *debug.BuildInfo) {
	t.Helper()
	orig := readBuildInfo
	readBuildInfo = func() (*debug.BuildInfo, bool) { return bi, bi != nil }
	t.Cleanup(func() { readBuildInfo = orig })
}

func TestGetInfoFallsBackToModuleInfo(t *testing.T) {
	withBuildInfo(t, "dev", "unknown", "unknown")
	withModuleInfo(t, &debug.BuildInfo{
		Main: debug.Module{Version: "v0.4.1"},
		Settings: []debug.BuildSetting{
			{Key: "vcs.revision", Value: "0123456789abcdef"},
			{Key: "vcs.time", Value: "2026-02-01T08:00:00Z"},
		},
	})

	info := GetInfo()
	assert.Equal(t, "v0.4.1", info.Version)
	assert.Equal(t, "0123456789abcdef", info.Commit)
	assert.Equal(t, "2026-02-01T08:00:00Z", info.Date)
}

func TestGetInfoPrefersLinkerValues(t *testing.T) {
	withBuildInfo(t, "1.2.0", "cafe", "yesterday")
	withModuleInfo(t, &debug.BuildInfo{
		Main:     debug.Module{Version: "v0.4.1"},
		Settings: []debug.BuildSetting{{Key: "vcs.revision", Value: "0123"}},
	})

	info := GetInfo()
	assert.Equal(t, "1.2.0", info.Version)
	assert.Equal(t, "cafe", info.Commit)
	assert.Equal(t, "yesterday", info.Date)
}

func TestGetInfoIgnoresDevelBuilds(t *testing.T) {
	withBuildInfo(t, "dev", "unknown", "unknown")
	withModuleInfo(t, &debug.BuildInfo{Main: debug.Module{Version: "(devel)"}})

	assert.Equal(t, "dev", GetInfo().Version)
}

func TestGetInfo(t *testing.T) {
	withModuleInfo(t, nil)
	withBuildInfo(t, "1.0.0", "abc123def456", "2026-01-01T12:00:00Z")

	info := GetInfo()
	assert.Equal(t, "1.0.0", info.Version)
	assert.Equal(t, "abc123def456", info.Commit)
	assert.Equal(t, "2026-01-01T12:00:00Z", info.Date)
	assert.Equal(t, runtime.Version(), info.GoVersion)
	assert.Equal(t, runtime.GOOS+"/"+runtime.GOARCH, info.Platform)
	assert.Equal(t, "1.0.0", info.Short())
}

func TestInfoString(t *testing.T) {
	tests := []struct {
		name   string
		commit string
		want   string
	}{
		{"long commit is shortened", "abc123def456", "(abc123de)"},
		{"short commit kept", "abc", "(abc)"},
		{"unknown", "unknown", "(unknown)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := Info{Version: "2.1.0", Commit: tt.commit, Date: "today", GoVersion: "go1.24", Platform: "linux/amd64"}
			s := info.String()
			assert.Contains(t, s, "Canvass 2.1.0")
			assert.Contains(t, s, tt.want)
			assert.Contains(t, s, "built today with go1.24 for linux/amd64")
		})
	}
}

func TestInfoJSON(t *testing.T) {
	withBuildInfo(t, "0.3.0", "deadbeef", "now")
	withModuleInfo(t, nil)

	b, err := json.Marshal(GetInfo())
	require.NoError(t, err)

	var m map[string]string
	require.NoError(t, json.Unmarshal(b, &m))
	assert.Equal(t, "0.3.0", m["version"])
	assert.Contains(t, m, "go_version")
}
