// SPDX-License-Identifier: MIT
package build

import (
	"runtime/debug"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stamp(t *testing.T, name, time, commit, version string) {
	t.Helper()
	origInfo, origRead := info, readBuildInfo
	origName, origTime, origCommit, origVersion := buildName, buildTime, buildCommit, buildVersion
	t.Cleanup(func() {
		info, readBuildInfo = origInfo, origRead
		buildName, buildTime, buildCommit, buildVersion = origName, origTime, origCommit, origVersion
	})

	info = Info{Name: "deskviz", Version: unknown, Commit: unknown, Time: unknown}
	buildName, buildTime, buildCommit, buildVersion = name, time, commit, version
	readBuildInfo = func() (*debug.BuildInfo, bool) { return nil, false }
}

func TestInitialize(t *testing.T) {
	tests := []struct {
		name       string
		buildName  string
		buildTime  string
		buildCommt string
		buildVer   string
		wantErrMsg string
	}{
		{"Missing BuildName", "", "2025-04-13", "abcdef123", "v1.0.0", "BuildName is required"},
		{"Missing BuildTime", "testapp", "", "abcdef123", "v1.0.0", "BuildTime is required"},
		{"Missing BuildCommit", "testapp", "2025-04-13", "", "v1.0.0", "BuildCommit is required"},
		{"Missing BuildVersion", "testapp", "2025-04-13", "abcdef123", "", "BuildVersion is required"},
		{"Success Case", "testapp", "2025-04-13", "abcdef123", "v1.0.0", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stamp(t, tt.buildName, tt.buildTime, tt.buildCommt, tt.buildVer)

			err := Initialize()
			if tt.wantErrMsg != "" {
				require.Error(t, err)
				assert.Equal(t, tt.wantErrMsg, err.Error())
				return
			}

			require.NoError(t, err)
			got := Get()
			assert.Equal(t, tt.buildName, got.Name)
			assert.Equal(t, tt.buildTime, got.Time)
			assert.Equal(t, tt.buildCommt, got.Commit)
			assert.Equal(t, tt.buildVer, got.Version)
		})
	}
}

func TestInitializeFallsBackToToolchain(t *testing.T) {
	stamp(t, "", "", "", "")
	readBuildInfo = func() (*debug.BuildInfo, bool) {
		return &debug.BuildInfo{
			Main: debug.Module{Version: "(devel)"},
			Settings: []debug.BuildSetting{
				{Key: "vcs.revision", Value: "0123abc"},
				{Key: "vcs.time", Value: "2025-04-13T10:00:00Z"},
			},
		}, true
	}

	assert.Error(t, Initialize())

	got := Get()
	assert.Equal(t, "deskviz", got.Name)
	assert.Equal(t, "(devel)", got.Version)
	assert.Equal(t, "0123abc", got.Commit)
	assert.Equal(t, "2025-04-13T10:00:00Z", got.Time)
}
