// SPDX-License-Identifier: MIT
//
// Package build exposes the name, version, commit and build time stamped into
// the binary with -ldflags, for example:
//
//	go build -ldflags "-X deskviz/internal/build.buildVersion=0.2.0 \
//	    -X deskviz/internal/build.buildCommit=$(git rev-parse --short HEAD)"
//
// Development builds fall back to the module version and VCS revision the Go
// toolchain records.
package build

import (
	"errors"
	"runtime/debug"
)

// Info describes the running binary.
type Info struct {
	Name        string
	Description string
	Version     string
	Commit      string
	Time        string
}

const unknown = "unknown"

var (
	buildName    string
	buildTime    string
	buildCommit  string
	buildVersion string

	info = Info{
		Name:        "deskviz",
		Description: "Loopback audio levels for desktop visualisers",
		Version:     unknown,
		Commit:      unknown,
		Time:        unknown,
	}

	readBuildInfo = debug.ReadBuildInfo
)

// Initialize copies the ldflags values into the build info. Missing values
// are filled from the toolchain's build info where possible; the returned
// error lists the flags that were not stamped and is safe to log and ignore.
func Initialize() error {
	var errs []error
	set := func(dst *string, v, flag string) {
		if v == "" {
			errs = append(errs, errors.New(flag+" is required"))
			return
		}
		*dst = v
	}
	set(&info.Name, buildName, "BuildName")
	set(&info.Time, buildTime, "BuildTime")
	set(&info.Commit, buildCommit, "BuildCommit")
	set(&info.Version, buildVersion, "BuildVersion")

	if len(errs) > 0 {
		fillFromToolchain()
	}
	return errors.Join(errs...)
}

func fillFromToolchain() {
	bi, ok := readBuildInfo()
	if !ok {
		return
	}
	if info.Version == unknown && bi.Main.Version != "" {
		info.Version = bi.Main.Version
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			if info.Commit == unknown {
				info.Commit = s.Value
			}
		case "vcs.time":
			if info.Time == unknown {
				info.Time = s.Value
			}
		}
	}
}

// Get returns the current build information.
func Get() Info {
	return info
}
