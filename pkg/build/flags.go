// SPDX-License-Identifier: MIT
//
// Package build carries the metadata embedded into the tonepipe binary at
// link time: name, build timestamp, commit and semantic version. A plain
// `go build` leaves every flag empty and the development defaults apply; a
// release build must set all of them:
//
//	go build -ldflags "-X tonepipe/pkg/build.buildName=tonepipe \
//	    -X tonepipe/pkg/build.buildTime=$(date -u +%FT%TZ) \
//	    -X tonepipe/pkg/build.buildCommit=$(git rev-parse --short HEAD) \
//	    -X tonepipe/pkg/build.buildVersion=0.3.0"
package build

import "fmt"

const description = "Triple-buffered audio frame pipeline: DTMF detection and LUT waveform synthesis"

type ldFlags struct {
	Name        string
	Description string
	Time        string
	Commit      string
	Version     string
}

// Package-level variables for build information, populated by -ldflags.
var (
	buildName    string
	buildTime    string
	buildCommit  string
	buildVersion string
	buildFlags   = defaultFlags()
)

func defaultFlags() *ldFlags {
	return &ldFlags{
		Name:        "tonepipe",
		Description: description,
		Time:        "unknown",
		Commit:      "unknown",
		Version:     "dev",
	}
}

// Initialize copies the ldflags variables into the build information. When
// none of them are set the development defaults are kept. A partially
// stamped binary is rejected so that a broken release pipeline is noticed.
func Initialize() error {
	if buildName == "" && buildTime == "" && buildCommit == "" && buildVersion == "" {
		return nil
	}

	if buildName == "" {
		return fmt.Errorf("BuildName is required")
	}
	if buildTime == "" {
		return fmt.Errorf("BuildTime is required")
	}
	if buildCommit == "" {
		return fmt.Errorf("BuildCommit is required")
	}
	if buildVersion == "" {
		return fmt.Errorf("BuildVersion is required")
	}

	buildFlags.Name = buildName
	buildFlags.Time = buildTime
	buildFlags.Commit = buildCommit
	buildFlags.Version = buildVersion

	return nil
}

// GetBuildFlags returns the current build information.
func GetBuildFlags() *ldFlags {
	return buildFlags
}

// String formats the build information for `--version` output.
func (f *ldFlags) String() string {
	return fmt.Sprintf("%s %s (commit %s, built %s)", f.Name, f.Version, f.Commit, f.Time)
}
