// Package buildinfo stamps and validates the kernel build-version string
// embedded at link time, the same role biscuit/src/defs plays for constants
// shared across packages, but scoped to one concern: comparing build
// versions so a debug tool can tell a newer HPT/frame-table layout from an
// older one.
package buildinfo

import (
	"fmt"

	"golang.org/x/mod/semver"
)

// Version is the kernel build-version stamp, set via -ldflags at link time.
// Defaults to "v0.0.0-dev" for unstamped local builds.
var Version = "v0.0.0-dev"

// Valid reports whether Version is a well-formed semantic version.
func Valid() bool {
	return semver.IsValid(canonicalize(Version))
}

// Compare reports whether Version is older than, equal to, or newer than
// other, using semver precedence rules.
func Compare(other string) (int, error) {
	v, o := canonicalize(Version), canonicalize(other)
	if !semver.IsValid(v) {
		return 0, fmt.Errorf("buildinfo: invalid current version %q", Version)
	}
	if !semver.IsValid(o) {
		return 0, fmt.Errorf("buildinfo: invalid comparison version %q", other)
	}
	return semver.Compare(v, o), nil
}

func canonicalize(v string) string {
	if len(v) > 0 && v[0] != 'v' {
		return "v" + v
	}
	return v
}
