// Package version provides build version information for the application.
// This is a separate package to avoid import cycles between cli and service packages.
package version

import (
	"strconv"
	"strings"
)

// Version is the build version string, set by ldflags during build.
// Format: vX.Y.Z or vX.Y.Z-dev for development builds.
var Version = "v3.36.0"

// BuildTime is the build timestamp, set by ldflags during build.
var BuildTime = "unknown"

// Major returns the major component of v ("v3.36.0" -> 3). Unparsable input
// yields 0.
func Major(v string) int {
	v = strings.TrimPrefix(strings.TrimSpace(v), "v")
	if i := strings.IndexAny(v, ".-+"); i >= 0 {
		v = v[:i]
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}
