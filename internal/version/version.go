// Package version holds build metadata, overridden at link time with -ldflags "-X".
package version

import (
	"fmt"
	"runtime"
)

var (
	Version   = "dev"             // ex: v0.1.0
	Commit    = "none"            // ex: abcd123
	BuildDate = "unknown"         // ex: 2026-03-01T18:42:00Z
	GoVersion = runtime.Version() // go version
)

// String renders the build line printed at startup and by `linkdeckctl version`.
func String(binary string) string {
	return fmt.Sprintf("%s %s (commit=%s, built=%s, go=%s)", binary, Version, Commit, BuildDate, GoVersion)
}
