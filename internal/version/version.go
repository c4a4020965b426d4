// Package version holds build metadata injected with -ldflags:
//
//	go build -ldflags "-X github.com/shotos/fivednine/internal/version.Version=1.2.0 \
//	                   -X github.com/shotos/fivednine/internal/version.Commit=$(git rev-parse --short HEAD)"
package version

import "fmt"

var (
	// Version is the release version, "dev" for local builds.
	Version = "dev"

	// Commit is the source revision.
	Commit = "unknown"

	// BuildTime is an RFC3339 timestamp.
	BuildTime = "unknown"
)

// Info formats the build metadata for the named binary.
func Info(binary string) string {
	return fmt.Sprintf("%s %s (commit: %s, built: %s)", binary, Version, Commit, BuildTime)
}
