// Package version holds build metadata for cachebuster.
package version

import "fmt"

var (
	// Version is injected at build time via -ldflags.
	Version = "dev"
	// BuildTime is injected at build time via -ldflags.
	BuildTime = "unknown"
	// GitCommit is injected at build time via -ldflags.
	GitCommit = "unknown"
)

// AppName is the binary and service name.
const AppName = "cachebuster"

// GetVersion returns the short semantic version.
func GetVersion() string {
	return Version
}

// GetFullVersion returns a user-facing build string.
func GetFullVersion() string {
	if Version == "dev" {
		return fmt.Sprintf("%s/%s (commit: %s, built: %s)", AppName, Version, GitCommit, BuildTime)
	}
	return fmt.Sprintf("%s/%s", AppName, Version)
}
