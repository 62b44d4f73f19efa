// Package version carries build metadata stamped in at link time via
// -ldflags "-X github.com/banshee-data/cloud2mesh/internal/version.GitSHA=...".
package version

import "fmt"

var (
	// Version is the current application version
	Version = "0.3.0"
	// GitSHA is the git commit SHA
	GitSHA = "unknown"
	// BuildTime is the build timestamp
	BuildTime = "unknown"
)

// String returns the full version line shown by the CLI.
func String() string {
	return fmt.Sprintf("%s (%s, built %s)", Version, GitSHA, BuildTime)
}
