package version

import "fmt"

var (
	// Version is the release version, replaced through ldflags.
	Version = "1.0.0"
	// Commit is the short git revision of the build, or "none" locally.
	Commit = "none"
	// BuildTime is the UTC timestamp of the build.
	BuildTime = "unknown"
)

// Short returns the bare version string.
func Short() string {
	return Version
}

// Full renders the version together with commit and build time.
func Full() string {
	return fmt.Sprintf("version: %s, commit: %s, built at: %s", Version, Commit, BuildTime)
}
