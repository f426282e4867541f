// Package version carries the build metadata stamped into the
// wheelhouse binaries.
//
// Version, Commit, and BuildTime are overridden through ldflags on
// release builds; the defaults identify a local development build.
// Short and Full render them for CLI output and logs.
package version
