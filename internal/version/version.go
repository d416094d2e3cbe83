// Package version holds the build-time version string, overridable via -ldflags.
package version

// Version is stamped by the release build; defaults to "dev" for local builds.
var Version = "dev"
