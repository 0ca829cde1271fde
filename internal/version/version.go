// Package version holds the release version of the binary.
package version

// Version is the release version, overridable at build time with
// -ldflags "-X .../internal/version.Version=...".
var Version = "0.1.0"
