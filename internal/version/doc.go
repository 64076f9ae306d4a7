// Package version exposes build metadata for the tool itself.
//
// Variables Version, Commit, and BuildTime are injected at build time via
// Go ldflags and default to sensible values for local builds. This is the
// version of the upgrade tool, not of any L4T release it manages.
package version
