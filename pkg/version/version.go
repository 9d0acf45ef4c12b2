// Package version carries the build version reported by the CLI and the
// API's health surface.
package version

// Version is the current release, set at build time via
// -ldflags "-X xaddonmgr/pkg/version.Version=vX.Y.Z".
var Version = "v0.4.0"
