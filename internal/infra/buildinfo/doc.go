// Package buildinfo reports the stashkv version for `stashkv version`.
//
// Version, Commit and BuildTime are injected via ldflags:
//
//	go build -ldflags "-X .../buildinfo.Version=1.0.0 -X .../buildinfo.Commit=abc123"
//
// Unset values fall back to the module version and VCS stamp embedded
// by the Go toolchain.
package buildinfo
