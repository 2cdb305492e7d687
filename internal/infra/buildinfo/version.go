package buildinfo

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Build-time variables (set via ldflags).
var (
	// Version is the semantic version.
	Version = "dev"

	// Commit is the git commit hash.
	Commit = "unknown"

	// BuildTime is the build timestamp.
	BuildTime = "unknown"
)

// Info contains build information.
type Info struct {
	Version   string `json:"version" yaml:"version"`
	Commit    string `json:"commit" yaml:"commit"`
	BuildTime string `json:"build_time" yaml:"build_time"`
	GoVersion string `json:"go_version" yaml:"go_version"`
	Platform  string `json:"platform" yaml:"platform"`
}

// Get returns the build information. Commit and BuildTime fall back to
// the VCS stamp the Go toolchain embeds when ldflags did not set them.
func Get() Info {
	info := Info{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}

	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return info
	}
	if info.Version == "dev" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		info.Version = bi.Main.Version
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			if info.Commit == "unknown" {
				info.Commit = s.Value
			}
		case "vcs.time":
			if info.BuildTime == "unknown" {
				info.BuildTime = s.Value
			}
		}
	}
	return info
}

// String returns a formatted version string.
func String() string {
	return Get().String()
}

// String returns a formatted version string.
func (i Info) String() string {
	return fmt.Sprintf("%s (%s) built at %s with %s for %s", i.Version, i.Commit, i.BuildTime, i.GoVersion, i.Platform)
}
