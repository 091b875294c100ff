// Package version contains build version information.
package version

import "runtime"

// Set at build time via -ldflags "-X".
var (
	Version   = "0.0.0-dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Info describes the running build.
type Info struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
}

// Get returns the build information.
func Get() Info {
	return Info{
		Version:   Version,
		GitCommit: GitCommit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
	}
}

// String returns a one-line summary for CLI output.
func (i Info) String() string {
	return i.Version + " (commit " + i.GitCommit + ", built " + i.BuildDate + ", " + i.GoVersion + ")"
}
