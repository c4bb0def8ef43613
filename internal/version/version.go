package version

import (
	"fmt"
	"runtime"
)

// Build information. Populated at build-time via ldflags.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
	GoVersion = runtime.Version()
)

// Info is the JSON shape served at /api/version.
type Info struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
}

func Get() Info {
	return Info{
		Version:   Version,
		GitCommit: GitCommit,
		BuildDate: BuildDate,
		GoVersion: GoVersion,
	}
}

// String returns a human-readable version string for the CLI.
func String() string {
	commit := GitCommit[:min(7, len(GitCommit))]
	if Version == "dev" {
		return fmt.Sprintf("binder %s (commit %s, built %s with %s)", Version, commit, BuildDate, GoVersion)
	}
	return fmt.Sprintf("binder v%s (commit %s, built %s with %s)", Version, commit, BuildDate, GoVersion)
}
