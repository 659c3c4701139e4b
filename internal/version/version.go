// Package version holds build metadata injected via -ldflags, e.g.
//
//	go build -ldflags "-X github.com/HerbHall/streamwatch/internal/version.Version=v0.2.0"
package version

import (
	"fmt"
	"runtime"
)

// Set at build time.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Short returns the bare version string.
func Short() string { return Version }

// Info returns a one-line human readable build description.
func Info() string {
	return fmt.Sprintf("streamwatch %s (commit %s, built %s, %s %s/%s)",
		Version, GitCommit, BuildDate, runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

// Map returns the build metadata as key/value pairs for JSON responses.
func Map() map[string]string {
	return map[string]string{
		"version":    Version,
		"git_commit": GitCommit,
		"build_date": BuildDate,
		"go_version": runtime.Version(),
	}
}
