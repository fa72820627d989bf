package version

import (
	_ "embed"
	"runtime"
	"strings"
)

//go:embed VERSION
var versionFile string

// Build-time variables set via ldflags
var (
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// planFormat is bumped whenever the JSON plan layout changes incompatibly.
const planFormat = "1.0.0"

// App returns the current version of monolayer
func App() string {
	return strings.TrimSpace(versionFile)
}

// PlanFormat returns the version of the JSON plan layout
func PlanFormat() string {
	return planFormat
}

// Platform returns the OS/architecture combination
func Platform() string {
	return runtime.GOOS + "/" + runtime.GOARCH
}
