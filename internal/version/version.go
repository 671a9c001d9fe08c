// Package version holds build metadata injected at link time.
package version

import "fmt"

// Version is set with -ldflags, e.g.
// go build -ldflags "-X git.home.luguber.info/inful/buildcore/internal/version.Version=v1.4.0".
var Version = "unknown"

// Build metadata.
var (
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// String renders the version line printed by --version.
func String() string {
	return fmt.Sprintf("buildcore %s (commit %s, built %s)", Version, GitCommit, BuildTime)
}
