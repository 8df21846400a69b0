// In file: internal/version/version.go

// Package version exposes the build metadata stamped into the binaries.
//
// Release builds set the variables with -ldflags, for example:
//
//	go build -ldflags "-X github.com/dileep-u-k/llm-agent/internal/version.version=v1.2.0 \
//	  -X github.com/dileep-u-k/llm-agent/internal/version.gitCommit=$(git rev-parse --short HEAD) \
//	  -X github.com/dileep-u-k/llm-agent/internal/version.buildDate=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
package version

import (
	"fmt"
	"runtime"
)

var (
	version   = "dev"
	buildDate = "unknown"
	gitCommit = "unknown"
)

// BuildInfo describes the running binary.
type BuildInfo struct {
	Version   string `json:"version"`
	BuildDate string `json:"build_date"`
	GitCommit string `json:"git_commit"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

func Get() BuildInfo {
	return BuildInfo{
		Version:   version,
		BuildDate: buildDate,
		GitCommit: gitCommit,
		GoVersion: runtime.Version(),
		Platform:  fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
	}
}

func (b BuildInfo) String() string {
	return fmt.Sprintf("%s (commit %s, built %s, %s %s)", b.Version, b.GitCommit, b.BuildDate, b.GoVersion, b.Platform)
}
