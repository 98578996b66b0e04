// Package version holds build metadata for the farewatch binary, set with
//
//	go build -ldflags "-X github.com/jmylchreest/farewatch/internal/version.Version=0.3.0 ..."
package version

import (
	"fmt"
	"runtime"
	"strings"
)

// Set at build time.
var (
	Version   = "dev"
	Commit    = "unknown"
	Dirty     = "false"
	BuildDate = "unknown"
)

// Info is the build metadata in structured form.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	Dirty     bool   `json:"dirty"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// Get returns the build metadata.
func Get() Info {
	return Info{
		Version:   Version,
		Commit:    Commit,
		Dirty:     Dirty == "true",
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

// String returns the version, suffixed with -dirty for modified trees.
func String() string {
	if Dirty == "true" {
		return Version + "-dirty"
	}
	return Version
}

// Full returns the multi-line form printed by the version command.
func Full() string {
	info := Get()
	var sb strings.Builder
	fmt.Fprintf(&sb, "farewatch %s\n", String())
	fmt.Fprintf(&sb, "  commit:  %s\n", info.Commit)
	fmt.Fprintf(&sb, "  built:   %s\n", info.BuildDate)
	fmt.Fprintf(&sb, "  go:      %s (%s)", info.GoVersion, info.Platform)
	return sb.String()
}
