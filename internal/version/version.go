// Package version exposes build information set with -ldflags:
//
//	go build -ldflags "-X github.com/suda/leno/internal/version.Version=v1.2.0 \
//	  -X github.com/suda/leno/internal/version.Commit=$(git rev-parse --short HEAD) \
//	  -X github.com/suda/leno/internal/version.BuildTime=$(date -u +%FT%TZ)"
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// Info is the build information served by /version?format=json.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
	GoVersion string `json:"go_version"`
}

// Get returns the current build information. Binaries built with
// `go install module@version` carry no ldflags, so the module version
// recorded by the toolchain is used instead of "dev".
func Get() Info {
	v := Version
	if v == "dev" {
		if bi, ok := debug.ReadBuildInfo(); ok && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
			v = bi.Main.Version
		}
	}
	return Info{
		Version:   v,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: runtime.Version(),
	}
}

func (i Info) String() string {
	return fmt.Sprintf("leno %s (commit %s, built %s, %s)", i.Version, i.Commit, i.BuildTime, i.GoVersion)
}
