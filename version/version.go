// Package version reports build metadata stamped in through ldflags:
//
//	go build -ldflags "-X github.com/teranos/discograph/version.Version=v0.4.0 \
//	    -X github.com/teranos/discograph/version.CommitHash=$(git rev-parse HEAD)"
//
// Without ldflags, the commit and time recorded by the Go toolchain's VCS
// stamping are used when present.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Set at build time via ldflags.
var (
	CommitHash = "dev"
	BuildTime  = "unknown"
	Version    = "dev"
)

// Info describes the running binary. It is served by `discograph version`
// and sent in the Server header.
type Info struct {
	CommitHash string `json:"commit_hash"`
	BuildTime  string `json:"build_time"`
	Version    string `json:"version"`
	GoVersion  string `json:"go_version"`
	Platform   string `json:"platform"`
}

// Get returns the build information of the running binary.
func Get() Info {
	info := Info{
		CommitHash: CommitHash,
		BuildTime:  BuildTime,
		Version:    Version,
		GoVersion:  runtime.Version(),
		Platform:   runtime.GOOS + "/" + runtime.GOARCH,
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		info = info.withVCS(bi.Settings)
	}
	return info
}

// withVCS fills fields still at their placeholder from toolchain VCS stamps.
func (i Info) withVCS(settings []debug.BuildSetting) Info {
	for _, s := range settings {
		switch s.Key {
		case "vcs.revision":
			if i.CommitHash == "dev" && s.Value != "" {
				i.CommitHash = s.Value
			}
		case "vcs.time":
			if i.BuildTime == "unknown" && s.Value != "" {
				i.BuildTime = s.Value
			}
		}
	}
	return i
}

func (i Info) String() string {
	return fmt.Sprintf("discograph %s (commit %s, built %s)", i.Version, i.Short(), i.BuildTime)
}

// Short is the commit hash cut to seven characters.
func (i Info) Short() string {
	if len(i.CommitHash) >= 7 {
		return i.CommitHash[:7]
	}
	return i.CommitHash
}

// ServerHeader is the value sent in the HTTP Server header and the MCP
// server handshake.
func (i Info) ServerHeader() string {
	return "discograph/" + i.Version
}
