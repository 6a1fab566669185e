// Package buildinfo reports the version of the cli-worker binary.
package buildinfo

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
	"time"
)

const devVersion = "0.1.0"

// Set with -ldflags "-X github.com/agusx1211/cli-worker/internal/buildinfo.Version=...".
var (
	Version    = devVersion
	CommitHash = ""
	BuildDate  = ""
)

// Info is build metadata ready for display.
type Info struct {
	Version    string `json:"version" yaml:"version"`
	CommitHash string `json:"commit" yaml:"commit"`
	BuildDate  string `json:"build_date" yaml:"build_date"`
	GoVersion  string `json:"go_version" yaml:"go_version"`
}

func (i Info) String() string {
	return fmt.Sprintf("cli-worker %s (commit %s, built %s, %s)", i.Version, i.CommitHash, i.BuildDate, i.GoVersion)
}

// vcsSettings is the subset of debug.BuildInfo settings used here.
type vcsSettings struct {
	revision string
	time     string
	dirty    bool
}

func readVCS(bi *debug.BuildInfo) vcsSettings {
	var v vcsSettings
	for _, s := range bi.Settings {
		val := strings.TrimSpace(s.Value)
		switch s.Key {
		case "vcs.revision":
			v.revision = val
		case "vcs.time":
			v.time = val
		case "vcs.modified":
			v.dirty = strings.EqualFold(val, "true")
		}
	}
	return v
}

// Current returns linker-provided metadata, filling gaps from the module
// build info when the binary was built with VCS stamping.
func Current() Info {
	info := Info{
		Version:    strings.TrimSpace(Version),
		CommitHash: strings.TrimSpace(CommitHash),
		BuildDate:  strings.TrimSpace(BuildDate),
		GoVersion:  runtime.Version(),
	}

	if bi, ok := debug.ReadBuildInfo(); ok {
		mainVersion := bi.Main.Version
		if (info.Version == "" || info.Version == devVersion) && mainVersion != "" && mainVersion != "(devel)" {
			info.Version = mainVersion
		}
		vcs := readVCS(bi)
		if info.CommitHash == "" && vcs.revision != "" {
			info.CommitHash = vcs.revision
			if vcs.dirty {
				info.CommitHash += "-dirty"
			}
		}
		if info.BuildDate == "" {
			info.BuildDate = vcs.time
		}
	}

	if t, err := time.Parse(time.RFC3339, info.BuildDate); err == nil {
		info.BuildDate = t.UTC().Format("2006-01-02 15:04:05 UTC")
	}
	for _, f := range []*string{&info.Version, &info.CommitHash, &info.BuildDate} {
		if *f == "" {
			*f = "unknown"
		}
	}
	return info
}
