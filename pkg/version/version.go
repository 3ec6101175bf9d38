// Package version exposes build metadata set through -ldflags.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Set at build time with
//
//	-ldflags "-X github.com/NERVsystems/osmsurvey/pkg/version.BuildVersion=v1.2.3"
var (
	BuildVersion = "dev"
	BuildCommit  = ""
	BuildDate    = ""
)

func init() {
	if BuildCommit != "" {
		return
	}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			BuildCommit = s.Value
		case "vcs.time":
			if BuildDate == "" {
				BuildDate = s.Value
			}
		}
	}
}

// Info returns the build metadata as a flat map.
func Info() map[string]string {
	return map[string]string{
		"version":    BuildVersion,
		"commit":     BuildCommit,
		"build_date": BuildDate,
		"go_version": runtime.Version(),
	}
}

// String returns a one-line version banner.
func String() string {
	commit := BuildCommit
	if len(commit) > 12 {
		commit = commit[:12]
	}
	if commit == "" {
		commit = "unknown"
	}
	return fmt.Sprintf("osmsurvey %s (commit %s, %s)", BuildVersion, commit, runtime.Version())
}
