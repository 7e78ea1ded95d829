// Package version exposes build metadata for the rulelens binary.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Set via ldflags at release build time.
var Version string

// GetVersion returns the release version, falling back to the VCS revision
// for untagged builds.
func GetVersion() string {
	if Version != "" {
		return Version
	}

	return revision()
}

// GetVerboseVersion includes the Go runtime and platform.
func GetVerboseVersion() string {
	return fmt.Sprintf("%s (%s %s/%s)", GetVersion(), runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

func revision() string {
	buildInfo, ok := debug.ReadBuildInfo()
	if !ok {
		return "unknown"
	}

	rev := "unknown"
	dirty := false

	for _, s := range buildInfo.Settings {
		switch s.Key {
		case "vcs.revision":
			rev = s.Value
			if len(rev) > 7 {
				rev = rev[:7]
			}

		case "vcs.modified":
			dirty = s.Value == "true"
		}
	}

	if dirty {
		rev += "-dirty"
	}

	return rev
}
