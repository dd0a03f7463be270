// Copyright (c) 2026 Keymaster Team
// dbdispatch - unified database dispatch with blocking-call offload
// This source code is licensed under the MIT license found in the LICENSE file.

package cli

import (
	"runtime/debug"

	"github.com/toeirei/dbdispatch/buildvars"
)

const modulePath = "github.com/toeirei/dbdispatch"

// resolveBuildVersion prefers link-time values and falls back to the module
// and VCS information embedded by the Go toolchain.
func resolveBuildVersion(info *debug.BuildInfo) (versionOut, commitOut, dateOut string) {
	versionOut = buildvars.VersionOrDefault("dev")
	commitOut = buildvars.Commit
	dateOut = buildvars.Date

	if info == nil {
		var ok bool
		if info, ok = debug.ReadBuildInfo(); !ok {
			return versionOut, commitOut, dateOut
		}
	}
	if versionOut == "dev" {
		if info.Main.Version != "" && info.Main.Version != "(devel)" {
			versionOut = info.Main.Version
		}
		// Main is empty when built as a dependency of another module.
		if versionOut == "dev" {
			for _, dep := range info.Deps {
				if dep.Path == modulePath && dep.Version != "" {
					versionOut = dep.Version
					break
				}
			}
		}
	}
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			if commitOut == "" && s.Value != "" {
				commitOut = s.Value
			}
		case "vcs.time":
			if dateOut == "" && s.Value != "" {
				dateOut = s.Value
			}
		}
	}
	return versionOut, commitOut, dateOut
}

func versionString() string {
	v, c, d := resolveBuildVersion(nil)
	if c != "" {
		if len(c) > 12 {
			c = c[:12]
		}
		v += " (" + c + ")"
	}
	if d != "" {
		v += " built: " + d
	}
	return v
}
