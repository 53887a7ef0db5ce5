// Package buildinfo reports which build is running. Release images set
// Version and Commit with -ldflags "-X"; local builds fall back to the VCS
// stamp the toolchain embeds.
package buildinfo

import (
	"runtime/debug"
	"sync"
)

var (
	Version string
	Commit  string
)

var vcsRevision = sync.OnceValue(func() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, s := range info.Settings {
		if s.Key == "vcs.revision" {
			return s.Value
		}
	}
	return ""
})

// VersionOrDev returns Version, or "dev" for local builds.
func VersionOrDev() string {
	if Version == "" {
		return "dev"
	}
	return Version
}

// Revision returns Commit, or the embedded VCS revision when none was injected.
func Revision() string {
	if Commit != "" {
		return Commit
	}
	return vcsRevision()
}

// Release names the build in error reports: "weamind@v1.4.0", or
// "weamind@dev+3f2a9c1" for an untagged build.
func Release() string {
	release := "weamind@" + VersionOrDev()
	if Version != "" {
		return release
	}
	if rev := Revision(); rev != "" {
		release += "+" + rev[:min(7, len(rev))]
	}
	return release
}
