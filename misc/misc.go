// Package misc keeps program identity: name, version and source revision.
package misc

import (
	"runtime/debug"
	"strings"
	"sync"
)

const appName = "rdmark"

// Set with -ldflags "-X rdmark/misc.version=..." by release builds.
var (
	version = ""
	gitHash = ""
)

var loadBuildInfo = sync.OnceFunc(func() {
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	if len(version) == 0 && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		version = strings.TrimPrefix(bi.Main.Version, "v")
	}
	for _, s := range bi.Settings {
		if s.Key == "vcs.revision" && len(gitHash) == 0 {
			gitHash = s.Value
			if len(gitHash) > 12 {
				gitHash = gitHash[:12]
			}
		}
	}
})

func GetAppName() string {
	return appName
}

// GetVersion returns program version or "dev" when not available.
func GetVersion() string {
	loadBuildInfo()
	if len(version) == 0 {
		return "dev"
	}
	return version
}

func GetGitHash() string {
	loadBuildInfo()
	if len(gitHash) == 0 {
		return "unknown"
	}
	return gitHash
}
