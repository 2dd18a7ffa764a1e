// Package misc keeps build time information about the program.
package misc

import (
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
)

// set by linker: -ldflags "-X bookpress/misc.version=... -X bookpress/misc.gitHash=..."
var (
	version = "dev"
	gitHash = ""
	appName = ""
)

// GetAppName returns name of the program without extension.
func GetAppName() string {
	if len(appName) > 0 {
		return appName
	}
	name := filepath.Base(os.Args[0])
	ext := filepath.Ext(name)
	if ext == ".test" {
		return "bookpress"
	}
	name = strings.TrimSuffix(name, ext)
	if len(name) == 0 || name == "main" {
		return "bookpress"
	}
	return name
}

// GetVersion returns program version.
func GetVersion() string {
	return version
}

// GetGitHash returns git commit the program was build from, when linker did
// not provide it build information is consulted.
func GetGitHash() string {
	if len(gitHash) > 0 {
		return gitHash
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, s := range info.Settings {
			if s.Key == "vcs.revision" {
				return s.Value
			}
		}
	}
	return "unknown"
}
