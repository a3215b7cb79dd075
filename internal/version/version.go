package version

import "runtime/debug"

// Version is set at build time with -ldflags, or derived from the module
// version when installed with go install.
var Version = "unknown"

func init() {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	mainVersion := info.Main.Version
	if mainVersion == "" || mainVersion == "(devel)" {
		return
	}
	Version = mainVersion
}
