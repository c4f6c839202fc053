// Package version reports the kybflow build version.
package version

import "runtime/debug"

// Version is set at build time with
// -ldflags "-X github.com/alexcabrera/kybflow/internal/version.Version=v1.2.3".
var Version = "dev"

func init() {
	if Version != "dev" {
		return
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		Version = info.Main.Version
	}
}
