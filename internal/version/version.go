// Package version reports the version of this module as recorded by the Go toolchain.
package version

import (
	"runtime/debug"
)

// Default is the version reported when the build carries no module information, e.g. under "go test".
const Default = "dev"

// version can be overridden at build time with -ldflags "-X github.com/tetratelabs/regloc/internal/version.version=v1.2.3".
var version = ""

// modulePath is the path of this module in go.mod.
const modulePath = "github.com/tetratelabs/regloc"

// GetReglocVersion returns the version of regloc, either as the main module or as a dependency of it.
func GetReglocVersion() string {
	if version != "" {
		return version
	}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return Default
	}
	return versionOf(info)
}

func versionOf(info *debug.BuildInfo) string {
	if info.Main.Path == modulePath {
		return orDefault(info.Main.Version)
	}
	for _, dep := range info.Deps {
		if dep.Path != modulePath {
			continue
		}
		if dep.Replace != nil {
			return orDefault(dep.Replace.Version)
		}
		return orDefault(dep.Version)
	}
	return Default
}

func orDefault(v string) string {
	// "(devel)" is what the toolchain records for a main module built from a checkout.
	if v == "" || v == "(devel)" {
		return Default
	}
	return v
}
