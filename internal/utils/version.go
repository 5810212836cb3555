package utils

import "runtime/debug"

// Set at build time with -ldflags "-X smart-stay/internal/utils.BuildVersion=..."
var BuildVersion = ""

// GetVersion returns the build version, falling back to module build info.
func GetVersion() string {
	if BuildVersion != "" {
		return BuildVersion
	}

	info, ok := debug.ReadBuildInfo()
	if !ok || info.Main.Version == "" {
		return "devel"
	}

	// Check if dirty
	for _, setting := range info.Settings {
		if setting.Key == "vcs.modified" && setting.Value == "true" {
			return info.Main.Version + "-dirty"
		}
	}

	return info.Main.Version
}
