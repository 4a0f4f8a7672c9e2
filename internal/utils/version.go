package utils

import "runtime/debug"

// Set with -ldflags "-X table-call/internal/utils.BuildVersion=..."
var BuildVersion = ""

// GetVersion reports the build version shown in /health and page footers.
// Local builds fall back to the short VCS revision.
func GetVersion() string {
	if BuildVersion != "" {
		return BuildVersion
	}

	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "devel"
	}

	version := info.Main.Version
	var revision string
	var dirty bool
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			revision = s.Value
		case "vcs.modified":
			dirty = s.Value == "true"
		}
	}
	if (version == "" || version == "(devel)") && revision != "" {
		version = revision[:min(len(revision), 12)]
	}
	if version == "" {
		version = "devel"
	}
	if dirty {
		version += "-dirty"
	}
	return version
}
