package version

import (
	"runtime/debug"
	"strings"
	"time"
)

// These variables can be overridden at build time with ldflags
var (
	Version   string // -X github.com/trufnetwork/attest/cmd/version.Version=...
	Commit    string // -X github.com/trufnetwork/attest/cmd/version.Commit=...
	BuildTime string // -X github.com/trufnetwork/attest/cmd/version.BuildTime=...
)

const shortHashLength = 9

// readBuildInfo is swapped in tests.
var readBuildInfo = debug.ReadBuildInfo

func buildSetting(key string) string {
	info, ok := readBuildInfo()
	if !ok {
		return ""
	}
	for _, s := range info.Settings {
		if s.Key == key {
			return s.Value
		}
	}
	return ""
}

// getVersion returns the ldflags version, then the module version, then "dev".
func getVersion() string {
	if Version != "" {
		return Version
	}
	if info, ok := readBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return "dev"
}

// getCommit returns the short commit hash, marking dirty trees.
func getCommit() string {
	commit := Commit
	dirty := false
	if commit == "" {
		commit = buildSetting("vcs.revision")
		dirty = buildSetting("vcs.modified") == "true"
	}
	if len(commit) > shortHashLength {
		commit = commit[:shortHashLength]
	}
	if dirty {
		commit += "-dirty"
	}
	return commit
}

func getBuildTime() time.Time {
	if BuildTime != "" {
		if t, err := time.Parse(time.RFC3339, BuildTime); err == nil {
			return t
		}
	}
	if t, err := time.Parse(time.RFC3339, buildSetting("vcs.time")); err == nil {
		return t
	}
	return time.Time{}
}

// getBuildTimeDisplay says whether the time is the build or the commit time.
func getBuildTimeDisplay() string {
	buildTime := getBuildTime()
	if buildTime.IsZero() {
		return "unknown"
	}
	if BuildTime != "" && strings.HasSuffix(Version, "dirty") {
		return buildTime.Format(time.RFC3339) + " (build time)"
	}
	return buildTime.Format(time.RFC3339) + " (commit time)"
}
