package app

import (
	"fmt"
	"runtime/debug"
	"strings"
	"time"
)

var (
	// Version is filled by ldflags in release builds.
	Version = "dev"
	// BuildDate is filled by ldflags in release builds.
	BuildDate = ""
)

// BuildVersion prefers the ldflags version, then the module version recorded
// by `go install`, then "dev".
func BuildVersion() string {
	if version := strings.TrimSpace(Version); version != "" && version != "dev" {
		return version
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		if v := strings.TrimSpace(info.Main.Version); v != "" && v != "(devel)" {
			return v
		}
	}

	return "dev"
}

func BuildDateYMD() string {
	raw := strings.TrimSpace(BuildDate)
	if raw == "" {
		return ""
	}
	if parsed, err := time.Parse(time.RFC3339, raw); err == nil {
		return parsed.Format(time.DateOnly)
	}
	if len(raw) >= len(time.DateOnly) {
		if _, err := time.Parse(time.DateOnly, raw[:len(time.DateOnly)]); err == nil {
			return raw[:len(time.DateOnly)]
		}
	}

	return raw
}

func BuildVersionWithDate() string {
	version := BuildVersion()
	if buildDate := BuildDateYMD(); buildDate != "" {
		return fmt.Sprintf("%s (%s)", version, buildDate)
	}

	return version
}
