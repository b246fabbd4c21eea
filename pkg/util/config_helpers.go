package util

import (
	"log/slog"
	"strings"
)

// ParseCommaSeparatedHosts parses a comma-separated string into a slice of trimmed host strings
func ParseCommaSeparatedHosts(value string) []string {
	if value == "" {
		return []string{}
	}

	parts := strings.Split(value, ",")
	hosts := make([]string, 0, len(parts))

	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			hosts = append(hosts, trimmed)
		}
	}

	return hosts
}

// ParseLogLevel maps a configured level name to a slog level.
// Unknown names fall back to info.
func ParseLogLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "error":
		return slog.LevelError
	case "warn":
		return slog.LevelWarn
	case "debug":
		return slog.LevelDebug
	default:
		return slog.LevelInfo
	}
}
