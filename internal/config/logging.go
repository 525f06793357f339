package config

import (
	"log/slog"
	"strings"
)

// SlogLevel maps the LOG_LEVEL value to a slog level. Unrecognized values
// fall back to info rather than failing startup; verbosity is tuning, not
// correctness.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
