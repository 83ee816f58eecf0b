package config

import (
	"fmt"
	"log/slog"
	"strings"
)

// LevelTrace sits below [slog.LevelDebug] and carries full wire payloads:
// Anthropic request/response JSON and tool backend bodies. -8 matches the
// spacing slog uses between its own levels. Enable it only while chasing a
// provider or backend bug; a single exchange at trace can log megabytes.
const LevelTrace = slog.Level(-8)

// ParseLogLevel maps the config file's log_level string to an
// [slog.Level]. Matching is case-insensitive and ignores surrounding
// whitespace; the empty string means info. "trace" selects [LevelTrace],
// and "warning" is accepted as an alias for "warn".
func ParseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "trace":
		return LevelTrace, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q (valid: trace, debug, info, warn, error)", s)
	}
}

// ReplaceLogLevelNames labels [LevelTrace] records as "TRACE". slog only
// names its four built-in levels and would print a trace record as
// "DEBUG-4". Wire it into every handler the way cmd/torque does:
//
//	slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level:       level,
//	    ReplaceAttr: config.ReplaceLogLevelNames,
//	})
func ReplaceLogLevelNames(groups []string, a slog.Attr) slog.Attr {
	if a.Key == slog.LevelKey {
		level, ok := a.Value.Any().(slog.Level)
		if ok && level == LevelTrace {
			a.Value = slog.StringValue("TRACE")
		}
	}
	return a
}
