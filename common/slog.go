package common

import (
	"fmt"
	"log/slog"
	"strings"
)

// SlogResetLevel sets the default slog level and returns a function
// restoring the previous one; pairs well with defer.
// Use like:
//
//	func Test123(t *testing.T) {
//	    defer common.SlogResetLevel(slog.Level(slog.LevelWarn + 1))()
func SlogResetLevel(level slog.Level) (reset func()) {
	oldLevel := slog.SetLogLoggerLevel(level)
	return func() {
		slog.SetLogLoggerLevel(oldLevel)
	}
}

// SlogLevel parses a level name (debug, info, warn, error)
// or a signed integer offset from info.
func SlogLevel(s string) (slog.Level, error) {
	var lvl slog.Level
	s = strings.TrimSpace(s)
	if s == "" {
		return slog.LevelInfo, nil
	}
	if err := lvl.UnmarshalText([]byte(s)); err == nil {
		return lvl, nil
	}
	var n int
	if _, err := fmt.Sscanf(s, "%d", &n); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q", s)
	}
	return slog.Level(n), nil
}
