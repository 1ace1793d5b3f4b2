// Package logging configures the process-wide slog logger.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// level backs every handler built by Init, so SetLevel takes effect
// without rebuilding the logger.
var level slog.LevelVar

// Init installs a slog default logger writing to w in the given format
// ("text" or "json") at the given level.
func Init(lvl, format string, w io.Writer) error {
	l, err := ParseLevel(lvl)
	if err != nil {
		return err
	}
	level.Set(l)

	opts := &slog.HandlerOptions{Level: &level}

	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	case "text", "":
		handler = slog.NewTextHandler(w, opts)
	default:
		return fmt.Errorf("logging: unknown format %q", format)
	}

	slog.SetDefault(slog.New(handler))
	return nil
}

// SetLevel changes the level of the logger installed by Init.
func SetLevel(lvl string) error {
	l, err := ParseLevel(lvl)
	if err != nil {
		return err
	}
	if level.Level() != l {
		level.Set(l)
		slog.Info("logging: level changed", "level", l.String())
	}
	return nil
}

// Level returns the current level.
func Level() slog.Level {
	return level.Level()
}

// ParseLevel maps debug|info|warn|error to a slog.Level.
func ParseLevel(lvl string) (slog.Level, error) {
	switch strings.ToLower(lvl) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("logging: unknown level %q", lvl)
	}
}
