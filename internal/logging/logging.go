// Package logging sets up the daemon's structured logger.
//
// Logs are JSON lines on stdout so journald can store them as-is. Each
// record carries its source location, trimmed to the package-relative path.
//
//	logger := logging.SetupLogger(cfg.LogLevel)
//	srvLog := logging.WithComponent(logger, "server")
package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// SetupLogger builds a JSON logger on stdout at the given level and
// installs it as the slog default. Unknown levels fall back to info.
func SetupLogger(level string) *slog.Logger {
	logger := NewLogger(os.Stdout, level)
	slog.SetDefault(logger)
	return logger
}

// NewLogger builds a JSON logger writing to w.
func NewLogger(w io.Writer, level string) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:       ParseLevel(level),
		AddSource:   true,
		ReplaceAttr: shortenSource,
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

// shortenSource trims source file and function names to start at the
// internal/ or cmd/ directory.
func shortenSource(_ []string, a slog.Attr) slog.Attr {
	if a.Key != slog.SourceKey {
		return a
	}
	source, ok := a.Value.Any().(*slog.Source)
	if !ok {
		return a
	}
	source.File = trimModulePath(source.File)
	source.Function = trimModulePath(source.Function)
	return a
}

func trimModulePath(s string) string {
	for _, dir := range []string{"internal/", "cmd/"} {
		if idx := strings.Index(s, dir); idx != -1 {
			return s[idx:]
		}
	}
	return filepath.Base(s)
}

// ParseLevel converts debug, info, warn or error (any case) to a slog level.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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

// WithComponent tags every record from the returned logger with component.
func WithComponent(logger *slog.Logger, component string) *slog.Logger {
	return logger.With(slog.String("component", component))
}
