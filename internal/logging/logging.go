// Package logging configures the process-wide slog logger.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	slogmulti "github.com/samber/slog-multi"
)

// Options controls Setup.
type Options struct {
	Level string // debug | info | warn | error
	// Dir receives guardian-<timestamp>.log as JSON when set.
	Dir     string
	Verbose bool
}

// Setup installs a text handler on stderr and, when opts.Dir is set, a JSON
// file handler fanned out alongside it. The returned cleanup closes the file.
func Setup(opts Options) (*slog.Logger, func() error, error) {
	level := ParseLevel(opts.Level)
	if opts.Verbose {
		level = slog.LevelDebug
	}
	stderrHandler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})

	if opts.Dir == "" {
		logger := slog.New(stderrHandler)
		slog.SetDefault(logger)
		return logger, func() error { return nil }, nil
	}

	if err := os.MkdirAll(opts.Dir, 0o750); err != nil {
		return nil, nil, fmt.Errorf("creating log directory: %w", err)
	}
	name := filepath.Join(opts.Dir, fmt.Sprintf("guardian-%s.log", time.Now().Format("20060102-150405")))
	file, err := os.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600) // #nosec G304 -- path is built from the configured log directory
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}

	logger := NewWithWriters(os.Stderr, file, level)
	slog.SetDefault(logger)
	return logger, file.Close, nil
}

// NewWithWriters builds the dual text/JSON logger over arbitrary writers.
func NewWithWriters(text, json io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slogmulti.Fanout(
		slog.NewTextHandler(text, &slog.HandlerOptions{Level: level}),
		slog.NewJSONHandler(json, &slog.HandlerOptions{Level: level}),
	))
}

// New returns the default logger tagged with a component name.
func New(component string) *slog.Logger {
	return slog.Default().With("component", component)
}

// ParseLevel maps a level name to slog.Level, defaulting to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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
