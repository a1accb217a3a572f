// ABOUTME: Logger construction for the CLI: text on a terminal, JSON when redirected.
// ABOUTME: While a terminal UI owns the screen, logs go to a file instead of stderr.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/term"

	"github.com/2389-research/mop/config"
)

// parseLevel maps a level name onto a slog level.
func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if s == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(strings.ToUpper(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q", s)
	}
	return level, nil
}

// newLogger writes human-readable records when w is a terminal and JSON
// records otherwise.
func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	var handler slog.Handler
	options := &slog.HandlerOptions{Level: level}
	if isTerminal(w) {
		handler = slog.NewTextHandler(w, options)
	} else {
		handler = slog.NewJSONHandler(w, options)
	}
	return slog.New(handler)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// stderrLogger is the logger for modes that keep stderr free.
func stderrLogger(cfg config.Config, stderr io.Writer) *slog.Logger {
	level, _ := parseLevel(cfg.Log.Level)
	return newLogger(stderr, level)
}

// fileLogger opens the log file for a run that owns the terminal. Without a
// usable file, records are discarded.
func fileLogger(cfg config.Config) (*slog.Logger, func()) {
	level, _ := parseLevel(cfg.Log.Level)

	path := cfg.Log.File
	if path == "" {
		p, err := config.DefaultLogFile()
		if err != nil {
			return slog.New(slog.NewTextHandler(io.Discard, nil)), func() {}
		}
		path = p
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil)), func() {}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil)), func() {}
	}
	logger := slog.New(slog.NewJSONHandler(f, &slog.HandlerOptions{Level: level}))
	return logger, func() { f.Close() }
}
