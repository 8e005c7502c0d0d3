// Package logging builds the process logger: a rotating file under the
// workspace plus stderr when debugging.
package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures New.
type Options struct {
	File       string
	Level      string
	MaxSizeMB  int
	MaxBackups int
	// Verbose mirrors debug output to Stderr.
	Verbose bool
	Stderr  io.Writer
}

// DebugEnabled reports whether TFVC_DEBUG is set.
func DebugEnabled() bool {
	return os.Getenv("TFVC_DEBUG") != ""
}

// ParseLevel maps a level name to a slog level, defaulting to info.
func ParseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// New returns a logger and a function closing its file. With neither a file
// nor verbose output the logger discards everything.
func New(opts Options) (*slog.Logger, func() error) {
	var writers []io.Writer
	closer := func() error { return nil }

	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0755); err == nil {
			fileWriter := &lumberjack.Logger{
				Filename:   opts.File,
				MaxSize:    opts.MaxSizeMB,
				MaxBackups: opts.MaxBackups,
			}
			writers = append(writers, fileWriter)
			closer = fileWriter.Close
		}
	}

	level := ParseLevel(opts.Level)
	if opts.Verbose || DebugEnabled() {
		level = slog.LevelDebug
		stderr := opts.Stderr
		if stderr == nil {
			stderr = os.Stderr
		}
		writers = append(writers, stderr)
	}

	if len(writers) == 0 {
		return slog.New(slog.DiscardHandler), closer
	}

	handler := slog.NewTextHandler(io.MultiWriter(writers...), &slog.HandlerOptions{Level: level})
	return slog.New(handler), closer
}
