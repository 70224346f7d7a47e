// Package logging builds the structured logger used by hooks and commands.
//
// Hooks run inside the host tool, so nothing is ever written to stdout and
// logging is off unless debug is enabled. With debug on, records are appended
// to the configured log file.
package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

// Options selects where and how much to log
type Options struct {
	Debug   bool
	LogFile string
	// Stderr also mirrors records to stderr, used by foreground commands with --verbose
	Stderr bool
}

// New returns a logger and a function that releases its file. The closer is
// never nil. Failure to open the log file silently degrades to no file output.
func New(opts Options) (*slog.Logger, func() error) {
	var writers []io.Writer
	closer := func() error { return nil }

	if opts.Debug && opts.LogFile != "" {
		if err := os.MkdirAll(filepath.Dir(opts.LogFile), 0755); err == nil {
			if f, err := os.OpenFile(opts.LogFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644); err == nil {
				writers = append(writers, f)
				closer = f.Close
			}
		}
	}
	if opts.Stderr {
		writers = append(writers, os.Stderr)
	}

	if len(writers) == 0 {
		return slog.New(slog.DiscardHandler), closer
	}

	level := slog.LevelInfo
	if opts.Debug {
		level = slog.LevelDebug
	}

	handler := slog.NewTextHandler(io.MultiWriter(writers...), &slog.HandlerOptions{Level: level})
	return slog.New(handler).With("pid", os.Getpid()), closer
}
