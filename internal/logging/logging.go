// Package logging configures the plain *log.Logger every other package is
// handed, writing through a rotating file per SPEC_FULL.md §4.11.
package logging

import (
	"io"
	"log"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures log rotation. A zero Options writes to stderr only
// (no rotation), which is convenient for tests and short CLI invocations.
type Options struct {
	FilePath   string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// New returns a *log.Logger writing to stderr, or additionally to a
// rotating file at opts.FilePath when set.
func New(opts Options) *log.Logger {
	if opts.FilePath == "" {
		return log.New(os.Stderr, "", log.LstdFlags)
	}

	rotator := &lumberjack.Logger{
		Filename:   opts.FilePath,
		MaxSize:    nonZero(opts.MaxSizeMB, 100),
		MaxBackups: nonZero(opts.MaxBackups, 5),
		MaxAge:     nonZero(opts.MaxAgeDays, 28),
	}

	return log.New(io.MultiWriter(os.Stderr, rotator), "", log.LstdFlags)
}

func nonZero(v, fallback int) int {
	if v == 0 {
		return fallback
	}
	return v
}
