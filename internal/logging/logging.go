// Package logging configures the global zerolog logger.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options selects where log records go.
type Options struct {
	Debug bool
	// File receives records when set. The TUI owns the terminal, so it
	// always logs to a file.
	File string
	// Console is used when File is empty. Defaults to stderr.
	Console io.Writer
}

// Setup installs the global logger and returns a function that flushes and
// closes the log file, if any.
func Setup(opts Options) func() error {
	level := zerolog.InfoLevel
	if opts.Debug {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)

	if opts.File != "" {
		file := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     28,
			Compress:   true,
		}
		log.Logger = zerolog.New(file).With().Timestamp().Logger()
		return file.Close
	}

	out := opts.Console
	if out == nil {
		out = os.Stderr
	}
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen}).
		With().Timestamp().Logger()
	return func() error { return nil }
}

