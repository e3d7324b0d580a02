// Package wflog wraps zerolog the way the platform's internal/logger
// package does: a package-level Log plus small per-component constructors
// that attach a "component" field.
package wflog

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// Log is the package-level structured logger. Initialize configures it;
// until then it defaults to a sane console writer at info level so tests
// and small programs don't need to call Initialize explicitly.
var Log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(zerolog.InfoLevel).With().Timestamp().Logger()

// Initialize configures the package-level logger. level is one of
// zerolog's level names ("debug", "info", "warn", "error"); pretty selects
// a human-readable console writer over newline-delimited JSON.
func Initialize(level string, pretty bool) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}

	var w io.Writer = os.Stderr
	if pretty {
		w = zerolog.ConsoleWriter{Out: os.Stderr}
	}

	Log = zerolog.New(w).Level(lvl).With().Timestamp().Logger()
}

// GetLogger returns the package-level logger.
func GetLogger() *zerolog.Logger {
	return &Log
}

// Workflow returns a logger scoped to the sequencer/workflow component.
func Workflow() zerolog.Logger {
	return Log.With().Str("component", "workflow").Logger()
}

// Plugin returns a logger scoped to the plugin runtime.
func Plugin() zerolog.Logger {
	return Log.With().Str("component", "plugin").Logger()
}

// Fork returns a logger scoped to fork/join workers.
func Fork() zerolog.Logger {
	return Log.With().Str("component", "fork").Logger()
}

// Persist returns a logger scoped to checkpoint persistence.
func Persist() zerolog.Logger {
	return Log.With().Str("component", "persist").Logger()
}

// Monitor returns a logger scoped to the websocket dashboard fan-out.
func Monitor() zerolog.Logger {
	return Log.With().Str("component", "monitor").Logger()
}

// EventBus returns a logger scoped to the NATS listener sink.
func EventBus() zerolog.Logger {
	return Log.With().Str("component", "eventbus").Logger()
}

// Sweep returns a logger scoped to the checkpoint staleness sweeper.
func Sweep() zerolog.Logger {
	return Log.With().Str("component", "sweep").Logger()
}
