// Package logging configures the structured logger used for workflow
// assembly diagnostics.
package logging

import (
	"io"

	"github.com/rs/zerolog"
)

// New creates a console logger writing to w. Debug mode lowers the level
// threshold so per-node wiring decisions become visible.
func New(w io.Writer, debug bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}
	output := zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: "15:04:05",
	}
	return zerolog.New(output).
		Level(level).
		With().
		Timestamp().
		Logger()
}

// Nop returns a logger that discards everything, for tests and library use
// without a configured sink.
func Nop() zerolog.Logger {
	return zerolog.Nop()
}
