// Package logging builds the service-wide zerolog logger.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New constructs a zerolog.Logger for appEnv, writing to stdout.
func New(appEnv, service string) zerolog.Logger {
	return NewWithWriter(os.Stdout, appEnv, service)
}

// NewWithWriter is New with an explicit destination.
// Development gets debug level and human-readable console output.
func NewWithWriter(w io.Writer, appEnv, service string) zerolog.Logger {
	level := zerolog.InfoLevel
	if appEnv == "development" {
		level = zerolog.DebugLevel
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}

	return zerolog.New(w).
		Level(level).
		With().
		Timestamp().
		Str("service", service).
		Logger()
}
