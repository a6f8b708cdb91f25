// Package logger configures the process-wide structured logger.
package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New returns the root logger writing human-readable console output.
func New() zerolog.Logger {
	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}
	return zerolog.New(output).With().Timestamp().Logger()
}

// NewWithWriter is used by tests to capture output.
func NewWithWriter(w io.Writer) zerolog.Logger {
	return zerolog.New(w).With().Timestamp().Logger()
}

// ForComponent tags a sub-logger with the component it belongs to.
func ForComponent(log zerolog.Logger, name string) zerolog.Logger {
	return log.With().Str("component", name).Logger()
}
