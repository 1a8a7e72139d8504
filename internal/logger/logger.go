package logger

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// Logger wraps a zerolog.Logger so call sites chain directly:
// logger.Info().Caller().Msgf(...).
type Logger struct {
	zerolog.Logger
}

// New creates a logger writing JSON lines to the given writers. When debug
// is false the level floor is raised to Info.
func New(debug bool, writers ...io.Writer) *Logger {
	multi := zerolog.MultiLevelWriter(writers...)

	level := zerolog.InfoLevel

	if debug {
		level = zerolog.DebugLevel
	}

	l := zerolog.New(multi).Level(level).With().Timestamp().Logger()

	return &Logger{l}
}

// NewConsole creates a human-readable logger on stdout.
func NewConsole(debug bool) *Logger {
	return New(debug, zerolog.ConsoleWriter{Out: os.Stdout})
}

// NewErrorConsole creates a human-readable logger on stderr.
func NewErrorConsole(debug bool) *Logger {
	return New(debug, zerolog.ConsoleWriter{Out: os.Stderr})
}
