// Package logging configures zerolog for the relay and the client core.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Config holds logging configuration.
type Config struct {
	// Level is one of debug, info, warn, error. Empty means info.
	Level string
	// JSON switches from console output to structured JSON.
	JSON bool
	// Output defaults to stdout.
	Output io.Writer
}

// New builds a root logger from the config.
func New(cfg Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}

	output := cfg.Output
	if output == nil {
		output = os.Stdout
	}
	if !cfg.JSON {
		output = zerolog.ConsoleWriter{Out: output, TimeFormat: time.RFC3339}
	}

	return zerolog.New(output).Level(level).With().Timestamp().Logger()
}

// WithComponent derives a child logger tagged with a component name.
func WithComponent(logger zerolog.Logger, component string) zerolog.Logger {
	return logger.With().Str("component", component).Logger()
}

// Nop returns a disabled logger, used as the default in library code so
// callers that do not care about logging pay nothing.
func Nop() zerolog.Logger {
	return zerolog.Nop()
}
