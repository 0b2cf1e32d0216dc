package infrastructure

import (
	"os"
	"strings"

	"github.com/architeacher/svc-commerce-saga/internal/config"
	"github.com/rs/zerolog"
)

// Logger wraps zerolog so callers depend on one logging surface.
type Logger struct {
	zerolog.Logger
}

// New builds the service logger from the logging config.
func New(cfg config.LoggingConfig) Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		level = zerolog.InfoLevel
	}

	logger := zerolog.New(os.Stdout).Level(level).With().Timestamp().Logger()

	if cfg.Format == "console" {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	return Logger{logger}
}

// Component returns a sub-logger tagged with the given component name.
func (l Logger) Component(name string) Logger {
	return Logger{l.With().Str("component", name).Logger()}
}
