// Package logger provides a zerolog-backed logger for the trading platform.
package logger

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Config controls how the global logger is constructed.
type Config struct {
	Level  string
	Pretty bool
}

// New builds a zerolog.Logger from cfg and sets the zerolog global level
// as a side effect, matching the teacher's convention of treating the most
// recently constructed logger's level as authoritative process-wide.
func New(cfg Config) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	var w = os.Stdout
	if cfg.Pretty {
		console := zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05"}
		return zerolog.New(console).With().Timestamp().Caller().Logger()
	}

	return zerolog.New(w).With().Timestamp().Caller().Logger()
}

// SetGlobalLogger installs l as zerolog.DefaultContextLogger, the logger
// zerolog.Ctx returns for a context that carries none.
func SetGlobalLogger(l zerolog.Logger) {
	zerolog.DefaultContextLogger = &l
}
