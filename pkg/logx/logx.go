// Package logx sets up structured logging for edgestore using zerolog:
// per-component loggers, configurable level, and optional JSON output for
// production deployments versus a human-readable console writer for local
// development.
package logx

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the process-wide base logger. Init replaces it; until Init
// runs, a console logger is used so package init-time logging (e.g. in
// tests) never panics on a zero value. No level is set on it, so zerolog's
// global level (debug unless changed) applies until Init sets one.
var Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
	With().Timestamp().Logger()

// Level mirrors zerolog's levels under edgestore's own name so callers
// don't need to import zerolog directly just to call Init.
type Level string

const (
	DebugLevel Level = "debug"
	InfoLevel  Level = "info"
	WarnLevel  Level = "warn"
	ErrorLevel Level = "error"
)

// Config configures the global logger.
type Config struct {
	Level      Level
	JSONOutput bool
	Output     io.Writer
}

// Init installs the process-wide logger from cfg.
func Init(cfg Config) {
	var level zerolog.Level
	switch cfg.Level {
	case DebugLevel:
		level = zerolog.DebugLevel
	case WarnLevel:
		level = zerolog.WarnLevel
	case ErrorLevel:
		level = zerolog.ErrorLevel
	default:
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}

	if cfg.JSONOutput {
		Logger = zerolog.New(output).With().Timestamp().Logger()
		return
	}
	Logger = zerolog.New(zerolog.ConsoleWriter{Out: output, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()
}

// Component returns a child logger tagged with a component name, the
// pattern every edgestore package uses to identify its log lines.
func Component(name string) zerolog.Logger {
	return Logger.With().Str("component", name).Logger()
}
