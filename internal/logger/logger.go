// Package logger provides zerolog-backed component loggers.
package logger

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger is a zerolog.Logger bound to one component name.
type Logger struct {
	zerolog.Logger
	component string
}

// Config controls output format and verbosity.
type Config struct {
	AppEnv string
	Out    io.Writer
}

var levels = map[string]zerolog.Level{
	"development": zerolog.DebugLevel,
	"staging":     zerolog.InfoLevel,
	"production":  zerolog.InfoLevel,
	"test":        zerolog.WarnLevel,
}

// New creates a logger for component, configured from APP_ENV.
func New(component string) *Logger {
	return NewWithConfig(component, Config{AppEnv: os.Getenv("APP_ENV")})
}

// NewWithConfig creates a logger for component with explicit settings.
func NewWithConfig(component string, cfg Config) *Logger {
	zerolog.TimeFieldFormat = time.RFC3339

	out := cfg.Out
	if out == nil {
		out = os.Stdout
	}

	var zl zerolog.Logger
	if cfg.AppEnv == "production" {
		// JSON lines for log shippers.
		zl = zerolog.New(out).With().Timestamp().Str("component", component).Logger()
	} else {
		console := zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: "2006-01-02 15:04:05",
			FormatMessage: func(i interface{}) string {
				return fmt.Sprintf("[%s] %s", component, i)
			},
		}
		zl = zerolog.New(console).With().Timestamp().Logger()
	}

	return &Logger{
		Logger:    zl.Level(levelFor(cfg.AppEnv)),
		component: component,
	}
}

// Nop returns a logger that discards everything. Handy in tests.
func Nop() *Logger {
	return &Logger{Logger: zerolog.Nop(), component: "nop"}
}

// Component returns the component name the logger was created for.
func (l *Logger) Component() string { return l.component }

// With returns a child logger for a sub-component, e.g. "coordinator.adzuna".
func (l *Logger) With(sub string) *Logger {
	name := l.component + "." + sub
	return &Logger{
		Logger:    l.Logger.With().Str("sub", sub).Logger(),
		component: name,
	}
}

func levelFor(env string) zerolog.Level {
	if lvl, ok := levels[env]; ok {
		return lvl
	}
	return zerolog.DebugLevel
}
