// Package logger wraps zerolog.Logger with the constructors used by the
// autostart commands and services.
//
// Logger embeds zerolog.Logger, so the full zerolog API (Debug, Info, Warn,
// Error, ...) is available on *Logger. Services receive a *Logger and derive
// per-instance children with ForInstance.
package logger

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

// Logger is a thin wrapper around zerolog.Logger
type Logger struct {
	zerolog.Logger
}

// New constructs a JSON logger writing to w at the given level.
// An unknown level falls back to info.
func New(role string, w io.Writer, level string) *Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	logger := zerolog.New(w).
		Level(lvl).
		With().
		Str("role", role).
		Timestamp().
		Logger()

	return &Logger{logger}
}

// Console returns a human readable writer for interactive commands
func Console(w io.Writer) io.Writer {
	return zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05"}
}

// OpenFile opens (or creates) the append-only log file at path
func OpenFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return f, nil
}

// NewFileAndConsole logs JSON to file and, when console is non-nil, pretty lines to it as well
func NewFileAndConsole(role string, file io.Writer, console io.Writer, level string) *Logger {
	if console == nil {
		return New(role, file, level)
	}
	return New(role, zerolog.MultiLevelWriter(file, Console(console)), level)
}

// Nop returns a *Logger that discards all log output
func Nop() *Logger {
	return &Logger{zerolog.Nop()}
}

// ForInstance returns a child logger tagged with the emulator instance
func (l *Logger) ForInstance(name string, index int) *Logger {
	return &Logger{l.With().Str("instance", name).Int("index", index).Logger()}
}

// WithContext stores the logger in ctx
func (l *Logger) WithContext(ctx context.Context) context.Context {
	return l.Logger.WithContext(ctx)
}

// FromContext extracts the logger stored in ctx by WithContext,
// or returns fallback when ctx carries none.
func FromContext(ctx context.Context, fallback *Logger) *Logger {
	l := zerolog.Ctx(ctx)
	if l.GetLevel() == zerolog.Disabled {
		return fallback
	}
	return &Logger{*l}
}

// Elapsed adds a rounded duration field
func Elapsed(e *zerolog.Event, since time.Time) *zerolog.Event {
	return e.Dur("elapsed", time.Since(since).Round(time.Millisecond))
}
