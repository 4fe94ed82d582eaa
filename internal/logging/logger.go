// Package logging provides component-scoped debug logging for quill.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"
)

// pkgLogger is the process default used by Component.
var pkgLogger *Logger
var pkgLoggerMu sync.RWMutex

// SetDefault installs l as the process default logger.
func SetDefault(l *Logger) {
	pkgLoggerMu.Lock()
	defer pkgLoggerMu.Unlock()
	pkgLogger = l
}

// Default returns the process default logger, or a no-op logger if none is set.
func Default() *Logger {
	pkgLoggerMu.RLock()
	l := pkgLogger
	pkgLoggerMu.RUnlock()
	if l == nil {
		return NopLogger()
	}
	return l
}

// Component returns the default logger tagged with a component name.
func Component(name string) *Logger {
	return Default().With(name)
}

// Logger writes leveled messages tagged with a component.
// A nil *Logger is valid and discards everything.
type Logger struct {
	zl        zerolog.Logger
	component string
	closer    io.Closer
	mu        *sync.Mutex
}

// Options configures New.
type Options struct {
	// Level is a zerolog level name ("debug", "info", ...). Empty means info.
	Level string
	// File, when set, receives JSON lines. Otherwise output goes to Console.
	File string
	// Console is the human readable sink used when File is empty. Defaults to stderr.
	Console io.Writer
}

// New creates a logger from opts.
// Creates the log file's parent directory if it doesn't exist.
func New(opts Options) (*Logger, error) {
	level := zerolog.InfoLevel
	if opts.Level != "" {
		parsed, err := zerolog.ParseLevel(opts.Level)
		if err != nil {
			return nil, fmt.Errorf("parse log level %q: %w", opts.Level, err)
		}
		level = parsed
	}

	var w io.Writer
	var closer io.Closer
	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0755); err != nil {
			return nil, fmt.Errorf("create log directory: %w", err)
		}
		f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		w, closer = f, f
	} else {
		out := opts.Console
		if out == nil {
			out = os.Stderr
		}
		w = zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05.000"}
	}

	zl := zerolog.New(w).Level(level).With().Timestamp().Logger()
	return &Logger{zl: zl, closer: closer, mu: &sync.Mutex{}}, nil
}

// NewWriter creates a debug-level logger writing JSON lines to w. Used by tests.
func NewWriter(w io.Writer) *Logger {
	return &Logger{zl: zerolog.New(w).Level(zerolog.DebugLevel).With().Timestamp().Logger(), mu: &sync.Mutex{}}
}

// NopLogger returns a logger that discards everything.
func NopLogger() *Logger {
	return &Logger{zl: zerolog.Nop(), mu: &sync.Mutex{}}
}

// With returns a child logger tagged with component.
func (l *Logger) With(component string) *Logger {
	if l == nil {
		return nil
	}
	return &Logger{
		zl:        l.zl.With().Str("component", component).Logger(),
		component: component,
		closer:    l.closer,
		mu:        l.mu,
	}
}

// Log writes a debug message.
func (l *Logger) Log(format string, args ...interface{}) {
	l.Debugf(format, args...)
}

// Debugf writes a debug-level message.
func (l *Logger) Debugf(format string, args ...interface{}) {
	if l == nil {
		return
	}
	l.zl.Debug().Msgf(format, args...)
}

// Infof writes an info-level message.
func (l *Logger) Infof(format string, args ...interface{}) {
	if l == nil {
		return
	}
	l.zl.Info().Msgf(format, args...)
}

// Warnf writes a warn-level message.
func (l *Logger) Warnf(format string, args ...interface{}) {
	if l == nil {
		return
	}
	l.zl.Warn().Msgf(format, args...)
}

// Errorf writes an error-level message.
func (l *Logger) Errorf(format string, args ...interface{}) {
	if l == nil {
		return
	}
	l.zl.Error().Msgf(format, args...)
}

// Fields writes an info-level message with structured fields.
func (l *Logger) Fields(msg string, fields map[string]any) {
	if l == nil {
		return
	}
	l.zl.Info().Fields(fields).Msg(msg)
}

// Close closes the underlying log file, if any.
// Safe to call on nil logger or logger without file.
func (l *Logger) Close() error {
	if l == nil || l.closer == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closer.Close()
}
