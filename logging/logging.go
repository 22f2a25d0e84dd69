// Package logging builds the zerolog logger used by the CLI and holds the
// canonical field names shared by every package.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Canonical log field names.
const (
	KeyRepository = "repository"
	KeyStage      = "stage"
	KeyPath       = "path"
	KeyAttempt    = "attempt"
	KeyDurationMS = "duration_ms"
	KeyRunID      = "run_id"
	KeyModel      = "model"
	KeyMethod     = "method"
	KeyCount      = "count"
)

// Options configures Setup.
type Options struct {
	Level   string // debug|info|warn|error
	Dir     string // log file directory; empty disables the file sink
	Console io.Writer
	JSON    bool // plain JSON on the console instead of the pretty writer
	NoColor bool
}

// Logger is the configured logger plus its file sink.
type Logger struct {
	zerolog.Logger
	FilePath string
	file     *os.File
}

// Close flushes and closes the file sink.
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}

// ParseLevel maps a level name to a zerolog level. Empty means info.
func ParseLevel(level string) (zerolog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "", "info":
		return zerolog.InfoLevel, nil
	case "debug":
		return zerolog.DebugLevel, nil
	case "warn", "warning":
		return zerolog.WarnLevel, nil
	case "error":
		return zerolog.ErrorLevel, nil
	default:
		return zerolog.NoLevel, fmt.Errorf("unknown log level: %q", level)
	}
}

// Setup builds a logger writing to the console and, when Dir is set, to
// <Dir>/reposcope_<timestamp>.log.
func Setup(opts Options) (*Logger, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}

	console := opts.Console
	if console == nil {
		console = os.Stderr
	}
	var writers []io.Writer
	if opts.JSON {
		writers = append(writers, console)
	} else {
		writers = append(writers, zerolog.ConsoleWriter{Out: console, NoColor: opts.NoColor, TimeFormat: time.Kitchen})
	}

	result := &Logger{}
	if opts.Dir != "" {
		if err := os.MkdirAll(opts.Dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		path := filepath.Join(opts.Dir, fmt.Sprintf("reposcope_%s.log", time.Now().Format("20060102_150405")))
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		writers = append(writers, zerolog.ConsoleWriter{Out: f, NoColor: true})
		result.file = f
		result.FilePath = path
	}

	result.Logger = zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(level).
		With().Timestamp().
		Logger()
	return result, nil
}
