// Package logger builds the slog.Logger used across the evaluation engine.
// It supports JSON/text output and optional rotating log files.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures the logger.
type Options struct {
	// Level is one of debug, info, warn, error.
	Level string

	// Format is "json" or "text".
	Format string

	// File, when set, sends output to a rotating file instead of stdout.
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool

	// Output overrides the destination. Used by tests.
	Output io.Writer
}

// ParseLevel parses a level name, defaulting to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New creates a logger. The returned closer releases the rotating file, if any.
func New(opts Options) (*slog.Logger, io.Closer) {
	var (
		out    io.Writer = os.Stdout
		closer io.Closer = nopCloser{}
	)

	switch {
	case opts.Output != nil:
		out = opts.Output
	case opts.File != "":
		rotating := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays,
			Compress:   opts.Compress,
		}
		out = rotating
		closer = rotating
	}

	handlerOpts := &slog.HandlerOptions{Level: ParseLevel(opts.Level)}

	var handler slog.Handler
	if strings.EqualFold(opts.Format, "text") {
		handler = slog.NewTextHandler(out, handlerOpts)
	} else {
		handler = slog.NewJSONHandler(out, handlerOpts)
	}

	return slog.New(handler), closer
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// OrDefault returns l, or slog.Default() when l is nil.
func OrDefault(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.Default()
	}
	return l
}

// Evaluation-related attribute helpers.
func StudentID(id string) slog.Attr     { return slog.String("student_id", id) }
func HalaqaID(id string) slog.Attr      { return slog.String("halaqa_id", id) }
func Stage(name string) slog.Attr       { return slog.String("stage", name) }
func Component(name string) slog.Attr   { return slog.String("component", name) }
func RunID(id string) slog.Attr         { return slog.String("run_id", id) }
func Latency(d time.Duration) slog.Attr { return slog.String("latency", d.String()) }

// Date logs t as YYYY-MM-DD.
func Date(key string, t time.Time) slog.Attr {
	return slog.String(key, t.Format("2006-01-02"))
}
