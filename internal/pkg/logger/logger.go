package logger

import (
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"
)

// Options configures a Logger.
type Options struct {
	// Level is one of debug, info, warn, error. Defaults to warn.
	Level string
	// Format is text or json. Defaults to text.
	Format string
	// Output defaults to os.Stderr so command output on stdout stays clean.
	Output io.Writer
}

// Logger implements ports.Logger on top of log/slog.
type Logger struct {
	slog *slog.Logger
}

// New builds a Logger from opts.
func New(opts Options) *Logger {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	handlerOpts := &slog.HandlerOptions{Level: parseLevel(opts.Level)}
	var handler slog.Handler
	if strings.EqualFold(opts.Format, "json") {
		handler = slog.NewJSONHandler(out, handlerOpts)
	} else {
		handler = slog.NewTextHandler(out, handlerOpts)
	}
	return &Logger{slog: slog.New(handler)}
}

// NewStd creates a text logger that shows everything when verbose and only
// warnings and errors otherwise.
func NewStd(verbose bool) *Logger {
	level := "warn"
	if verbose {
		level = "debug"
	}
	return New(Options{Level: level})
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "error":
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}

func (l *Logger) Debug(msg string, fields map[string]interface{}) {
	l.slog.Debug(msg, attrs(fields)...)
}

func (l *Logger) Info(msg string, fields map[string]interface{}) {
	l.slog.Info(msg, attrs(fields)...)
}

func (l *Logger) Warn(msg string, fields map[string]interface{}) {
	l.slog.Warn(msg, attrs(fields)...)
}

func (l *Logger) Error(msg string, err error, fields map[string]interface{}) {
	args := attrs(fields)
	if err != nil {
		args = append(args, slog.String("error", err.Error()))
	}
	l.slog.Error(msg, args...)
}

// attrs flattens fields in key order so output is stable.
func attrs(fields map[string]interface{}) []any {
	if len(fields) == 0 {
		return nil
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]any, 0, len(keys))
	for _, k := range keys {
		out = append(out, slog.Any(k, fields[k]))
	}
	return out
}
