// Package logger provides a small structured logging facade over log/slog.
package logger

import (
	"io"
	"log/slog"
	"time"
)

// LogLevel controls the minimum severity emitted by a logger.
type LogLevel int

const (
	LogLevelDebug LogLevel = iota
	LogLevelInfo
	LogLevelWarn
	LogLevelError
)

// Field is a typed key/value pair attached to a log record.
type Field struct {
	attr slog.Attr
}

func String(key, value string) Field      { return Field{slog.String(key, value)} }
func Int(key string, value int) Field     { return Field{slog.Int(key, value)} }
func Int64(key string, value int64) Field { return Field{slog.Int64(key, value)} }
func Uint64(key string, value uint64) Field {
	return Field{slog.Uint64(key, value)}
}
func Float64(key string, value float64) Field {
	return Field{slog.Float64(key, value)}
}
func Bool(key string, value bool) Field { return Field{slog.Bool(key, value)} }
func Duration(key string, value time.Duration) Field {
	return Field{slog.Duration(key, value)}
}
func Time(key string, value time.Time) Field { return Field{slog.Time(key, value)} }
func Any(key string, value any) Field        { return Field{slog.Any(key, value)} }

// Error attaches an error under the conventional "error" key.
// A nil error logs as an empty string.
func Error(err error) Field {
	if err == nil {
		return Field{slog.String("error", "")}
	}
	return Field{slog.String("error", err.Error())}
}

// Logger is the logging interface used throughout the application.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	// With returns a child logger that includes the given fields on
	// every record.
	With(fields ...Field) Logger
}

// Options tunes handler behavior for NewSlogLogger.
type Options struct {
	// JSON selects the JSON handler instead of the text handler.
	JSON bool
	// AddSource includes the caller's file and line in each record.
	AddSource bool
}

type slogLogger struct {
	l *slog.Logger
}

// NewSlogLogger creates a Logger writing to w at the given level.
// A nil opts selects the text handler without source locations.
func NewSlogLogger(w io.Writer, level LogLevel, opts *Options) Logger {
	if opts == nil {
		opts = &Options{}
	}
	ho := &slog.HandlerOptions{
		Level:     slogLevel(level),
		AddSource: opts.AddSource,
	}
	var handler slog.Handler
	if opts.JSON {
		handler = slog.NewJSONHandler(w, ho)
	} else {
		handler = slog.NewTextHandler(w, ho)
	}
	return &slogLogger{l: slog.New(handler)}
}

func slogLevel(level LogLevel) slog.Level {
	switch level {
	case LogLevelDebug:
		return slog.LevelDebug
	case LogLevelWarn:
		return slog.LevelWarn
	case LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func attrs(fields []Field) []any {
	out := make([]any, 0, len(fields))
	for _, f := range fields {
		out = append(out, f.attr)
	}
	return out
}

func (s *slogLogger) Debug(msg string, fields ...Field) { s.l.Debug(msg, attrs(fields)...) }
func (s *slogLogger) Info(msg string, fields ...Field)  { s.l.Info(msg, attrs(fields)...) }
func (s *slogLogger) Warn(msg string, fields ...Field)  { s.l.Warn(msg, attrs(fields)...) }
func (s *slogLogger) Error(msg string, fields ...Field) { s.l.Error(msg, attrs(fields)...) }

func (s *slogLogger) With(fields ...Field) Logger {
	return &slogLogger{l: s.l.With(attrs(fields)...)}
}
