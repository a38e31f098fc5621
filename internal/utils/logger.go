// internal/utils/logger.go

package utils

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// Logger defines the interface for logging throughout the application.
type Logger interface {
	Debug(msg string)
	Debugf(format string, args ...interface{})
	Info(msg string)
	Infof(format string, args ...interface{})
	Warn(msg string)
	Warnf(format string, args ...interface{})
	Error(msg string)
	Errorf(format string, args ...interface{})
	WithField(key string, value interface{}) Logger
	WithFields(fields map[string]interface{}) Logger
}

// LogLevel represents the severity of a log message.
type LogLevel int

const (
	DebugLevel LogLevel = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

// ParseLogLevel maps a textual level to a LogLevel, defaulting to InfoLevel.
func ParseLogLevel(s string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DebugLevel
	case "warn", "warning":
		return WarnLevel
	case "error":
		return ErrorLevel
	default:
		return InfoLevel
	}
}

func (l LogLevel) slogLevel() slog.Level {
	switch l {
	case DebugLevel:
		return slog.LevelDebug
	case WarnLevel:
		return slog.LevelWarn
	case ErrorLevel:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SlogLogger adapts a *slog.Logger to the Logger interface.
type SlogLogger struct {
	logger *slog.Logger
}

// NewLoggerWithOptions creates a logger writing to w. format is "text" or "json".
func NewLoggerWithOptions(w io.Writer, level LogLevel, format string) Logger {
	opts := &slog.HandlerOptions{Level: level.slogLevel()}

	var handler slog.Handler
	if strings.EqualFold(format, "json") {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return &SlogLogger{logger: slog.New(handler)}
}

// NewNopLogger returns a logger that discards everything.
func NewNopLogger() Logger {
	return NewLoggerWithOptions(io.Discard, ErrorLevel, "text")
}

func (l *SlogLogger) Debug(msg string) {
	l.log(slog.LevelDebug, msg)
}

func (l *SlogLogger) Debugf(format string, args ...interface{}) {
	l.log(slog.LevelDebug, fmt.Sprintf(format, args...))
}

func (l *SlogLogger) Info(msg string) {
	l.log(slog.LevelInfo, msg)
}

func (l *SlogLogger) Infof(format string, args ...interface{}) {
	l.log(slog.LevelInfo, fmt.Sprintf(format, args...))
}

func (l *SlogLogger) Warn(msg string) {
	l.log(slog.LevelWarn, msg)
}

func (l *SlogLogger) Warnf(format string, args ...interface{}) {
	l.log(slog.LevelWarn, fmt.Sprintf(format, args...))
}

func (l *SlogLogger) Error(msg string) {
	l.log(slog.LevelError, msg)
}

func (l *SlogLogger) Errorf(format string, args ...interface{}) {
	l.log(slog.LevelError, fmt.Sprintf(format, args...))
}

func (l *SlogLogger) WithField(key string, value interface{}) Logger {
	return &SlogLogger{logger: l.logger.With(key, value)}
}

func (l *SlogLogger) WithFields(fields map[string]interface{}) Logger {
	args := make([]any, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, k, v)
	}
	return &SlogLogger{logger: l.logger.With(args...)}
}

func (l *SlogLogger) log(level slog.Level, msg string) {
	l.logger.Log(context.Background(), level, msg)
}
