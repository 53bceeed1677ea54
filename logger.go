package auth

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Logger is the logging contract used across the package. Args are
// key/value pairs, e.g. logger.Info("login failed", "email", email).
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type defLogger struct{}

func (d defLogger) Error(msg string, args ...any) {
	fmt.Println("[ERR] AUTH " + formatLogLine(msg, args...))
}

func (d defLogger) Warn(msg string, args ...any) {
	fmt.Println("[WRN] AUTH " + formatLogLine(msg, args...))
}

func (d defLogger) Info(msg string, args ...any) {
	fmt.Println("[INF] AUTH " + formatLogLine(msg, args...))
}

func (d defLogger) Debug(msg string, args ...any) {
	fmt.Println("[DBG] AUTH " + formatLogLine(msg, args...))
}

func formatLogLine(msg string, args ...any) string {
	var b strings.Builder
	b.WriteString(strings.TrimRight(msg, "\n"))
	for i := 0; i < len(args); i += 2 {
		if i+1 >= len(args) {
			fmt.Fprintf(&b, " %v", args[i])
			break
		}
		fmt.Fprintf(&b, " %v=%v", args[i], args[i+1])
	}
	return b.String()
}

// SlogLogger adapts a *slog.Logger to Logger
type SlogLogger struct {
	l *slog.Logger
}

// NewSlogLogger wraps l. A nil logger falls back to slog.Default().
func NewSlogLogger(l *slog.Logger) *SlogLogger {
	if l == nil {
		l = slog.Default()
	}
	return &SlogLogger{l: l}
}

func (s *SlogLogger) Debug(msg string, args ...any) {
	s.l.DebugContext(context.Background(), msg, args...)
}

func (s *SlogLogger) Info(msg string, args ...any) {
	s.l.InfoContext(context.Background(), msg, args...)
}

func (s *SlogLogger) Warn(msg string, args ...any) {
	s.l.WarnContext(context.Background(), msg, args...)
}

func (s *SlogLogger) Error(msg string, args ...any) {
	s.l.ErrorContext(context.Background(), msg, args...)
}

// With returns a child logger that always carries args
func (s *SlogLogger) With(args ...any) *SlogLogger {
	return &SlogLogger{l: s.l.With(args...)}
}

func loggerOrDefault(l Logger) Logger {
	if l == nil {
		return defLogger{}
	}
	return l
}
