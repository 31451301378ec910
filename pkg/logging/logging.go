package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-logr/logr"
)

// Level defines the severity of a log entry.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

func (l Level) slogLevel() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelInfo:
		return slog.LevelInfo
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Entry is the structured log entry handed to a channel-mode sink.
type Entry struct {
	Timestamp time.Time
	Level     Level
	Subsystem string
	Message   string
	Err       error
}

var (
	defaultLogger *slog.Logger
	sinkChannel   chan Entry
	channelMode   bool
)

const defaultChannelBuffer = 2048

// InitDirect initializes direct-to-writer logging (the kernel's default —
// analogous to the teacher's CLI mode).
func InitDirect(level Level, output io.Writer) {
	channelMode = false
	handler := slog.NewTextHandler(output, &slog.HandlerOptions{Level: level.slogLevel()})
	defaultLogger = slog.New(handler)
	slog.SetDefault(defaultLogger)
}

// InitChannel initializes channel-mode logging: every Entry is sent on the
// returned channel instead of being written anywhere, so an embedding host
// can render it in its own UI. Direct slog calls during this mode are
// discarded, matching the teacher's TUI mode.
func InitChannel(level Level, bufferSize int) <-chan Entry {
	channelMode = true
	if bufferSize <= 0 {
		bufferSize = defaultChannelBuffer
	}
	sinkChannel = make(chan Entry, bufferSize)
	defaultLogger = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: level.slogLevel()}))
	slog.SetDefault(defaultLogger)
	return sinkChannel
}

// Logr returns a logr.Logger backed by the current slog handler, for
// components that expect the interface-object style logger rather than
// the concrete slog type. No caller in this module uses it.
func Logr() logr.Logger {
	if defaultLogger == nil {
		InitDirect(LevelInfo, os.Stderr)
	}
	return logr.FromSlogHandler(defaultLogger.Handler())
}

func logInternal(level Level, subsystem string, err error, messageFmt string, args ...interface{}) {
	if !channelMode {
		if defaultLogger == nil || !defaultLogger.Enabled(context.Background(), level.slogLevel()) {
			return
		}
	}

	msg := messageFmt
	if len(args) > 0 {
		msg = fmt.Sprintf(messageFmt, args...)
	}
	now := time.Now()

	if channelMode {
		if sinkChannel == nil {
			fmt.Fprintf(os.Stderr, "[LOGGING_CRITICAL] channel mode active but sink is nil: %s [%s] %s\n", now.Format(time.RFC3339), level, msg)
			return
		}
		entry := Entry{Timestamp: now, Level: level, Subsystem: subsystem, Message: msg, Err: err}
		select {
		case sinkChannel <- entry:
		default:
			fmt.Fprintf(os.Stderr, "[LOGGING_CRITICAL] log sink full, dropping: %s [%s] %s\n", now.Format(time.RFC3339), level, msg)
		}
		return
	}

	var attrs []slog.Attr
	attrs = append(attrs, slog.String("subsystem", subsystem))
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	defaultLogger.LogAttrs(context.Background(), level.slogLevel(), msg, attrs...)
}

func Debug(subsystem string, messageFmt string, args ...interface{}) {
	logInternal(LevelDebug, subsystem, nil, messageFmt, args...)
}

func Info(subsystem string, messageFmt string, args ...interface{}) {
	logInternal(LevelInfo, subsystem, nil, messageFmt, args...)
}

func Warn(subsystem string, messageFmt string, args ...interface{}) {
	logInternal(LevelWarn, subsystem, nil, messageFmt, args...)
}

func Error(subsystem string, err error, messageFmt string, args ...interface{}) {
	logInternal(LevelError, subsystem, err, messageFmt, args...)
}

// TruncateID returns a truncated identifier for logging sensitive values
// (session/user ids) without leaking the whole value into log sinks.
func TruncateID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8] + "..."
}

// AuditEvent is a structured audit log entry for security-sensitive
// operations (authentication, permission grants, plugin loads).
type AuditEvent struct {
	Action    string
	Outcome   string // "success" or "failure"
	SessionID string
	UserID    string
	Target    string
	Details   string
	Error     string
}

// Audit logs a structured audit event at INFO level with an [AUDIT] prefix
// so it is easily filterable by log aggregation systems.
func Audit(event AuditEvent) {
	parts := make([]string, 0, 7)
	parts = append(parts, "action="+event.Action)
	parts = append(parts, "outcome="+event.Outcome)
	if event.SessionID != "" {
		parts = append(parts, "session="+event.SessionID)
	}
	if event.UserID != "" {
		parts = append(parts, "user="+event.UserID)
	}
	if event.Target != "" {
		parts = append(parts, "target="+event.Target)
	}
	if event.Details != "" {
		parts = append(parts, "details="+event.Details)
	}
	if event.Error != "" {
		parts = append(parts, "error="+event.Error)
	}
	logInternal(LevelInfo, "AUDIT", nil, "[AUDIT] %s", strings.Join(parts, " "))
}
