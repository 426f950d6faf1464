package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/getsentry/sentry-go"
)

// Fields represents structured log fields
type Fields map[string]interface{}

// Level filters what reaches the output writer. Sentry breadcrumbs are
// recorded regardless of level.
type Level int32

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var (
	std      = log.New(os.Stderr, "", log.LstdFlags|log.Lmicroseconds)
	minLevel atomic.Int32
)

func init() {
	minLevel.Store(int32(LevelInfo))
}

// SetOutput redirects log output, e.g. to io.Discard in tests. A nil
// writer restores stderr.
func SetOutput(w io.Writer) {
	if w == nil {
		w = os.Stderr
	}
	std.SetOutput(w)
}

// SetLevel sets the minimum level written to the output.
func SetLevel(l Level) {
	minLevel.Store(int32(l))
}

// ParseLevel maps debug|info|warn|error to a Level, defaulting to info.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

func enabled(l Level) bool {
	return int32(l) >= minLevel.Load()
}

// Info logs an informational message with structured fields
func Info(msg string, fields Fields) {
	if enabled(LevelInfo) {
		std.Printf("[INFO] %s %s", msg, formatFields(fields))
	}
	breadcrumb("info", msg, fields, sentry.LevelInfo)
}

// Warn logs a warning message with structured fields
func Warn(msg string, fields Fields) {
	if enabled(LevelWarn) {
		std.Printf("[WARN] %s %s", msg, formatFields(fields))
	}
	breadcrumb("warning", msg, fields, sentry.LevelWarning)
}

// Debug logs a debug message with structured fields
func Debug(msg string, fields Fields) {
	if enabled(LevelDebug) {
		std.Printf("[DEBUG] %s %s", msg, formatFields(fields))
	}
	breadcrumb("debug", msg, fields, sentry.LevelDebug)
}

// Error logs an error message with structured fields and sends to Sentry
func Error(msg string, err error, fields Fields) {
	if enabled(LevelError) {
		std.Printf("[ERROR] %s: %v %s", msg, err, formatFields(fields))
	}
	hub := sentry.CurrentHub()
	if hub.Client() == nil || err == nil {
		return
	}
	hub.WithScope(func(scope *sentry.Scope) {
		for key, value := range fields {
			scope.SetContext(key, map[string]interface{}{
				"value": value,
			})
		}
		if sessionID, ok := fields["session_id"].(string); ok {
			scope.SetTag("session_id", sessionID)
		}
		scope.SetExtra("message", msg)
		hub.CaptureException(err)
	})
}

func breadcrumb(kind, msg string, fields Fields, level sentry.Level) {
	if hub := sentry.CurrentHub(); hub.Client() != nil {
		hub.AddBreadcrumb(&sentry.Breadcrumb{
			Type:     kind,
			Category: "log",
			Message:  msg,
			Data:     convertFieldsToMap(fields),
			Level:    level,
		}, nil)
	}
}

// formatFields renders fields as {k=v, ...} with keys sorted.
func formatFields(fields Fields) string {
	if len(fields) == 0 {
		return ""
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(k)
		b.WriteByte('=')
		fmt.Fprint(&b, fields[k])
	}
	b.WriteByte('}')
	return b.String()
}

func convertFieldsToMap(fields Fields) map[string]interface{} {
	result := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		result[k] = v
	}
	return result
}
